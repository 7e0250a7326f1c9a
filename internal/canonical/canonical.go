// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package canonical produces a deterministic byte encoding and SHA-256
// digest for arbitrary Go values, used by the certainty scorer and the
// brief generator. Two logically-equal values
// — same keys in any order, same sequence elements in any order, ephemeral
// fields present or absent — must canonicalize to identical bytes.
//
// Grounded on the teacher's pkg/crypto.Core.Hash/HashHex (sha256.Sum256 +
// hex-encode) and CreateCommitment (hash-of-canonical-bytes as a
// commitment), retargeted from committing budget state to committing
// claim evidence.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUncanonicalizable is returned for values the canonicalizer cannot
// represent deterministically, e.g. cyclic structures.
var ErrUncanonicalizable = errors.New("canonical: value cannot be canonicalized")

// ephemeralKeys are dropped from any mapping regardless of nesting depth.
// Keys beginning with "_" are dropped by rule, not by this set.
var ephemeralKeys = map[string]bool{
	"createdAt": true,
	"updatedAt": true,
	"requestId": true,
	"sessionId": true,
	"timestamp": true,
}

// Options tweaks canonicalization for domains where sequence order is
// semantically meaningful (spec.md §4.1 "option flag may disable sorting
// for ordered domains").
type Options struct {
	// SortSequences disables the deep total-order sort of slice/array
	// elements when false, which is also the zero value of Options.
	// Canonicalize and Digest always sort; callers wanting ordered
	// semantics must call CanonicalizeOptions explicitly.
	SortSequences bool
}

var defaultOptions = Options{SortSequences: true}

// Canonicalize recursively normalizes v and returns its canonical byte
// encoding.
func Canonicalize(v any) ([]byte, error) {
	return CanonicalizeOptions(v, defaultOptions)
}

// CanonicalizeOptions is Canonicalize with explicit Options.
func CanonicalizeOptions(v any, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	seen := map[uintptr]bool{}
	if err := encode(&buf, reflect.ValueOf(v), opts, seen, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Digest returns the lowercase hex SHA-256 of the canonical encoding of v.
func Digest(v any) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ShortID returns the first 8 hex characters of a digest.
func ShortID(digest string) string {
	if len(digest) <= 8 {
		return digest
	}
	return digest[:8]
}

// Signature computes sha256(evidenceDigest | templateVersion | preparedOnIso).
func Signature(evidenceDigest string, templateVersion int, preparedOnIso string) string {
	payload := fmt.Sprintf("%s|%d|%s", evidenceDigest, templateVersion, preparedOnIso)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

const maxDepth = 64

func encode(buf *bytes.Buffer, v reflect.Value, opts Options, seen map[uintptr]bool, depth int) error {
	if depth > maxDepth {
		return ErrUncanonicalizable
	}
	if !v.IsValid() {
		buf.WriteString("null")
		return nil
	}

	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		if v.Kind() == reflect.Pointer {
			ptr := v.Pointer()
			if seen[ptr] {
				return ErrUncanonicalizable
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Invalid:
		buf.WriteString("null")
		return nil
	case reflect.Bool:
		if v.Bool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case reflect.String:
		return encodeString(buf, v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return encodeNumber(buf, float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return encodeNumber(buf, float64(v.Uint()))
	case reflect.Float32, reflect.Float64:
		return encodeNumber(buf, v.Float())
	case reflect.Slice, reflect.Array:
		return encodeSequence(buf, v, opts, seen, depth)
	case reflect.Map:
		return encodeMapping(buf, v, opts, seen, depth)
	case reflect.Struct:
		if d, ok := v.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return encodeNumber(buf, f)
		}
		return encodeStruct(buf, v, opts, seen, depth)
	default:
		return fmt.Errorf("%w: unsupported kind %s", ErrUncanonicalizable, v.Kind())
	}
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := jsonQuote(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// jsonQuote reuses Go's string-quoting rules (strconv.Quote is close
// enough for our purposes: canonical bytes only need to be stable and
// self-delimiting, not valid JSON).
func jsonQuote(s string) ([]byte, error) {
	return []byte(strconv.Quote(s)), nil
}

func encodeNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number", ErrUncanonicalizable)
	}
	rounded := math.Round(f*1e10) / 1e10
	if rounded == 0 {
		rounded = 0 // normalize -0 to 0
	}
	buf.WriteString(strconv.FormatFloat(rounded, 'f', -1, 64))
	return nil
}

func encodeSequence(buf *bytes.Buffer, v reflect.Value, opts Options, seen map[uintptr]bool, depth int) error {
	// []byte is treated as an opaque string-like scalar, not a sequence of
	// numbers, so byte slices canonicalize the same way regardless of
	// which struct field type wraps them.
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
		return encodeString(buf, string(v.Bytes()))
	}

	n := v.Len()
	encoded := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		var elemBuf bytes.Buffer
		if err := encode(&elemBuf, v.Index(i), opts, seen, depth+1); err != nil {
			return err
		}
		encoded = append(encoded, elemBuf.Bytes())
	}
	if opts.SortSequences {
		sort.Slice(encoded, func(i, j int) bool {
			return sequenceLess(encoded[i], encoded[j])
		})
	}
	buf.WriteByte('[')
	for i, e := range encoded {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e)
	}
	buf.WriteByte(']')
	return nil
}

// sequenceLess implements the deep total order from spec.md §4.1:
// null/unset < booleans < numbers < strings < sequences < mappings.
func sequenceLess(a, b []byte) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	return bytes.Compare(a, b) < 0
}

func rank(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	switch b[0] {
	case 'n':
		return 0 // null
	case 't', 'f':
		return 1 // bool
	case '"':
		return 3 // string
	case '[':
		return 4 // sequence
	case '{':
		return 5 // mapping
	default:
		return 2 // number
	}
}

func encodeMapping(buf *bytes.Buffer, v reflect.Value, opts Options, seen map[uintptr]bool, depth int) error {
	type kv struct {
		key string
		val []byte
	}
	var pairs []kv
	iter := v.MapRange()
	for iter.Next() {
		key := fmt.Sprintf("%v", iter.Key().Interface())
		if shouldDropKey(key) {
			continue
		}
		val := iter.Value()
		if isUnset(val) {
			continue
		}
		var vbuf bytes.Buffer
		if err := encode(&vbuf, val, opts, seen, depth+1); err != nil {
			return err
		}
		pairs = append(pairs, kv{key: key, val: vbuf.Bytes()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, p.key); err != nil {
			return err
		}
		buf.WriteByte(':')
		buf.Write(p.val)
	}
	buf.WriteByte('}')
	return nil
}

func encodeStruct(buf *bytes.Buffer, v reflect.Value, opts Options, seen map[uintptr]bool, depth int) error {
	if t, ok := v.Interface().(time.Time); ok {
		return encodeString(buf, t.UTC().Format(time.RFC3339Nano))
	}

	t := v.Type()
	type kv struct {
		key string
		val []byte
	}
	var pairs []kv
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		key := fieldName(field)
		if shouldDropKey(key) {
			continue
		}
		fv := v.Field(i)
		if isUnset(fv) {
			continue
		}
		var vbuf bytes.Buffer
		if err := encode(&vbuf, fv, opts, seen, depth+1); err != nil {
			return err
		}
		pairs = append(pairs, kv{key: key, val: vbuf.Bytes()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, p.key); err != nil {
			return err
		}
		buf.WriteByte(':')
		buf.Write(p.val)
	}
	buf.WriteByte('}')
	return nil
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name := strings.Split(tag, ",")[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func shouldDropKey(key string) bool {
	if strings.HasPrefix(key, "_") {
		return true
	}
	return ephemeralKeys[key]
}

func isUnset(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}
