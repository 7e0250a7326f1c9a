// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package canonical

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDigest_KeyOrderIndependent(t *testing.T) {
	require := require.New(t)

	a := map[string]any{"b": 1, "a": 2, "c": 3}
	b := map[string]any{"c": 3, "a": 2, "b": 1}

	da, err := Digest(a)
	require.NoError(err)
	db, err := Digest(b)
	require.NoError(err)
	require.Equal(da, db)
}

func TestDigest_DropsEphemeralFields(t *testing.T) {
	require := require.New(t)

	a := map[string]any{"amount": 10, "createdAt": "2024-01-01", "_internal": "x"}
	b := map[string]any{"amount": 10}

	da, err := Digest(a)
	require.NoError(err)
	db, err := Digest(b)
	require.NoError(err)
	require.Equal(da, db)
}

func TestDigest_SequenceReorderingStable(t *testing.T) {
	require := require.New(t)

	a := []any{"x", "y", "z"}
	b := []any{"z", "x", "y"}

	da, err := Digest(a)
	require.NoError(err)
	db, err := Digest(b)
	require.NoError(err)
	require.Equal(da, db)
}

func TestDigest_NegativeZeroNormalized(t *testing.T) {
	require := require.New(t)

	da, err := Digest(map[string]any{"v": -0.0})
	require.NoError(err)
	db, err := Digest(map[string]any{"v": 0.0})
	require.NoError(err)
	require.Equal(da, db)
}

func TestDigest_RoundsToTenFractionalDigits(t *testing.T) {
	require := require.New(t)

	da, err := Digest(map[string]any{"v": 1.00000000001})
	require.NoError(err)
	db, err := Digest(map[string]any{"v": 1.0})
	require.NoError(err)
	require.Equal(da, db)
}

func TestDigest_Decimal(t *testing.T) {
	require := require.New(t)

	da, err := Digest(map[string]any{"v": decimal.NewFromFloat(12.5)})
	require.NoError(err)
	db, err := Digest(map[string]any{"v": 12.5})
	require.NoError(err)
	require.Equal(da, db)
}

func TestCanonicalize_Idempotent(t *testing.T) {
	require := require.New(t)

	v := map[string]any{"a": []any{1, 2, 3}, "b": map[string]any{"x": 1}}
	b1, err := Canonicalize(v)
	require.NoError(err)

	// Re-encoding the same logical value must be byte-stable.
	b2, err := Canonicalize(v)
	require.NoError(err)
	require.Equal(b1, b2)
}

func TestCanonicalize_CyclicErrors(t *testing.T) {
	require := require.New(t)

	type node struct {
		Next *node
	}
	n := &node{}
	n.Next = n

	_, err := Canonicalize(n)
	require.ErrorIs(err, ErrUncanonicalizable)
}

func TestShortID(t *testing.T) {
	require := require.New(t)
	d, err := Digest("hello")
	require.NoError(err)
	require.Len(ShortID(d), 8)
}

func TestSignature_Deterministic(t *testing.T) {
	require := require.New(t)
	s1 := Signature("deadbeef", 1, "2024-01-01")
	s2 := Signature("deadbeef", 1, "2024-01-01")
	require.Equal(s1, s2)

	s3 := Signature("deadbeef", 2, "2024-01-01")
	require.NotEqual(s1, s3)
}

func TestDigest_OrderedSequencesOptOut(t *testing.T) {
	require := require.New(t)

	a := []any{"x", "y"}
	b := []any{"y", "x"}

	ba, err := CanonicalizeOptions(a, Options{SortSequences: false})
	require.NoError(err)
	bb, err := CanonicalizeOptions(b, Options{SortSequences: false})
	require.NoError(err)
	require.NotEqual(ba, bb)
}
