// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package marketplace defines the paged-fetch contract ingestion uses to
// pull marketplace records, and the jittered-backoff retry loop around it
// (spec.md §4.3).
//
// Grounded on the teacher's sdk/go.Client: a net/http.Client-based client
// with context.Context-scoped requests and one typed call per concern.
// Ours generalizes that to one call per marketplace record kind plus a
// cursor-following loop and retry the teacher's fire-and-forget client
// never needed.
package marketplace

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/repository"
)

// ErrMarketplace wraps a permanent (non-retryable) upstream error.
var ErrMarketplace = errors.New("marketplace: permanent error")

// Page is one page of records of a single kind, plus an optional cursor to
// continue with.
type Page struct {
	Records    []repository.Entity
	NextCursor string // empty means exhausted
}

// FetchError carries retry metadata so callers can distinguish transient
// from permanent failures without string-matching.
type FetchError struct {
	Err       error
	Retryable bool
}

func (e *FetchError) Error() string { return e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches pages of a single record kind for a (seller, window).
type Client interface {
	FetchPage(ctx context.Context, kind domain.RecordKind, sellerID string, window repository.Window, cursor string) (Page, error)
}

// RetryConfig bounds the backoff loop around Client.FetchPage.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	PerCallTimeout time.Duration // 0 means no per-call timeout
}

// DefaultRetryConfig mirrors spec.md §6 (MARKET_PAGE_RETRIES=5,
// MARKET_PAGE_TIMEOUT_S=30).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		BaseDelay:      200 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		PerCallTimeout: 30 * time.Second,
	}
}

// FetchAllPages drives Client.FetchPage to exhaustion, calling onPage for
// every page fetched (so ingestion can upsert incrementally) and retrying
// each page with full-jitter exponential backoff on transient errors.
func FetchAllPages(
	ctx context.Context,
	client Client,
	kind domain.RecordKind,
	sellerID string,
	window repository.Window,
	retry RetryConfig,
	onPage func(Page) error,
) error {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := fetchPageWithRetry(ctx, client, kind, sellerID, window, cursor, retry)
		if err != nil {
			return err
		}
		if err := onPage(page); err != nil {
			return err
		}
		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

func fetchPageWithRetry(
	ctx context.Context,
	client Client,
	kind domain.RecordKind,
	sellerID string,
	window repository.Window,
	cursor string,
	retry RetryConfig,
) (Page, error) {
	var lastErr error
	for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if retry.PerCallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, retry.PerCallTimeout)
		}
		page, err := client.FetchPage(callCtx, kind, sellerID, window, cursor)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return page, nil
		}

		var fe *FetchError
		if errors.As(err, &fe) && !fe.Retryable {
			return Page{}, err
		}
		lastErr = err

		if attempt == retry.MaxAttempts-1 {
			break
		}
		if err := sleepWithJitter(ctx, retry, attempt); err != nil {
			return Page{}, err
		}
	}
	return Page{}, lastErr
}

// sleepWithJitter implements full jitter: delay = random(0, min(maxDelay,
// base*2^attempt)).
func sleepWithJitter(ctx context.Context, retry RetryConfig, attempt int) error {
	ceiling := retry.BaseDelay * time.Duration(1<<uint(attempt))
	if ceiling > retry.MaxDelay {
		ceiling = retry.MaxDelay
	}
	delay := time.Duration(rand.Int63n(int64(ceiling) + 1))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
