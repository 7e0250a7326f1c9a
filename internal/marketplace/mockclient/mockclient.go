// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mockclient is an in-memory marketplace.Client test double,
// grounded on the teacher's internal/testing/storage.MockBackend: a fixed
// fixture returned verbatim, with optional injected failures for exercising
// the retry path.
package mockclient

import (
	"context"
	"sync"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/marketplace"
	"github.com/luxfi/reimburse/internal/repository"
)

// Client serves fixed pages per kind, optionally failing the first N calls
// for a kind before succeeding (to exercise retry).
type Client struct {
	mu sync.Mutex

	Pages      map[domain.RecordKind][]marketplace.Page
	FailFirstN map[domain.RecordKind]int
	calls      map[domain.RecordKind]int
}

func New() *Client {
	return &Client{
		Pages:      map[domain.RecordKind][]marketplace.Page{},
		FailFirstN: map[domain.RecordKind]int{},
		calls:      map[domain.RecordKind]int{},
	}
}

func (c *Client) FetchPage(ctx context.Context, kind domain.RecordKind, sellerID string, window repository.Window, cursor string) (marketplace.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return marketplace.Page{}, err
	}

	c.calls[kind]++
	if c.calls[kind] <= c.FailFirstN[kind] {
		return marketplace.Page{}, &marketplace.FetchError{Err: marketplace.ErrMarketplace, Retryable: true}
	}

	idx := 0
	if cursor != "" {
		var err error
		idx, err = parseCursor(cursor)
		if err != nil {
			return marketplace.Page{}, &marketplace.FetchError{Err: err, Retryable: false}
		}
	}

	pages := c.Pages[kind]
	if idx >= len(pages) {
		return marketplace.Page{}, nil
	}
	return pages[idx], nil
}

func parseCursor(cursor string) (int, error) {
	idx := 0
	for _, r := range cursor {
		if r < '0' || r > '9' {
			return 0, marketplace.ErrMarketplace
		}
		idx = idx*10 + int(r-'0')
	}
	return idx, nil
}
