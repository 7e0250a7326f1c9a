// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/marketplace"
	"github.com/luxfi/reimburse/internal/repository"
)

// devMarketplaceClient satisfies marketplace.Client with no upstream
// records. A real client talking to a seller's marketplace account is a
// host-application concern (spec.md §1 non-goal); this process wires the
// core's pipeline end to end for local development and demos.
type devMarketplaceClient struct{}

func (devMarketplaceClient) FetchPage(_ context.Context, _ domain.RecordKind, _ string, _ repository.Window, _ string) (marketplace.Page, error) {
	return marketplace.Page{}, nil
}
