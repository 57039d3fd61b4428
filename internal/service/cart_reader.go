package service

import (
	"context"

	"commerce-core/internal/models"
	"commerce-core/internal/util"
)

// CartReader provides the point-in-time view of a buyer's cart used as
// order-creation input. The snapshot is not a lock: availability is proven
// later by the ledger, under row locks.
type CartReader struct {
	repo models.Repository
}

// NewCartReader creates a new cart reader
func NewCartReader(repo models.Repository) *CartReader {
	return &CartReader{repo: repo}
}

// Snapshot reads the buyer's cart lines joined with current prices, in
// ascending product-id order. Fails with ErrEmptyCart when there are none.
func (cr *CartReader) Snapshot(ctx context.Context, buyerID int64) ([]models.SnapshotLine, error) {
	ctx, span := util.StartSpan(ctx, "CartReader.Snapshot")
	defer span.End()

	lines, err := cr.repo.CartSnapshot(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, models.ErrEmptyCart
	}
	return lines, nil
}
