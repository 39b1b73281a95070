package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

// SuspicionLookup is the part of the suspicion store the deduplicator needs.
type SuspicionLookup interface {
	Exists(ctx context.Context, transactionID int64, reason string) (bool, error)
}

// Deduplicator decides whether a flag is new for its (transaction, reason) pair.
type Deduplicator struct {
	logger *slog.Logger
	store  SuspicionLookup
}

// NewDeduplicator creates a deduplicator over the suspicion store.
func NewDeduplicator(logger *slog.Logger, store SuspicionLookup) *Deduplicator {
	return &Deduplicator{logger: logger, store: store}
}

// ShouldAccept reports false when a record for the pair already exists.
func (d *Deduplicator) ShouldAccept(ctx context.Context, transactionID int64, reason string) (bool, error) {
	exists, err := d.store.Exists(ctx, transactionID, reason)
	if err != nil {
		return false, fmt.Errorf("%w: failed to look up existing flag: %v", entities.ErrPersistence, err)
	}

	if exists {
		d.logger.DebugContext(ctx, "Flag already recorded",
			"transaction_id", transactionID,
			"reason", reason)
		return false, nil
	}

	return true, nil
}
