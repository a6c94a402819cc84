// Package sink persists extracted listings. Writers are append-only and
// concurrency-safe; a completed page's records always land as one
// contiguous block.
package sink

import (
	"context"

	"github.com/hexelier/immoharvest/models"
)

// Sink receives the full batch of listings extracted from one page,
// complete and incomplete alike. Partial data is never discarded.
type Sink interface {
	Append(ctx context.Context, page int, listings []models.Listing) error
	Close() error
}

// Multi fans out every append to several sinks. The first error is
// returned but the remaining sinks still receive the batch.
type Multi []Sink

func (m Multi) Append(ctx context.Context, page int, listings []models.Listing) error {
	var firstErr error
	for _, s := range m {
		if err := s.Append(ctx, page, listings); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
