package engine

import (
	"context"
	"errors"

	"trade_sim/internal/domain"
)

// MultiPublisher fans one snapshot out to several publishers. Every publisher
// is called even if an earlier one fails; the errors are joined.
type MultiPublisher []domain.SnapshotPublisher

// Publish implements domain.SnapshotPublisher.
func (m MultiPublisher) Publish(ctx context.Context, snap *domain.Snapshot) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherFunc adapts a function to domain.SnapshotPublisher.
type PublisherFunc func(ctx context.Context, snap *domain.Snapshot) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, snap *domain.Snapshot) error {
	return f(ctx, snap)
}
