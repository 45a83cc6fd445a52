package domain

import "context"

// FeedSource produces raw L2 records until ctx is cancelled or the source fails.
type FeedSource interface {
	Stream(ctx context.Context, out chan<- FeedRecord) error
}

// FeedWorker is a long-lived feed connector.
type FeedWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// SnapshotPublisher receives every accepted snapshot. Implementations must not
// modify the snapshot.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// SimulationRecorder journals completed estimates.
type SimulationRecorder interface {
	RecordSimulation(ctx context.Context, params SimulateParams, est CostEstimate) error
}
