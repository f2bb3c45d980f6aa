package ingest

import "context"

// Upserter stores one vector+payload point, acknowledged durably.
type Upserter interface {
	Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]any) error
}
