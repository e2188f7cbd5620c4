package flagcache

import (
	"context"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

// Repository is the source of truth the cache loads from.
// Fetch returns feature.ErrFlagNotFound for unknown keys; any other error is
// treated as the repository being unavailable. Returned flags are owned by
// the cache and must not be retained or modified by the repository.
type Repository interface {
	Fetch(ctx context.Context, key string) (*feature.Flag, error)
	FetchAll(ctx context.Context) ([]*feature.Flag, error)
}
