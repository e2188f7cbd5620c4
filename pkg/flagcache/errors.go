package flagcache

import "errors"

var (
	// ErrRepositoryUnavailable is returned when the repository failed and no
	// stale copy of the flag is young enough to serve.
	ErrRepositoryUnavailable = errors.New("flagcache: repository unavailable")

	// ErrPublishFailed is returned after a successful local eviction whose
	// invalidation event could not be published to peers.
	ErrPublishFailed = errors.New("flagcache: failed to publish invalidation")
)
