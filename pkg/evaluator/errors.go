package evaluator

import "errors"

var (
	// ErrNilRepository is returned by New without a repository.
	ErrNilRepository = errors.New("evaluator: repository is required")

	// ErrSubscribe is returned by New when the invalidation subscription fails.
	ErrSubscribe = errors.New("evaluator: failed to subscribe to invalidations")

	// ErrKillFailed is returned by KillFlag when the repository refused to disable the flag.
	ErrKillFailed = errors.New("evaluator: failed to disable flag")
)
