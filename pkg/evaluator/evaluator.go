package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/cgk-platform/cgk-sub021/pkg/environment"
	"github.com/cgk-platform/cgk-sub021/pkg/feature"
	"github.com/cgk-platform/cgk-sub021/pkg/flagcache"
	"github.com/cgk-platform/cgk-sub021/pkg/flagstore"
	"github.com/cgk-platform/cgk-sub021/pkg/invalidation"
	"github.com/cgk-platform/cgk-sub021/pkg/logger"
)

// Evaluator answers flag questions for application code.
// Its read methods never fail: problems are reported through Result.Reason
// and logged, and the caller always receives a usable value.
type Evaluator struct {
	repo      flagcache.Repository
	cache     *flagcache.Cache
	sub       invalidation.Subscription
	clock     clock.Clock
	log       *slog.Logger
	fallbacks map[string]any
	closeOnce sync.Once
}

// New creates an Evaluator reading from repo and subscribes it to the bus.
func New(repo flagcache.Repository, opts ...Option) (*Evaluator, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}

	o := &options{
		bus:       invalidation.NoopBus{},
		clock:     clock.New(),
		log:       logger.Discard(),
		fallbacks: make(map[string]any),
	}
	for _, opt := range opts {
		opt(o)
	}

	log := o.log.With(logger.Component("evaluator"))
	cache := flagcache.New(repo, append([]flagcache.Option{
		flagcache.WithBus(o.bus),
		flagcache.WithClock(o.clock),
		flagcache.WithLogger(o.log),
	}, o.cache...)...)

	sub, err := o.bus.Subscribe(context.Background(), cache.Config().Topic, cache.HandleEvent)
	if err != nil {
		return nil, errors.Join(ErrSubscribe, err)
	}

	return &Evaluator{
		repo:      repo,
		cache:     cache,
		sub:       sub,
		clock:     o.clock,
		log:       log,
		fallbacks: o.fallbacks,
	}, nil
}

// IsEnabled reports whether key evaluates to true for ec.
func (e *Evaluator) IsEnabled(ctx context.Context, key string, ec feature.EvaluationContext) bool {
	return e.Evaluate(ctx, key, ec).Bool()
}

// GetVariant returns the variant key selected for ec.
// An unknown or unreachable flag yields its string fallback, or "".
func (e *Evaluator) GetVariant(ctx context.Context, key string, ec feature.EvaluationContext) string {
	res := e.Evaluate(ctx, key, ec)
	switch res.Reason {
	case feature.ReasonNotFound, feature.ReasonRepositoryError:
		s, _ := res.Value.(string)
		return s
	}
	if res.Variant != "" {
		return res.Variant
	}
	return res.StringValue()
}

// Evaluate runs the full pipeline for key.
// A missing ec.EnvironmentID is taken from the environment stored in ctx.
func (e *Evaluator) Evaluate(ctx context.Context, key string, ec feature.EvaluationContext) (res feature.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.ErrorContext(ctx, "flag evaluation panicked", logger.FlagKey(key), slog.Any("panic", r))
			res = feature.Result{FlagKey: key, Value: e.fallback(key), Reason: feature.ReasonInvalidFlag}
		}
	}()

	ec = e.withEnvironment(ctx, ec)

	flag, lookup, err := e.cache.Get(ctx, key)
	if err != nil {
		return e.failSafe(ctx, key, ec, err)
	}

	res = feature.Evaluate(flag, ec, e.clock.Now())
	res.FromCache = lookup.FromCache
	if res.Reason == feature.ReasonInvalidFlag {
		e.log.WarnContext(ctx, "invalid flag definition served as default",
			logger.FlagKey(key), slog.Int64("version", flag.Version),
			logger.TenantID(ec.TenantID), logger.UserID(ec.UserID))
	}
	return res
}

// EvaluateAll evaluates every known flag for ec.
// When the repository is unreachable and nothing is cached, the result holds
// the configured fallbacks with ReasonRepositoryError.
func (e *Evaluator) EvaluateAll(ctx context.Context, ec feature.EvaluationContext) map[string]feature.Result {
	ec = e.withEnvironment(ctx, ec)

	flags, lookup, err := e.cache.All(ctx)
	if err != nil {
		e.log.ErrorContext(ctx, "failed to load flags for evaluation", logger.Error(err))
		out := make(map[string]feature.Result, len(e.fallbacks))
		for key, v := range e.fallbacks {
			out[key] = feature.Result{FlagKey: key, Value: v, Reason: feature.ReasonRepositoryError}
		}
		return out
	}

	now := e.clock.Now()
	out := make(map[string]feature.Result, len(flags))
	for _, flag := range flags {
		res := feature.Evaluate(flag, ec, now)
		res.FromCache = lookup.FromCache
		out[flag.Key] = res
	}
	return out
}

// InvalidateFlag drops key from every cache tier on every instance.
// Local eviction always happens; the error only reports a failed publish.
func (e *Evaluator) InvalidateFlag(ctx context.Context, key string) error {
	return e.cache.Invalidate(ctx, key)
}

// InvalidateAllFlags drops every flag from every cache tier on every instance.
func (e *Evaluator) InvalidateAllFlags(ctx context.Context) error {
	return e.cache.InvalidateAll(ctx)
}

// KillFlag disables key in the repository when it supports flagstore.Disabler,
// then reloads it synchronously, so evaluations on this instance return the
// default with ReasonDisabled as soon as KillFlag returns. Peers are notified
// through the bus.
func (e *Evaluator) KillFlag(ctx context.Context, key string) error {
	if d, ok := e.repo.(flagstore.Disabler); ok {
		if err := d.SetEnabled(ctx, key, false); err != nil {
			return errors.Join(ErrKillFailed, fmt.Errorf("flag %q: %w", key, err))
		}
	}

	if _, err := e.cache.Refresh(ctx, key); err != nil {
		e.log.ErrorContext(ctx, "kill switch refresh incomplete", logger.FlagKey(key), logger.Error(err))
		return err
	}

	e.log.InfoContext(ctx, "flag killed", logger.FlagKey(key))
	return nil
}

// Cache exposes the underlying cache, e.g. to subscribe it to another bus.
func (e *Evaluator) Cache() *flagcache.Cache {
	return e.cache
}

// Close stops applying peer invalidations. The bus and repository are owned by the caller.
func (e *Evaluator) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.sub.Close()
	})
	return err
}

func (e *Evaluator) withEnvironment(ctx context.Context, ec feature.EvaluationContext) feature.EvaluationContext {
	if ec.EnvironmentID == "" {
		ec.EnvironmentID = string(environment.FromContext(ctx))
	}
	return ec
}

func (e *Evaluator) fallback(key string) any {
	if v, ok := e.fallbacks[key]; ok {
		return v
	}
	return false
}

func (e *Evaluator) failSafe(ctx context.Context, key string, ec feature.EvaluationContext, err error) feature.Result {
	res := feature.Result{FlagKey: key, Value: e.fallback(key)}
	if errors.Is(err, feature.ErrFlagNotFound) {
		res.Reason = feature.ReasonNotFound
		e.log.DebugContext(ctx, "unknown flag", logger.FlagKey(key))
		return res
	}

	res.Reason = feature.ReasonRepositoryError
	e.log.ErrorContext(ctx, "flag unavailable, serving fallback",
		logger.FlagKey(key), logger.Reason(res.Reason),
		logger.TenantID(ec.TenantID), logger.UserID(ec.UserID), logger.Error(err))
	return res
}
