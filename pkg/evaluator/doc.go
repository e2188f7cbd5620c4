// Package evaluator is the entry point application code uses to read flags.
//
// An Evaluator combines a flag repository, the flagcache read path and the
// pure evaluation pipeline in package feature:
//
//	eval, err := evaluator.New(store,
//		evaluator.WithSharedStore(flagcache.NewRedisStore(client, "flags:")),
//		evaluator.WithBus(invalidation.NewRedisBus(client)),
//		evaluator.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//	defer eval.Close()
//
//	ec := feature.EvaluationContext{TenantID: tenantID, UserID: userID}
//	if eval.IsEnabled(ctx, "new-checkout", ec) {
//		// ...
//	}
//	variant := eval.GetVariant(ctx, "button-color", ec)
//
// Reads never return errors. An unknown flag yields its fallback with
// ReasonNotFound; a repository outage yields a stale snapshot when one is
// young enough, otherwise the fallback with ReasonRepositoryError. Fallbacks
// come from WithFallbacks and default to false.
//
// Writes to the flag store are followed by InvalidateFlag so every instance
// drops its cached copy. KillFlag disables a flag in the store and reloads it
// before returning, so the calling instance observes the kill immediately and
// peers follow as soon as the bus delivers the event.
package evaluator
