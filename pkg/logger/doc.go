// Package logger builds *slog.Logger instances and provides attribute helpers
// for the flag engine.
//
// New applies functional options on top of a JSON, info-level, stdout default:
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "checkout"),
//		logger.WithAttr(logger.Component("flags")),
//	)
//
// Handlers are wrapped in a ContextHandler so ContextExtractor functions
// can add request-scoped attributes at log time.
//
// Attribute helpers keep key names consistent across packages:
//
//	log.WarnContext(ctx, "serving stale flag",
//		logger.FlagKey(key),
//		logger.Tier(lookup.Tier),
//		logger.Error(err),
//	)
//
// Helpers given an empty value return an empty slog.Attr, which slog omits.
//
// Components that accept an optional logger call OrDiscard so a nil logger
// silences them instead of panicking.
package logger
