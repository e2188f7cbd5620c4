// Package environment carries the deployment environment through context.Context.
//
// The evaluator reads it to fill EvaluationContext.EnvironmentID when the caller
// leaves that field empty, so attribute fingerprints differ between staging and
// production:
//
//	ctx = environment.WithContext(ctx, environment.Parse(os.Getenv("APP_ENV")))
//	enabled := eval.IsEnabled(ctx, "new-checkout", feature.EvaluationContext{UserID: id})
//
// LoggerExtractor plugs into logger.WithContextExtractors to tag log records with "env".
package environment
