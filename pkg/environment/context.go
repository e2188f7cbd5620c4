package environment

import (
	"context"
	"log/slog"
	"strings"
)

// Environment names a deployment the flags are evaluated in.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Parse normalises common short names ("dev", "stage", "prod").
// Unknown names are returned lowercased and trimmed so custom environments still work.
func Parse(s string) Environment {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "dev", string(Development):
		return Development
	case "stage", string(Staging):
		return Staging
	case "prod", string(Production):
		return Production
	default:
		return Environment(v)
	}
}

type contextKey struct{}

// WithContext stores env in ctx.
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext returns the environment stored in ctx, or "".
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(Environment)
	return env
}

// IsProduction reports whether ctx carries the production environment.
func IsProduction(ctx context.Context) bool {
	return FromContext(ctx) == Production
}

// LoggerExtractor tags log records with the environment of their context.
// Records logged without one are left alone.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return logAttr
}

func logAttr(ctx context.Context) (slog.Attr, bool) {
	env := FromContext(ctx)
	if env == "" {
		return slog.Attr{}, false
	}
	return slog.String("env", string(env)), true
}
