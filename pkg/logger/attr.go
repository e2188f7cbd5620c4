package logger

import (
	"log/slog"
	"time"
)

// Error records err under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// FlagKey records the flag key under "flag_key".
func FlagKey(key string) slog.Attr {
	return slog.String("flag_key", key)
}

// TenantID records the tenant identifier under "tenant_id".
// An empty id yields an empty Attr.
func TenantID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("tenant_id", id)
}

// UserID records the user identifier under "user_id".
// An empty id yields an empty Attr.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Reason records the evaluation reason under "reason".
func Reason[T ~string](r T) slog.Attr {
	return slog.String("reason", string(r))
}

// Tier records the cache tier that served a lookup under "tier".
func Tier[T ~string](t T) slog.Attr {
	return slog.String("tier", string(t))
}

// Origin records the instance that published an event under "origin".
func Origin(id string) slog.Attr {
	return slog.String("origin", id)
}

// Duration records d under "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
