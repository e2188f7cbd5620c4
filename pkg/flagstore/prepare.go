package flagstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/cgk-platform/cgk-sub021/pkg/bucket"
	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

// prepareCreate fills in the salt and timestamps of a new flag and validates it.
func prepareCreate(flag *feature.Flag, now time.Time) (*feature.Flag, error) {
	if flag == nil {
		return nil, errors.Join(feature.ErrInvalidFlag, errors.New("flag cannot be nil"))
	}

	f := flag.Clone()
	if f.Salt == "" {
		salt, err := bucket.GenerateSalt()
		if err != nil {
			return nil, err
		}
		f.Salt = salt
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	f.Version = 1
	f.CreatedAt = now
	f.UpdatedAt = now
	return f, nil
}

// prepareUpdate carries identity fields over from existing and validates the result.
func prepareUpdate(existing, flag *feature.Flag, now time.Time) (*feature.Flag, error) {
	f := flag.Clone()
	if f.Salt == "" {
		f.Salt = existing.Salt
	}
	if f.Salt != existing.Salt {
		return nil, ErrSaltImmutable
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	f.Version = existing.Version + 1
	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = now
	return f, nil
}

func validateOverride(o feature.Override) error {
	if o.FlagKey == "" || o.ScopeID == "" {
		return errors.Join(ErrInvalidOverride, errors.New("flag key and scope id are required"))
	}
	if o.Scope != feature.ScopeUser && o.Scope != feature.ScopeTenant {
		return errors.Join(ErrInvalidOverride, fmt.Errorf("unknown scope %q", o.Scope))
	}
	switch o.Value.(type) {
	case bool, string:
		return nil
	}
	return errors.Join(ErrInvalidOverride, fmt.Errorf("value must be a bool or a string, got %T", o.Value))
}

// applyOverride places o into the matching override map of f.
func applyOverride(f *feature.Flag, o feature.Override) {
	switch o.Scope {
	case feature.ScopeUser:
		if f.UserOverrides == nil {
			f.UserOverrides = make(map[string]feature.Override)
		}
		f.UserOverrides[o.ScopeID] = o
	case feature.ScopeTenant:
		if f.TenantOverrides == nil {
			f.TenantOverrides = make(map[string]feature.Override)
		}
		f.TenantOverrides[o.ScopeID] = o
	}
}

// pruneExpired drops overrides that are no longer active at now.
func pruneExpired(f *feature.Flag, now time.Time) {
	for id, o := range f.UserOverrides {
		if !o.Active(now) {
			delete(f.UserOverrides, id)
		}
	}
	for id, o := range f.TenantOverrides {
		if !o.Active(now) {
			delete(f.TenantOverrides, id)
		}
	}
}
