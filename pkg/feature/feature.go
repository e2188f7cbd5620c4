package feature

import (
	"maps"
	"slices"
	"time"
)

// FlagType selects which statistical branch of the pipeline a flag uses.
type FlagType string

const (
	// TypeBoolean flags are decided by kill switches, overrides, lists and rules only.
	TypeBoolean FlagType = "boolean"
	// TypePercentage flags fall back to a hashed percentage rollout.
	TypePercentage FlagType = "percentage"
	// TypeVariant flags fall back to weighted variant selection.
	TypeVariant FlagType = "variant"
)

// Valid reports whether t is a known flag type.
func (t FlagType) Valid() bool {
	switch t {
	case TypeBoolean, TypePercentage, TypeVariant:
		return true
	}
	return false
}

// Flag is the versioned definition of a feature flag.
//
// Enabled=false or Archived=true is the kill switch: every evaluation returns
// DefaultValue and overrides, lists and rules are ignored.
// Salt is generated once at creation and never changes.
type Flag struct {
	Key         string   `json:"key" yaml:"key"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        FlagType `json:"type" yaml:"type"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Archived    bool     `json:"archived,omitempty" yaml:"archived,omitempty"`

	// DefaultValue is returned when nothing else decides. Either bool or string.
	DefaultValue any `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	// EnabledValue is returned by the allow lists and a winning rollout.
	// When unset it is true for boolean and percentage flags.
	EnabledValue any `json:"enabled_value,omitempty" yaml:"enabled_value,omitempty"`

	Salt       string    `json:"salt" yaml:"salt"`
	Percentage int       `json:"percentage,omitempty" yaml:"percentage,omitempty"`
	Variants   []Variant `json:"variants,omitempty" yaml:"variants,omitempty"`
	Schedule   *Schedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`

	TenantOverrides map[string]Override `json:"tenant_overrides,omitempty" yaml:"tenant_overrides,omitempty"`
	UserOverrides   map[string]Override `json:"user_overrides,omitempty" yaml:"user_overrides,omitempty"`
	DisabledTenants []string            `json:"disabled_tenants,omitempty" yaml:"disabled_tenants,omitempty"`
	EnabledTenants  []string            `json:"enabled_tenants,omitempty" yaml:"enabled_tenants,omitempty"`
	EnabledUsers    []string            `json:"enabled_users,omitempty" yaml:"enabled_users,omitempty"`

	Rules []RuleGroup `json:"rules,omitempty" yaml:"rules,omitempty"`
	Tags  []string    `json:"tags,omitempty" yaml:"tags,omitempty"`

	Version   int64     `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`

	// sealed holds the Validate result recorded by Seal.
	sealed *verdict
}

type verdict struct{ err error }

// Variant is one weighted option of a variant flag.
type Variant struct {
	Key    string `json:"key" yaml:"key"`
	Weight int    `json:"weight" yaml:"weight"`
}

// Schedule is the optional active window of a flag, [StartsAt, EndsAt).
// A nil bound is open.
type Schedule struct {
	StartsAt *time.Time `json:"starts_at,omitempty" yaml:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty" yaml:"ends_at,omitempty"`
}

// Contains reports whether now falls inside the window.
func (s *Schedule) Contains(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.StartsAt != nil && now.Before(*s.StartsAt) {
		return false
	}
	if s.EndsAt != nil && !now.Before(*s.EndsAt) {
		return false
	}
	return true
}

// Scope is the target kind of an override.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeTenant Scope = "tenant"
)

// Override forces a value for one user or tenant, independent of hashing.
type Override struct {
	FlagKey   string     `json:"flag_key,omitempty" yaml:"flag_key,omitempty"`
	Scope     Scope      `json:"scope,omitempty" yaml:"scope,omitempty"`
	ScopeID   string     `json:"scope_id,omitempty" yaml:"scope_id,omitempty"`
	Value     any        `json:"value" yaml:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Active reports whether the override is still in force at now.
func (o Override) Active(now time.Time) bool {
	return o.ExpiresAt == nil || now.Before(*o.ExpiresAt)
}

// Default returns the value served when nothing else decides.
// An unset default is false for boolean and percentage flags and the first
// variant key for variant flags.
func (f *Flag) Default() any {
	if f.DefaultValue != nil {
		return f.DefaultValue
	}
	if f.Type == TypeVariant && len(f.Variants) > 0 {
		return f.Variants[0].Key
	}
	return false
}

// OnValue returns the value served by allow lists and a winning rollout.
// The second result is false for variant flags without an explicit
// EnabledValue: for those the allow lists only admit the identity to
// variant selection.
func (f *Flag) OnValue() (any, bool) {
	if f.EnabledValue != nil {
		return f.EnabledValue, true
	}
	if f.Type == TypeVariant {
		return nil, false
	}
	return true, true
}

// Seal validates the flag once and records the outcome, so later
// evaluations skip the walk over overrides and rules. A sealed flag must not
// be modified; Clone returns an unsealed copy. Seal is not safe to call
// concurrently with Evaluate on the same flag.
func (f *Flag) Seal() error {
	f.sealed = &verdict{err: f.Validate()}
	return f.sealed.err
}

// check returns the sealed verdict, or validates when the flag is not sealed.
func (f *Flag) check() error {
	if f.sealed != nil {
		return f.sealed.err
	}
	return f.Validate()
}

// Clone returns an unsealed deep copy of the flag.
func (f *Flag) Clone() *Flag {
	if f == nil {
		return nil
	}
	c := *f
	c.sealed = nil
	c.Variants = slices.Clone(f.Variants)
	if f.Schedule != nil {
		c.Schedule = &Schedule{
			StartsAt: clonePtr(f.Schedule.StartsAt),
			EndsAt:   clonePtr(f.Schedule.EndsAt),
		}
	}
	c.TenantOverrides = maps.Clone(f.TenantOverrides)
	c.UserOverrides = maps.Clone(f.UserOverrides)
	c.DisabledTenants = slices.Clone(f.DisabledTenants)
	c.EnabledTenants = slices.Clone(f.EnabledTenants)
	c.EnabledUsers = slices.Clone(f.EnabledUsers)
	c.Tags = slices.Clone(f.Tags)
	if f.Rules != nil {
		c.Rules = make([]RuleGroup, len(f.Rules))
		for i, r := range f.Rules {
			r.Conditions = slices.Clone(r.Conditions)
			c.Rules[i] = r
		}
	}
	return &c
}

// HasTag reports whether the flag carries any of the given tags.
func (f *Flag) HasTag(tags ...string) bool {
	for _, t := range tags {
		if slices.Contains(f.Tags, t) {
			return true
		}
	}
	return false
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
