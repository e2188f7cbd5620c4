package feature

import (
	"errors"
	"fmt"

	"github.com/cgk-platform/cgk-sub021/pkg/bucket"
)

// Validate checks a flag definition. It returns nil for a usable flag and an
// error joined with ErrInvalidFlag otherwise.
// An empty salt is accepted here so that stores can fill it in on create.
func (f *Flag) Validate() error {
	if f == nil {
		return errors.Join(ErrInvalidFlag, errors.New("flag cannot be nil"))
	}

	var errs []error
	if f.Key == "" {
		errs = append(errs, errors.New("flag key cannot be empty"))
	}
	if !f.Type.Valid() {
		errs = append(errs, fmt.Errorf("unknown flag type %q", f.Type))
	}
	if f.Salt != "" && !bucket.IsValidSalt(f.Salt) {
		errs = append(errs, errors.New("salt must be 32 lowercase hex characters"))
	}
	if f.Percentage < 0 || f.Percentage > 100 {
		errs = append(errs, fmt.Errorf("percentage %d outside [0,100]", f.Percentage))
	}
	if err := checkValue("default_value", f.DefaultValue, true); err != nil {
		errs = append(errs, err)
	}
	if err := checkValue("enabled_value", f.EnabledValue, true); err != nil {
		errs = append(errs, err)
	}

	if f.Type == TypeVariant {
		errs = append(errs, validateVariants(f.Variants)...)
		if err := f.checkVariantValue("default_value", f.DefaultValue); err != nil {
			errs = append(errs, err)
		}
		if err := f.checkVariantValue("enabled_value", f.EnabledValue); err != nil {
			errs = append(errs, err)
		}
	}

	if s := f.Schedule; s != nil && s.StartsAt != nil && s.EndsAt != nil && !s.EndsAt.After(*s.StartsAt) {
		errs = append(errs, errors.New("schedule ends_at must be after starts_at"))
	}

	for id, o := range f.UserOverrides {
		if !isValue(o.Value) {
			errs = append(errs, valueError(fmt.Sprintf("user override %q", id), o.Value))
		}
	}
	for id, o := range f.TenantOverrides {
		if !isValue(o.Value) {
			errs = append(errs, valueError(fmt.Sprintf("tenant override %q", id), o.Value))
		}
	}

	for i, r := range f.Rules {
		if len(r.Conditions) == 0 {
			errs = append(errs, fmt.Errorf("rule %d has no conditions", i))
		}
		if !isValue(r.Value) {
			errs = append(errs, valueError(fmt.Sprintf("rule %d value", i), r.Value))
		}
		for _, c := range r.Conditions {
			if err := c.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidFlag}, errs...)...)
}

func validateVariants(variants []Variant) []error {
	if len(variants) == 0 {
		return []error{bucket.ErrNoVariants}
	}

	var errs []error
	total := 0
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if v.Key == "" {
			errs = append(errs, errors.New("variant key cannot be empty"))
		}
		if _, dup := seen[v.Key]; dup {
			errs = append(errs, fmt.Errorf("duplicate variant %q", v.Key))
		}
		seen[v.Key] = struct{}{}
		if v.Weight < 0 {
			errs = append(errs, fmt.Errorf("variant %q has negative weight", v.Key))
		}
		total += max(v.Weight, 0)
	}
	if total == 0 {
		errs = append(errs, bucket.ErrInvalidWeights)
	}
	return errs
}

// checkVariantValue requires a set value of a variant flag to name one of
// its variants.
func (f *Flag) checkVariantValue(name string, v any) error {
	if v == nil {
		return nil
	}
	key, ok := v.(string)
	if !ok {
		return fmt.Errorf("%s of a variant flag must be a variant key, got %T", name, v)
	}
	if f.variantKey(key) == "" {
		return fmt.Errorf("%s %q is not one of the variants", name, key)
	}
	return nil
}

// checkValue accepts bool and string values, and nil when optional is set.
func checkValue(name string, v any, optional bool) error {
	if isValue(v) || (optional && v == nil) {
		return nil
	}
	return valueError(name, v)
}

func isValue(v any) bool {
	switch v.(type) {
	case bool, string:
		return true
	}
	return false
}

func valueError(name string, v any) error {
	return fmt.Errorf("%s must be a bool or a string, got %T", name, v)
}

func weighted(variants []Variant) []bucket.Weighted {
	w := make([]bucket.Weighted, len(variants))
	for i, v := range variants {
		w[i] = bucket.Weighted{Key: v.Key, Weight: v.Weight}
	}
	return w
}
