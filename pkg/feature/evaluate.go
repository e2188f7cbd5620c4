package feature

import (
	"slices"
	"time"

	"github.com/cgk-platform/cgk-sub021/pkg/bucket"
)

// Evaluate runs the flag through the precedence chain for ec at time now.
//
// The order is fixed: kill switch, schedule, user override, tenant override,
// tenant deny list, tenant allow list, user allow list, rules, percentage
// rollout, variant selection, default. Overrides always beat rules and rules
// always beat hashing. Evaluate performs no I/O and never blocks.
//
// A malformed definition fails safe to the default value with
// ReasonInvalidFlag; it is never served as enabled. Flags prepared with Seal
// are not validated again, which keeps the cost independent of the number
// of overrides.
func Evaluate(flag *Flag, ec EvaluationContext, now time.Time) Result {
	if flag == nil {
		return Result{Value: false, Reason: ReasonNotFound}
	}

	res := Result{FlagKey: flag.Key}
	decide := func(v any, r Reason) Result {
		res.Value, res.Reason = v, r
		if flag.Type == TypeVariant {
			res.Variant = flag.variantKey(v)
		}
		return res
	}

	if flag.Archived || !flag.Enabled {
		return decide(flag.Default(), ReasonDisabled)
	}
	if err := flag.check(); err != nil {
		return decide(flag.Default(), ReasonInvalidFlag)
	}
	if !flag.Schedule.Contains(now) {
		return decide(flag.Default(), ReasonOutsideSchedule)
	}

	if ec.UserID != "" {
		if o, ok := flag.UserOverrides[ec.UserID]; ok && o.Active(now) {
			return decide(o.Value, ReasonUserOverride)
		}
	}
	if ec.TenantID != "" {
		if o, ok := flag.TenantOverrides[ec.TenantID]; ok && o.Active(now) {
			return decide(o.Value, ReasonTenantOverride)
		}
		if slices.Contains(flag.DisabledTenants, ec.TenantID) {
			return decide(flag.Default(), ReasonTenantDisabled)
		}
	}

	on, hasOn := flag.OnValue()
	if hasOn && ec.TenantID != "" && slices.Contains(flag.EnabledTenants, ec.TenantID) {
		return decide(on, ReasonTenantEnabled)
	}
	if hasOn && ec.UserID != "" && slices.Contains(flag.EnabledUsers, ec.UserID) {
		return decide(on, ReasonUserEnabled)
	}

	for _, rule := range flag.Rules {
		if rule.Matches(ec.Attributes) {
			return decide(rule.Value, ReasonRuleMatch)
		}
	}

	switch flag.Type {
	case TypePercentage:
		id := ec.HashIdentity()
		if id == "" {
			return decide(flag.Default(), ReasonNoIdentity)
		}
		if bucket.InRollout(id, flag.Salt, flag.Percentage) {
			return decide(on, ReasonPercentageRollout)
		}
		return decide(flag.Default(), ReasonPercentageRollout)

	case TypeVariant:
		id := ec.HashIdentity()
		if id == "" {
			return decide(flag.Default(), ReasonNoIdentity)
		}
		key, err := bucket.SelectVariant(id, flag.Salt, weighted(flag.Variants))
		if err != nil {
			return decide(flag.Default(), ReasonInvalidFlag)
		}
		return decide(key, ReasonVariantSelection)
	}

	return decide(flag.Default(), ReasonDefault)
}

// variantKey returns v when it names one of the flag's variants.
func (f *Flag) variantKey(v any) string {
	key, ok := v.(string)
	if ok && slices.ContainsFunc(f.Variants, func(x Variant) bool { return x.Key == key }) {
		return key
	}
	return ""
}
