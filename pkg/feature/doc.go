// Package feature defines feature flag definitions and the pipeline that
// evaluates them.
//
// A Flag is pure data: kill switches, overrides, allow and deny lists, rule
// groups and a rollout branch are all fields consulted by Evaluate, so every
// behaviour, including an emergency disable, goes through the same code path
// and can be tested through the same contract.
//
// # Evaluation order
//
// Evaluate walks a fixed chain and stops at the first step that decides:
//
//  1. Archived or disabled flag: default value, ReasonDisabled.
//  2. Outside the schedule window: default value, ReasonOutsideSchedule.
//  3. Active user override: the override value, ReasonUserOverride.
//  4. Active tenant override: the override value, ReasonTenantOverride.
//  5. Tenant in DisabledTenants: default value, ReasonTenantDisabled.
//  6. Tenant in EnabledTenants: enabled value, ReasonTenantEnabled.
//  7. User in EnabledUsers: enabled value, ReasonUserEnabled.
//  8. First matching rule group: its value, ReasonRuleMatch.
//  9. Percentage flags: hashed rollout, ReasonPercentageRollout.
//  10. Variant flags: weighted variant, ReasonVariantSelection.
//  11. Default value, ReasonDefault.
//
// The flag Type decides which of steps 9 and 10 applies; a boolean flag uses
// neither. A definition that fails Validate is served its default value with
// ReasonInvalidFlag, and a rollout with no resolvable identity is served its
// default value with ReasonNoIdentity.
//
// # Usage
//
//	flag := &feature.Flag{
//		Key:          "checkout.new_flow",
//		Type:         feature.TypePercentage,
//		Enabled:      true,
//		DefaultValue: false,
//		Salt:         bucket.MustGenerateSalt(),
//		Percentage:   25,
//	}
//
//	res := feature.Evaluate(flag, feature.EvaluationContext{
//		TenantID: "acme",
//		UserID:   "user-42",
//	}, time.Now())
//	if res.Bool() {
//		// new checkout
//	}
//
// # Rules
//
// A RuleGroup is a conjunction of Conditions over the caller's attributes.
// Each Condition is tagged by an Operator (eq, neq, in, not_in, gt, gte, lt,
// lte, contains, starts_with, ends_with, exists). Unknown operators are
// rejected by Validate, not at evaluation time. Numbers of any Go numeric
// type compare equal by value; a missing attribute never matches.
//
// # Error Handling
//
//	if err := flag.Validate(); errors.Is(err, feature.ErrInvalidFlag) {
//		// reject the write
//	}
//
// Evaluate itself never returns an error.
package feature
