package feature

import "strconv"

// Reason explains which step of the evaluation pipeline produced a result.
type Reason string

const (
	ReasonDisabled          Reason = "disabled"
	ReasonOutsideSchedule   Reason = "outside_schedule"
	ReasonUserOverride      Reason = "user_override"
	ReasonTenantOverride    Reason = "tenant_override"
	ReasonTenantDisabled    Reason = "tenant_disabled"
	ReasonTenantEnabled     Reason = "tenant_enabled"
	ReasonUserEnabled       Reason = "user_enabled"
	ReasonRuleMatch         Reason = "rule_match"
	ReasonPercentageRollout Reason = "percentage_rollout"
	ReasonVariantSelection  Reason = "variant_selection"
	ReasonDefault           Reason = "default"

	// Fail-safe outcomes. All of them serve the default value.
	ReasonNoIdentity      Reason = "no_identity"
	ReasonInvalidFlag     Reason = "invalid_flag"
	ReasonNotFound        Reason = "not_found"
	ReasonRepositoryError Reason = "repository_error"
)

// Result is the outcome of evaluating one flag for one context.
// Variant is set when a variant flag serves one of its variant keys.
type Result struct {
	FlagKey   string `json:"flag_key"`
	Value     any    `json:"value"`
	Reason    Reason `json:"reason"`
	FromCache bool   `json:"from_cache"`
	Variant   string `json:"variant,omitempty"`
}

// Bool returns the value as a boolean. Non-boolean values are false.
func (r Result) Bool() bool {
	b, _ := r.Value.(bool)
	return b
}

// StringValue returns the value as a string. Booleans are formatted as "true" or
// "false" and a missing value is the empty string.
func (r Result) StringValue() string {
	switch v := r.Value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
