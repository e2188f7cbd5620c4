package feature_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgk-platform/cgk-sub021/pkg/bucket"
	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

const testSalt = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func percentageFlag(pct int) *feature.Flag {
	return &feature.Flag{
		Key:          "x",
		Type:         feature.TypePercentage,
		Enabled:      true,
		DefaultValue: false,
		Salt:         testSalt,
		Percentage:   pct,
	}
}

func ptr[T any](v T) *T { return &v }

func TestEvaluate_Scenarios(t *testing.T) {
	t.Parallel()
	ec := feature.EvaluationContext{TenantID: "t1", UserID: "u1"}

	t.Run("FullRollout", func(t *testing.T) {
		t.Parallel()
		res := feature.Evaluate(percentageFlag(100), ec, testNow)
		assert.Equal(t, true, res.Value)
		assert.Equal(t, feature.ReasonPercentageRollout, res.Reason)
		assert.Equal(t, "x", res.FlagKey)
		assert.False(t, res.FromCache)
	})

	t.Run("ZeroRollout", func(t *testing.T) {
		t.Parallel()
		res := feature.Evaluate(percentageFlag(0), ec, testNow)
		assert.Equal(t, false, res.Value)
		assert.Equal(t, feature.ReasonPercentageRollout, res.Reason)
	})

	t.Run("ArchivedIgnoresEverything", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(100)
		flag.Archived = true
		flag.DefaultValue = "off"
		flag.UserOverrides = map[string]feature.Override{"u1": {Value: "on"}}
		flag.EnabledTenants = []string{"t1"}
		flag.Rules = []feature.RuleGroup{{
			Conditions: []feature.Condition{{Attribute: "plan", Operator: feature.OpExists}},
			Value:      "on",
		}}

		res := feature.Evaluate(flag, feature.EvaluationContext{
			TenantID:   "t1",
			UserID:     "u1",
			Attributes: map[string]any{"plan": "pro"},
		}, testNow)
		assert.Equal(t, "off", res.Value)
		assert.Equal(t, feature.ReasonDisabled, res.Reason)
	})

	t.Run("NilFlag", func(t *testing.T) {
		t.Parallel()
		res := feature.Evaluate(nil, ec, testNow)
		assert.Equal(t, feature.ReasonNotFound, res.Reason)
		assert.False(t, res.Bool())
	})
}

func TestEvaluate_Precedence(t *testing.T) {
	t.Parallel()

	t.Run("KillSwitchBeatsOverrides", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(100)
		flag.Enabled = false
		flag.UserOverrides = map[string]feature.Override{"u1": {Value: true}}
		flag.TenantOverrides = map[string]feature.Override{"t1": {Value: true}}

		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, false, res.Value)
		assert.Equal(t, feature.ReasonDisabled, res.Reason)
	})

	t.Run("ScheduleBeforeWindow", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(100)
		flag.Schedule = &feature.Schedule{StartsAt: ptr(testNow.Add(time.Hour))}
		flag.Rules = []feature.RuleGroup{{
			Conditions: []feature.Condition{{Attribute: "plan", Operator: feature.OpEquals, Value: "pro"}},
			Value:      true,
		}}

		res := feature.Evaluate(flag, feature.EvaluationContext{
			TenantID:   "t1",
			UserID:     "u1",
			Attributes: map[string]any{"plan": "pro"},
		}, testNow)
		assert.Equal(t, false, res.Value)
		assert.Equal(t, feature.ReasonOutsideSchedule, res.Reason)
	})

	t.Run("ScheduleEndIsExclusive", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(100)
		flag.Schedule = &feature.Schedule{
			StartsAt: ptr(testNow.Add(-time.Hour)),
			EndsAt:   ptr(testNow),
		}
		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1"}, testNow)
		assert.Equal(t, feature.ReasonOutsideSchedule, res.Reason)

		res = feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1"}, testNow.Add(-time.Minute))
		assert.Equal(t, feature.ReasonPercentageRollout, res.Reason)
		assert.Equal(t, true, res.Value)
	})

	t.Run("ScheduleStartIsInclusive", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(100)
		flag.Schedule = &feature.Schedule{StartsAt: ptr(testNow)}
		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1"}, testNow)
		assert.Equal(t, feature.ReasonPercentageRollout, res.Reason)
	})

	t.Run("UserOverrideBeatsZeroRolloutAndTenantDisable", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(0)
		flag.DisabledTenants = []string{"t1"}
		flag.UserOverrides = map[string]feature.Override{"u1": {Value: true}}

		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, true, res.Value)
		assert.Equal(t, feature.ReasonUserOverride, res.Reason)

		res = feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u2"}, testNow)
		assert.Equal(t, false, res.Value)
		assert.Equal(t, feature.ReasonTenantDisabled, res.Reason)
	})

	t.Run("ExpiredUserOverrideIgnored", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(0)
		flag.UserOverrides = map[string]feature.Override{
			"u1": {Value: true, ExpiresAt: ptr(testNow.Add(-time.Second))},
		}
		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, feature.ReasonPercentageRollout, res.Reason)
		assert.Equal(t, false, res.Value)
	})

	t.Run("UserOverrideBeatsTenantOverride", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(50)
		flag.UserOverrides = map[string]feature.Override{"u1": {Value: "user"}}
		flag.TenantOverrides = map[string]feature.Override{"t1": {Value: "tenant"}}

		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, "user", res.Value)

		res = feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u2"}, testNow)
		assert.Equal(t, "tenant", res.Value)
		assert.Equal(t, feature.ReasonTenantOverride, res.Reason)
	})

	t.Run("TenantOverrideBeatsTenantDisable", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(0)
		flag.DisabledTenants = []string{"t1"}
		flag.TenantOverrides = map[string]feature.Override{"t1": {Value: true}}

		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1"}, testNow)
		assert.Equal(t, feature.ReasonTenantOverride, res.Reason)
	})

	t.Run("TenantDisableBeatsAllowLists", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(100)
		flag.DisabledTenants = []string{"t1"}
		flag.EnabledTenants = []string{"t1"}
		flag.EnabledUsers = []string{"u1"}

		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, false, res.Value)
		assert.Equal(t, feature.ReasonTenantDisabled, res.Reason)
	})

	t.Run("TenantEnabledBeforeUserEnabled", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(0)
		flag.EnabledTenants = []string{"t1"}
		flag.EnabledUsers = []string{"u1"}

		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, true, res.Value)
		assert.Equal(t, feature.ReasonTenantEnabled, res.Reason)

		res = feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t2", UserID: "u1"}, testNow)
		assert.Equal(t, true, res.Value)
		assert.Equal(t, feature.ReasonUserEnabled, res.Reason)
	})

	t.Run("EnabledValueIsServed", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(0)
		flag.DefaultValue = "old"
		flag.EnabledValue = "new"
		flag.EnabledUsers = []string{"u1"}

		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, "new", res.Value)
	})

	t.Run("AllowListBeatsRules", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(0)
		flag.EnabledUsers = []string{"u1"}
		flag.Rules = []feature.RuleGroup{{
			Conditions: []feature.Condition{{Attribute: "plan", Operator: feature.OpEquals, Value: "free"}},
			Value:      false,
		}}
		res := feature.Evaluate(flag, feature.EvaluationContext{
			TenantID:   "t1",
			UserID:     "u1",
			Attributes: map[string]any{"plan": "free"},
		}, testNow)
		assert.Equal(t, feature.ReasonUserEnabled, res.Reason)
	})

	t.Run("RulesBeatRollout", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(0)
		flag.Rules = []feature.RuleGroup{
			{
				Name: "enterprise",
				Conditions: []feature.Condition{
					{Attribute: "plan", Operator: feature.OpEquals, Value: "enterprise"},
					{Attribute: "seats", Operator: feature.OpGreaterOrEqual, Value: 100},
				},
				Value: true,
			},
			{
				Name:       "any plan",
				Conditions: []feature.Condition{{Attribute: "plan", Operator: feature.OpExists}},
				Value:      "fallback",
			},
		}

		res := feature.Evaluate(flag, feature.EvaluationContext{
			TenantID:   "t1",
			Attributes: map[string]any{"plan": "enterprise", "seats": 250},
		}, testNow)
		assert.Equal(t, true, res.Value)
		assert.Equal(t, feature.ReasonRuleMatch, res.Reason)

		// first group fails on seats, second group wins
		res = feature.Evaluate(flag, feature.EvaluationContext{
			TenantID:   "t1",
			Attributes: map[string]any{"plan": "enterprise", "seats": 10},
		}, testNow)
		assert.Equal(t, "fallback", res.Value)
		assert.Equal(t, feature.ReasonRuleMatch, res.Reason)

		res = feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1"}, testNow)
		assert.Equal(t, feature.ReasonPercentageRollout, res.Reason)
	})
}

func TestEvaluate_Rollout(t *testing.T) {
	t.Parallel()

	t.Run("StickyPerUser", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(50)
		for i := range 100 {
			ec := feature.EvaluationContext{TenantID: "t1", UserID: fmt.Sprintf("user-%d", i)}
			first := feature.Evaluate(flag, ec, testNow)
			second := feature.Evaluate(flag, ec, testNow.Add(time.Hour))
			assert.Equal(t, first.Value, second.Value)
		}
	})

	t.Run("MatchesBucketForUser", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(30)
		for i := range 200 {
			id := fmt.Sprintf("user-%d", i)
			res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: id}, testNow)
			assert.Equal(t, bucket.InRollout(id, testSalt, 30), res.Value)
		}
	})

	t.Run("FallsBackToTenant", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(30)
		for i := range 200 {
			tenant := fmt.Sprintf("tenant-%d", i)
			res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: tenant}, testNow)
			assert.Equal(t, bucket.InRollout(tenant, testSalt, 30), res.Value)
		}
	})

	t.Run("AttributeFingerprintWhenAnonymous", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(50)
		ec := feature.EvaluationContext{Attributes: map[string]any{"country": "DE", "device": "ios"}}
		first := feature.Evaluate(flag, ec, testNow)
		assert.Equal(t, feature.ReasonPercentageRollout, first.Reason)
		assert.Equal(t, first.Value, feature.Evaluate(flag, ec, testNow).Value)
	})

	t.Run("NoIdentity", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(100)
		res := feature.Evaluate(flag, feature.EvaluationContext{}, testNow)
		assert.Equal(t, false, res.Value)
		assert.Equal(t, feature.ReasonNoIdentity, res.Reason)
	})

	t.Run("Distribution", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(50)
		on := 0
		for i := range 1000 {
			res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: fmt.Sprintf("user-%d", i)}, testNow)
			if res.Bool() {
				on++
			}
		}
		assert.InDelta(t, 500, on, 100)
	})
}

func variantFlag() *feature.Flag {
	return &feature.Flag{
		Key:     "checkout.button",
		Type:    feature.TypeVariant,
		Enabled: true,
		Salt:    testSalt,
		Variants: []feature.Variant{
			{Key: "control", Weight: 50},
			{Key: "v2", Weight: 25},
			{Key: "v3", Weight: 25},
		},
	}
}

func TestEvaluate_Variants(t *testing.T) {
	t.Parallel()

	t.Run("WeightedSelection", func(t *testing.T) {
		t.Parallel()
		flag := variantFlag()
		counts := map[string]int{}
		for i := range 1000 {
			res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: fmt.Sprintf("user-%d", i)}, testNow)
			require.Equal(t, feature.ReasonVariantSelection, res.Reason)
			require.Equal(t, res.StringValue(), res.Variant)
			counts[res.Variant]++
		}
		assert.InDelta(t, 500, counts["control"], 100)
		assert.InDelta(t, 250, counts["v2"], 100)
		assert.InDelta(t, 250, counts["v3"], 100)
	})

	t.Run("DisabledServesControl", func(t *testing.T) {
		t.Parallel()
		flag := variantFlag()
		flag.Enabled = false
		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, "control", res.Value)
		assert.Equal(t, "control", res.Variant)
		assert.Equal(t, feature.ReasonDisabled, res.Reason)
	})

	t.Run("VariantOnlyNamesVariantKeys", func(t *testing.T) {
		t.Parallel()
		ec := feature.EvaluationContext{TenantID: "t1", UserID: "u1"}

		flag := variantFlag()
		flag.UserOverrides = map[string]feature.Override{"u1": {Value: "custom"}}
		res := feature.Evaluate(flag, ec, testNow)
		assert.Equal(t, "custom", res.Value)
		assert.Empty(t, res.Variant)

		flag.UserOverrides["u1"] = feature.Override{Value: "v2"}
		assert.Equal(t, "v2", feature.Evaluate(flag, ec, testNow).Variant)

		assert.Empty(t, feature.Evaluate(percentageFlag(100), ec, testNow).Variant)
	})

	t.Run("AllowListAdmitsToSelection", func(t *testing.T) {
		t.Parallel()
		flag := variantFlag()
		flag.EnabledUsers = []string{"u1"}
		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, feature.ReasonVariantSelection, res.Reason)

		flag.EnabledValue = "v3"
		res = feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, "v3", res.Value)
		assert.Equal(t, feature.ReasonUserEnabled, res.Reason)
	})

	t.Run("EmptyVariantsFailSafe", func(t *testing.T) {
		t.Parallel()
		flag := variantFlag()
		flag.Variants = nil
		flag.DefaultValue = "control"
		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, "control", res.Value)
		assert.Equal(t, feature.ReasonInvalidFlag, res.Reason)
	})
}

func TestEvaluate_FailSafe(t *testing.T) {
	t.Parallel()

	t.Run("PercentageOutOfRangeNeverEnables", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(250)
		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1", UserID: "u1"}, testNow)
		assert.Equal(t, false, res.Value)
		assert.Equal(t, feature.ReasonInvalidFlag, res.Reason)
	})

	t.Run("UnknownOperator", func(t *testing.T) {
		t.Parallel()
		flag := percentageFlag(100)
		flag.Rules = []feature.RuleGroup{{
			Conditions: []feature.Condition{{Attribute: "plan", Operator: "matches", Value: ".*"}},
			Value:      true,
		}}
		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1"}, testNow)
		assert.Equal(t, false, res.Value)
		assert.Equal(t, feature.ReasonInvalidFlag, res.Reason)
	})

	t.Run("BooleanFlagFallsToDefault", func(t *testing.T) {
		t.Parallel()
		flag := &feature.Flag{Key: "b", Type: feature.TypeBoolean, Enabled: true, DefaultValue: true}
		res := feature.Evaluate(flag, feature.EvaluationContext{TenantID: "t1"}, testNow)
		assert.Equal(t, true, res.Value)
		assert.Equal(t, feature.ReasonDefault, res.Reason)
	})
}

func TestResult(t *testing.T) {
	t.Parallel()

	assert.True(t, feature.Result{Value: true}.Bool())
	assert.False(t, feature.Result{Value: "true"}.Bool())
	assert.False(t, feature.Result{}.Bool())

	assert.Equal(t, "v2", feature.Result{Value: "v2"}.StringValue())
	assert.Equal(t, "false", feature.Result{Value: false}.StringValue())
	assert.Equal(t, "", feature.Result{}.StringValue())
}
