package feature_test

import (
	"testing"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

func BenchmarkEvaluate(b *testing.B) {
	ec := feature.EvaluationContext{
		TenantID:   "tenant-1",
		UserID:     "user-123",
		Attributes: map[string]any{"plan": "pro", "seats": 12},
	}

	b.Run("Disabled", func(b *testing.B) {
		flag := percentageFlag(50)
		flag.Enabled = false
		for b.Loop() {
			_ = feature.Evaluate(flag, ec, testNow)
		}
	})

	b.Run("PercentageRollout", func(b *testing.B) {
		flag := percentageFlag(50)
		for b.Loop() {
			_ = feature.Evaluate(flag, ec, testNow)
		}
	})

	b.Run("RuleMatch", func(b *testing.B) {
		flag := percentageFlag(50)
		flag.Rules = []feature.RuleGroup{{
			Conditions: []feature.Condition{
				{Attribute: "plan", Operator: feature.OpIn, Value: []any{"pro", "team"}},
				{Attribute: "seats", Operator: feature.OpGreaterThan, Value: 10},
			},
			Value: true,
		}}
		for b.Loop() {
			_ = feature.Evaluate(flag, ec, testNow)
		}
	})

	b.Run("ManyOverridesSealed", func(b *testing.B) {
		flag := manyOverrides(10_000)
		if err := flag.Seal(); err != nil {
			b.Fatal(err)
		}
		for b.Loop() {
			_ = feature.Evaluate(flag, ec, testNow)
		}
	})

	b.Run("VariantSelection", func(b *testing.B) {
		flag := variantFlag()
		for b.Loop() {
			_ = feature.Evaluate(flag, ec, testNow)
		}
	})
}
