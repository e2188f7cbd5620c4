package bucket_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgk-platform/cgk-sub021/pkg/bucket"
)

const testSalt = "0123456789abcdef0123456789abcdef"

func TestBucket(t *testing.T) {
	t.Parallel()

	t.Run("Deterministic", func(t *testing.T) {
		t.Parallel()
		for i := range 200 {
			id := fmt.Sprintf("user-%d", i)
			assert.Equal(t, bucket.Bucket(id, testSalt), bucket.Bucket(id, testSalt))
		}
	})

	t.Run("Range", func(t *testing.T) {
		t.Parallel()
		for i := range 5000 {
			b := bucket.Bucket(fmt.Sprintf("id-%d", i), fmt.Sprintf("salt-%d", i%7))
			assert.GreaterOrEqual(t, b, 0)
			assert.Less(t, b, 100)
		}
	})

	t.Run("EmptyInputsStillInRange", func(t *testing.T) {
		t.Parallel()
		b := bucket.Bucket("", "")
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 100)
	})

	t.Run("SaltDecorrelates", func(t *testing.T) {
		t.Parallel()
		seen := make(map[int]struct{})
		for i := range 50 {
			seen[bucket.Bucket("user-42", fmt.Sprintf("salt-%d", i))] = struct{}{}
		}
		// 50 salts landing in a single bucket would mean the salt is ignored.
		assert.Greater(t, len(seen), 10)
	})

	t.Run("SaltChangesMostAssignments", func(t *testing.T) {
		t.Parallel()
		other := "fedcba9876543210fedcba9876543210"
		changed := 0
		for i := range 1000 {
			id := fmt.Sprintf("user-%d", i)
			if bucket.Bucket(id, testSalt) != bucket.Bucket(id, other) {
				changed++
			}
		}
		assert.Greater(t, changed, 900)
	})
}

func TestInRollout(t *testing.T) {
	t.Parallel()

	t.Run("Boundaries", func(t *testing.T) {
		t.Parallel()
		for i := range 500 {
			id := fmt.Sprintf("user-%d", i)
			assert.False(t, bucket.InRollout(id, testSalt, 0))
			assert.True(t, bucket.InRollout(id, testSalt, 100))
			assert.False(t, bucket.InRollout(id, testSalt, -5))
			assert.True(t, bucket.InRollout(id, testSalt, 150))
		}
	})

	t.Run("MatchesBucket", func(t *testing.T) {
		t.Parallel()
		for i := range 500 {
			id := fmt.Sprintf("user-%d", i)
			assert.Equal(t, bucket.Bucket(id, testSalt) < 37, bucket.InRollout(id, testSalt, 37))
		}
	})

	t.Run("Distribution", func(t *testing.T) {
		t.Parallel()
		in := 0
		for i := range 1000 {
			if bucket.InRollout(fmt.Sprintf("user-%d", i), testSalt, 50) {
				in++
			}
		}
		assert.InDelta(t, 500, in, 100, "in-rollout count %d outside 40%%-60%%", in)
	})

	t.Run("Monotonic", func(t *testing.T) {
		t.Parallel()
		for i := range 200 {
			id := fmt.Sprintf("user-%d", i)
			if bucket.InRollout(id, testSalt, 20) {
				assert.True(t, bucket.InRollout(id, testSalt, 21), "raising the percentage must keep %s in", id)
			}
		}
	})
}

func TestSelectVariant(t *testing.T) {
	t.Parallel()

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		_, err := bucket.SelectVariant("user-1", testSalt, nil)
		require.ErrorIs(t, err, bucket.ErrNoVariants)
	})

	t.Run("NoPositiveWeight", func(t *testing.T) {
		t.Parallel()
		_, err := bucket.SelectVariant("user-1", testSalt, []bucket.Weighted{
			{Key: "a", Weight: 0},
			{Key: "b", Weight: -3},
		})
		require.ErrorIs(t, err, bucket.ErrInvalidWeights)
	})

	t.Run("SingleVariantAlwaysWins", func(t *testing.T) {
		t.Parallel()
		for _, w := range []int{1, 7, 100, 1000} {
			for i := range 300 {
				key, err := bucket.SelectVariant(fmt.Sprintf("user-%d", i), testSalt, []bucket.Weighted{{Key: "only", Weight: w}})
				require.NoError(t, err)
				assert.Equal(t, "only", key)
			}
		}
	})

	t.Run("ZeroWeightNeverSelected", func(t *testing.T) {
		t.Parallel()
		variants := []bucket.Weighted{
			{Key: "off", Weight: 0},
			{Key: "on", Weight: 1},
			{Key: "dead", Weight: 0},
		}
		for i := range 500 {
			key, err := bucket.SelectVariant(fmt.Sprintf("user-%d", i), testSalt, variants)
			require.NoError(t, err)
			assert.Equal(t, "on", key)
		}
	})

	t.Run("WeightedDistribution", func(t *testing.T) {
		t.Parallel()
		variants := []bucket.Weighted{
			{Key: "control", Weight: 50},
			{Key: "v2", Weight: 25},
			{Key: "v3", Weight: 25},
		}
		counts := map[string]int{}
		for i := range 1000 {
			key, err := bucket.SelectVariant(fmt.Sprintf("user-%d", i), testSalt, variants)
			require.NoError(t, err)
			counts[key]++
		}
		assert.InDelta(t, 500, counts["control"], 100)
		assert.InDelta(t, 250, counts["v2"], 100)
		assert.InDelta(t, 250, counts["v3"], 100)
	})

	t.Run("WeightsNeedNotSumTo100", func(t *testing.T) {
		t.Parallel()
		variants := []bucket.Weighted{
			{Key: "a", Weight: 1},
			{Key: "b", Weight: 1},
		}
		counts := map[string]int{}
		for i := range 1000 {
			key, err := bucket.SelectVariant(fmt.Sprintf("user-%d", i), testSalt, variants)
			require.NoError(t, err)
			counts[key]++
		}
		assert.InDelta(t, 500, counts["a"], 100)
		assert.InDelta(t, 500, counts["b"], 100)
	})

	t.Run("Deterministic", func(t *testing.T) {
		t.Parallel()
		variants := []bucket.Weighted{{Key: "a", Weight: 30}, {Key: "b", Weight: 70}}
		for i := range 200 {
			id := fmt.Sprintf("user-%d", i)
			first, err := bucket.SelectVariant(id, testSalt, variants)
			require.NoError(t, err)
			second, err := bucket.SelectVariant(id, testSalt, variants)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		}
	})

	t.Run("AlignedWithRolloutBucket", func(t *testing.T) {
		t.Parallel()
		variants := []bucket.Weighted{{Key: "low", Weight: 40}, {Key: "high", Weight: 60}}
		for i := range 300 {
			id := fmt.Sprintf("user-%d", i)
			key, err := bucket.SelectVariant(id, testSalt, variants)
			require.NoError(t, err)
			if bucket.InRollout(id, testSalt, 40) {
				assert.Equal(t, "low", key)
			} else {
				assert.Equal(t, "high", key)
			}
		}
	})
}

func TestGenerateSalt(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		s, err := bucket.GenerateSalt()
		require.NoError(t, err)
		assert.Len(t, s, bucket.SaltLength)
		assert.True(t, bucket.IsValidSalt(s), "salt %q", s)
		_, dup := seen[s]
		assert.False(t, dup)
		seen[s] = struct{}{}
	}

	assert.True(t, bucket.IsValidSalt(bucket.MustGenerateSalt()))
}

func TestIsValidSalt(t *testing.T) {
	t.Parallel()

	assert.True(t, bucket.IsValidSalt(testSalt))
	assert.False(t, bucket.IsValidSalt(""))
	assert.False(t, bucket.IsValidSalt("0123456789ABCDEF0123456789ABCDEF"))
	assert.False(t, bucket.IsValidSalt("0123456789abcdef0123456789abcde"))
	assert.False(t, bucket.IsValidSalt("0123456789abcdef0123456789abcdeg"))
}
