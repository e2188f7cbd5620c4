package flagstore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
	"github.com/cgk-platform/cgk-sub021/pkg/flagstore"
)

const flagsYAML = `
flags:
  - key: new-checkout
    type: percentage
    enabled: true
    salt: 0123456789abcdef0123456789abcdef
    percentage: 25
    disabled_tenants: [acme]
    user_overrides:
      u-1:
        value: true
    tags: [checkout]
  - key: button-color
    type: variant
    enabled: true
    salt: fedcba9876543210fedcba9876543210
    variants:
      - key: blue
        weight: 50
      - key: green
        weight: 50
    rules:
      - name: staff
        conditions:
          - attribute: email
            operator: ends_with
            value: "@example.com"
        value: green
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	flags, err := flagstore.LoadYAML(strings.NewReader(flagsYAML))
	require.NoError(t, err)
	require.Len(t, flags, 2)

	checkout := flags[0]
	assert.Equal(t, "new-checkout", checkout.Key)
	assert.Equal(t, feature.TypePercentage, checkout.Type)
	assert.Equal(t, 25, checkout.Percentage)
	assert.Equal(t, []string{"acme"}, checkout.DisabledTenants)
	require.Contains(t, checkout.UserOverrides, "u-1")
	assert.Equal(t, feature.ScopeUser, checkout.UserOverrides["u-1"].Scope)
	assert.Equal(t, "new-checkout", checkout.UserOverrides["u-1"].FlagKey)

	color := flags[1]
	require.Len(t, color.Variants, 2)
	require.Len(t, color.Rules, 1)
	assert.Equal(t, feature.OpEndsWith, color.Rules[0].Conditions[0].Operator)
}

func TestLoadYAML_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		err  error
	}{
		{
			name: "missing salt",
			doc:  "flags:\n  - key: a\n    type: boolean\n",
			err:  flagstore.ErrMissingSalt,
		},
		{
			name: "invalid flag",
			doc:  "flags:\n  - key: a\n    type: percentage\n    salt: 0123456789abcdef0123456789abcdef\n    percentage: 101\n",
			err:  feature.ErrInvalidFlag,
		},
		{
			name: "duplicate key",
			doc: "flags:\n  - key: a\n    type: boolean\n    salt: 0123456789abcdef0123456789abcdef\n" +
				"  - key: a\n    type: boolean\n    salt: 0123456789abcdef0123456789abcdef\n",
			err: flagstore.ErrFlagExists,
		},
		{
			name: "unknown field",
			doc:  "flags:\n  - key: a\n    rollout: 10\n",
			err:  flagstore.ErrDecodeFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := flagstore.LoadYAML(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLoadYAML_Empty(t *testing.T) {
	t.Parallel()
	flags, err := flagstore.LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestNewMemoryStoreFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "flags.yaml")
	require.NoError(t, os.WriteFile(path, []byte(flagsYAML), 0o600))

	s, err := flagstore.NewMemoryStoreFromFile(path)
	require.NoError(t, err)

	f, err := s.Fetch(context.Background(), "button-color")
	require.NoError(t, err)
	assert.Equal(t, "fedcba9876543210fedcba9876543210", f.Salt)

	_, err = flagstore.NewMemoryStoreFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, flagstore.ErrDecodeFile)
}
