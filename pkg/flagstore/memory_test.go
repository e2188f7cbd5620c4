package flagstore_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgk-platform/cgk-sub021/pkg/bucket"
	"github.com/cgk-platform/cgk-sub021/pkg/feature"
	"github.com/cgk-platform/cgk-sub021/pkg/flagstore"
)

const testSalt = "0123456789abcdef0123456789abcdef"

func boolFlag(key string) *feature.Flag {
	return &feature.Flag{Key: key, Type: feature.TypeBoolean, Enabled: true, Salt: testSalt}
}

func newStore(t *testing.T, flags ...*feature.Flag) (*flagstore.MemoryStore, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	s, err := flagstore.NewMemoryStore(flagstore.WithClock(mock), flagstore.WithFlags(flags...))
	require.NoError(t, err)
	return s, mock
}

func TestMemoryStore_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("generates salt and stamps version", func(t *testing.T) {
		t.Parallel()
		s, mock := newStore(t)

		require.NoError(t, s.Create(ctx, &feature.Flag{Key: "a", Type: feature.TypeBoolean}))

		got, err := s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.True(t, bucket.IsValidSalt(got.Salt))
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, mock.Now(), got.CreatedAt)
		assert.Equal(t, mock.Now(), got.UpdatedAt)
	})

	t.Run("keeps provided salt", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)

		require.NoError(t, s.Create(ctx, boolFlag("a")))
		got, err := s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, testSalt, got.Salt)
	})

	t.Run("duplicate key", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t, boolFlag("a"))
		assert.ErrorIs(t, s.Create(ctx, boolFlag("a")), flagstore.ErrFlagExists)
	})

	t.Run("invalid flag", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		err := s.Create(ctx, &feature.Flag{Key: "p", Type: feature.TypePercentage, Percentage: 150})
		assert.ErrorIs(t, err, feature.ErrInvalidFlag)
		assert.ErrorIs(t, s.Create(ctx, nil), feature.ErrInvalidFlag)
	})

	t.Run("caller copy is detached", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		f := boolFlag("a")
		require.NoError(t, s.Create(ctx, f))

		f.Enabled = false
		got, err := s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.True(t, got.Enabled)

		got.Enabled = false
		again, err := s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.True(t, again.Enabled)
	})
}

func TestMemoryStore_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("bumps version and keeps created at", func(t *testing.T) {
		t.Parallel()
		s, mock := newStore(t)
		require.NoError(t, s.Create(ctx, boolFlag("a")))
		created := mock.Now()

		mock.Add(time.Hour)
		upd := boolFlag("a")
		upd.Description = "changed"
		require.NoError(t, s.Update(ctx, upd))

		got, err := s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "changed", got.Description)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, created, got.CreatedAt)
		assert.Equal(t, mock.Now(), got.UpdatedAt)
	})

	t.Run("empty salt inherits", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t, boolFlag("a"))
		require.NoError(t, s.Update(ctx, &feature.Flag{Key: "a", Type: feature.TypeBoolean}))

		got, err := s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, testSalt, got.Salt)
	})

	t.Run("salt is immutable", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t, boolFlag("a"))
		upd := boolFlag("a")
		upd.Salt = strings.Repeat("f", bucket.SaltLength)
		assert.ErrorIs(t, s.Update(ctx, upd), flagstore.ErrSaltImmutable)
	})

	t.Run("missing flag", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		assert.ErrorIs(t, s.Update(ctx, boolFlag("nope")), feature.ErrFlagNotFound)
	})
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStore(t, boolFlag("a"))

	require.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Fetch(ctx, "a")
	assert.ErrorIs(t, err, feature.ErrFlagNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a"), feature.ErrFlagNotFound)
}

func TestMemoryStore_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	beta := boolFlag("b")
	beta.Tags = []string{"beta"}
	ui := boolFlag("c")
	ui.Tags = []string{"ui", "beta"}
	s, _ := newStore(t, ui, boolFlag("a"), beta)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Key, all[1].Key, all[2].Key})

	tagged, err := s.List(ctx, "beta")
	require.NoError(t, err)
	assert.Len(t, tagged, 2)

	uiOnly, err := s.List(ctx, "ui")
	require.NoError(t, err)
	require.Len(t, uiOnly, 1)
	assert.Equal(t, "c", uiOnly[0].Key)

	none, err := s.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)

	fetched, err := s.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, fetched, 3)
}

func TestMemoryStore_SetEnabledAndArchive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStore(t, boolFlag("a"))

	require.NoError(t, s.SetEnabled(ctx, "a", false))
	got, err := s.Fetch(ctx, "a")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, int64(2), got.Version)

	require.NoError(t, s.Archive(ctx, "a"))
	got, err = s.Fetch(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Archived)
	assert.Equal(t, int64(3), got.Version)

	assert.ErrorIs(t, s.SetEnabled(ctx, "missing", true), feature.ErrFlagNotFound)
	assert.ErrorIs(t, s.Archive(ctx, "missing"), feature.ErrFlagNotFound)
}

func TestMemoryStore_Overrides(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("set, fetch, delete", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t, boolFlag("a"))

		require.NoError(t, s.SetOverride(ctx, feature.Override{FlagKey: "a", Scope: feature.ScopeUser, ScopeID: "u1", Value: false}))
		require.NoError(t, s.SetOverride(ctx, feature.Override{FlagKey: "a", Scope: feature.ScopeTenant, ScopeID: "t1", Value: true}))

		got, err := s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, false, got.UserOverrides["u1"].Value)
		assert.Equal(t, true, got.TenantOverrides["t1"].Value)

		require.NoError(t, s.DeleteOverride(ctx, "a", feature.ScopeUser, "u1"))
		got, err = s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.NotContains(t, got.UserOverrides, "u1")

		assert.ErrorIs(t, s.DeleteOverride(ctx, "a", feature.ScopeUser, "u1"), flagstore.ErrOverrideNotFound)
	})

	t.Run("expired overrides are not returned", func(t *testing.T) {
		t.Parallel()
		s, mock := newStore(t, boolFlag("a"))
		expires := mock.Now().Add(time.Minute)

		require.NoError(t, s.SetOverride(ctx, feature.Override{
			FlagKey: "a", Scope: feature.ScopeUser, ScopeID: "u1", Value: true, ExpiresAt: &expires,
		}))

		got, err := s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.Contains(t, got.UserOverrides, "u1")

		mock.Add(time.Minute)
		got, err = s.Fetch(ctx, "a")
		require.NoError(t, err)
		assert.NotContains(t, got.UserOverrides, "u1")
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t, boolFlag("a"))

		cases := []feature.Override{
			{FlagKey: "a", Scope: "group", ScopeID: "g", Value: true},
			{FlagKey: "a", Scope: feature.ScopeUser, Value: true},
			{FlagKey: "a", Scope: feature.ScopeUser, ScopeID: "u", Value: 3},
		}
		for _, o := range cases {
			assert.ErrorIs(t, s.SetOverride(ctx, o), flagstore.ErrInvalidOverride)
		}

		err := s.SetOverride(ctx, feature.Override{FlagKey: "missing", Scope: feature.ScopeUser, ScopeID: "u", Value: true})
		assert.ErrorIs(t, err, feature.ErrFlagNotFound)
	})
}

func TestNewMemoryStore_InvalidSeed(t *testing.T) {
	t.Parallel()
	_, err := flagstore.NewMemoryStore(flagstore.WithFlags(&feature.Flag{Key: "x", Type: "bogus"}))
	assert.ErrorIs(t, err, feature.ErrInvalidFlag)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newStore(t, boolFlag("a"))

	done := make(chan struct{})
	for i := range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 100 {
				if i%2 == 0 {
					_ = s.SetEnabled(ctx, "a", i%4 == 0)
				} else {
					_, _ = s.Fetch(ctx, "a")
				}
			}
		}()
	}
	for range 8 {
		<-done
	}

	got, err := s.Fetch(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(401), got.Version)
}
