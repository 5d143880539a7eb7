package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/lodge/cache"
)

func newStore(t *testing.T) cache.Store {
	t.Helper()
	store := cache.NewMemoryStore(cache.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSessionIsNotStoredUntilUsed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	s, err := Load(ctx, store, "", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, s.IsNew())
	assert.NotEmpty(t, s.ID())

	require.NoError(t, s.Commit(ctx))
	assert.Nil(t, s.Cookie())
	assert.False(t, store.Exist(ctx, "session:"+s.ID()))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	opts := DefaultOptions()
	opts.Secret = "s3cret"

	s, err := Load(ctx, store, "", opts)
	require.NoError(t, err)
	s.Set("user", "ada")
	s.Set("visits", 3)
	require.NoError(t, s.Commit(ctx))

	cookie := s.Cookie()
	require.NotNil(t, cookie)
	assert.Equal(t, "lodge_session", cookie.Name)
	assert.True(t, cookie.HTTPOnly)
	assert.Contains(t, cookie.Value, s.ID()+".")

	again, err := Load(ctx, store, cookie.Value, opts)
	require.NoError(t, err)
	assert.False(t, again.IsNew())
	assert.Equal(t, s.ID(), again.ID())
	assert.Equal(t, "ada", again.String("user"))
	v, ok := again.Get("visits")
	require.True(t, ok)
	assert.EqualValues(t, 3, v)
}

func TestForgedTokenStartsOver(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	opts := DefaultOptions()
	opts.Secret = "s3cret"

	s, err := Load(ctx, store, "", opts)
	require.NoError(t, err)
	s.Set("user", "ada")
	require.NoError(t, s.Commit(ctx))

	tests := []struct {
		name  string
		token string
	}{
		{"unsigned", s.ID()},
		{"bad signature", s.ID() + ".AAAA"},
		{"not a uuid", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(ctx, store, tt.token, opts)
			require.NoError(t, err)
			assert.True(t, got.IsNew())
			assert.NotEqual(t, s.ID(), got.ID())
		})
	}
}

func TestRegenerate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	opts := DefaultOptions()

	s, err := Load(ctx, store, "", opts)
	require.NoError(t, err)
	s.Set("user", "ada")
	require.NoError(t, s.Commit(ctx))
	old := s.ID()

	loaded, err := Load(ctx, store, old, opts)
	require.NoError(t, err)
	loaded.Regenerate()
	require.NoError(t, loaded.Commit(ctx))

	assert.NotEqual(t, old, loaded.ID())
	assert.False(t, store.Exist(ctx, "session:"+old))
	assert.True(t, store.Exist(ctx, "session:"+loaded.ID()))
	assert.Equal(t, "ada", loaded.String("user"))
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	opts := DefaultOptions()

	s, err := Load(ctx, store, "", opts)
	require.NoError(t, err)
	s.Set("user", "ada")
	require.NoError(t, s.Commit(ctx))

	s.Destroy()
	require.NoError(t, s.Commit(ctx))
	assert.False(t, store.Exist(ctx, "session:"+s.ID()))

	cookie := s.Cookie()
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.Empty(t, cookie.Value)
}

func TestFlashAndClear(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, newStore(t), "", DefaultOptions())
	require.NoError(t, err)

	s.Set("notice", "saved")
	v, ok := s.Flash("notice")
	assert.True(t, ok)
	assert.Equal(t, "saved", v)
	_, ok = s.Get("notice")
	assert.False(t, ok)

	s.Set("a", 1)
	s.Clear()
	assert.Empty(t, s.All())
}

func TestOptionsFrom(t *testing.T) {
	o := OptionsFrom(map[string]any{
		"cookie":   "sid",
		"ttl":      3600,
		"secure":   "true",
		"sameSite": "Strict",
	})
	assert.Equal(t, "sid", o.CookieName)
	assert.Equal(t, time.Hour, o.TTL)
	assert.True(t, o.Secure)
	assert.Equal(t, "Strict", o.SameSite)
	assert.True(t, o.HTTPOnly)

	assert.Equal(t, 30*time.Minute, OptionsFrom(map[string]any{"ttl": "30m"}).TTL)
}

func TestEncryptedSession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	opts := DefaultOptions()
	opts.Secret = "s3cret"
	opts.Encrypt = true

	s, err := Load(ctx, store, "", opts)
	require.NoError(t, err)
	s.Set("user", "ada")
	require.NoError(t, s.Commit(ctx))

	raw, found := store.Read(ctx, "session:"+s.ID())
	require.True(t, found)
	assert.NotContains(t, string(raw), "ada")

	token := s.Cookie().Value
	again, err := Load(ctx, store, token, opts)
	require.NoError(t, err)
	assert.Equal(t, "ada", again.String("user"))

	rotated := opts
	rotated.Secret = "rotated"
	// The cookie signature no longer verifies either, so a new session starts.
	fresh, err := Load(ctx, store, token, rotated)
	require.NoError(t, err)
	assert.True(t, fresh.IsNew())

	_, err = Load(ctx, store, "", Options{Encrypt: true})
	assert.Error(t, err)
}
