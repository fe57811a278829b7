package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BV-BRC/galaxy-admin/internal/aliases"
	"github.com/BV-BRC/galaxy-admin/internal/galaxytest"
)

func newStore(t *testing.T) *aliases.Store {
	t.Helper()
	s, err := aliases.Open(filepath.Join(t.TempDir(), "keys"))
	require.NoError(t, err)
	return s
}

func TestResolve_Alias(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Add("main", "https://usegalaxy.org", "abc"))

	cfg, err := Resolve(store, "main", Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://usegalaxy.org", cfg.URL)
	assert.Equal(t, "abc", cfg.APIKey)

	cfg, err = Resolve(store, "main", Options{APIKey: "override", NoVerify: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.APIKey)
	assert.True(t, cfg.NoVerify)
}

func TestResolve_URL(t *testing.T) {
	store := newStore(t)
	cfg, err := Resolve(store, "http://localhost:8080", Options{APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.URL)
	assert.Equal(t, "k", cfg.APIKey)
}

func TestResolve_UnknownAlias(t *testing.T) {
	store := newStore(t)
	_, err := Resolve(store, "nowhere", Options{}, nil)
	var nf *aliases.NotFoundError
	assert.True(t, errors.As(err, &nf), "expected NotFoundError, got %v", err)
}

func TestResolve_PromptsForPassword(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Add("main", "https://usegalaxy.org", "abc"))

	var prompted string
	cfg, err := Resolve(store, "main", Options{Username: "admin@example.org"}, func(p string) (string, error) {
		prompted = p
		return "typed", nil
	})
	require.NoError(t, err)
	assert.Contains(t, prompted, "admin@example.org")
	assert.Equal(t, "", cfg.APIKey)
	assert.Equal(t, "admin@example.org", cfg.Email)
	assert.Equal(t, "typed", cfg.Password)
}

func TestConnect_Password(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()
	srv.AddUser("admin@example.org", "admin", "s3cret")

	store := newStore(t)
	c, err := Connect(context.Background(), store, srv.URL, Options{Username: "admin@example.org", Password: "s3cret"}, nil)
	require.NoError(t, err)
	assert.Equal(t, galaxytest.APIKey, c.APIKey())
}

func TestLooksLikeURL(t *testing.T) {
	assert.True(t, LooksLikeURL("https://x"))
	assert.True(t, LooksLikeURL("usegalaxy.org"))
	assert.True(t, LooksLikeURL("localhost:8080"))
	assert.False(t, LooksLikeURL("production"))
}
