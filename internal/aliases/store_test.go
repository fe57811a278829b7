package aliases

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "keys"))
	require.NoError(t, err)
	return s
}

func TestOpen_MissingFile(t *testing.T) {
	s := openTemp(t)
	assert.Empty(t, s.List())
}

func TestOpen_SkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys")
	data := "# aliases\n\nmain\thttps://usegalaxy.org\tabc123\nbroken line\nlocal\thttp://localhost:8080\tdef456\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	s, err := Open(path)
	require.NoError(t, err)

	records := s.List()
	require.Len(t, records, 2)
	assert.Equal(t, Record{Alias: "main", URL: "https://usegalaxy.org", APIKey: "abc123"}, records[0])
	assert.Equal(t, "local", records[1].Alias)
}

func TestAddResolve(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Add("main", "https://usegalaxy.org", "abc123"))

	r, err := s.Resolve("main")
	require.NoError(t, err)
	assert.Equal(t, "https://usegalaxy.org", r.URL)
	assert.Equal(t, "abc123", r.APIKey)

	// Reopening sees the persisted record.
	reopened, err := Open(s.Path())
	require.NoError(t, err)
	r, err = reopened.Resolve("main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", r.APIKey)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAdd_Duplicate(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Add("main", "https://usegalaxy.org", "abc123"))

	err := s.Add("main", "https://other.org", "zzz")
	var dup *DuplicateAliasError
	require.True(t, errors.As(err, &dup), "expected DuplicateAliasError, got %v", err)
	assert.Equal(t, "main", dup.Alias)

	r, err := s.Resolve("main")
	require.NoError(t, err)
	assert.Equal(t, "https://usegalaxy.org", r.URL)
	assert.Equal(t, "abc123", r.APIKey)
}

func TestAdd_RejectsTabs(t *testing.T) {
	s := openTemp(t)
	err := s.Add("bad\talias", "https://usegalaxy.org", "abc")
	var invalid *InvalidFieldError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "alias", invalid.Field)
	assert.Empty(t, s.List())
}

func TestUpdate(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Add("main", "https://usegalaxy.org", "abc123"))

	require.NoError(t, s.Update("main", "", "newkey"))
	r, err := s.Resolve("main")
	require.NoError(t, err)
	assert.Equal(t, "https://usegalaxy.org", r.URL)
	assert.Equal(t, "newkey", r.APIKey)

	require.NoError(t, s.Update("main", "https://usegalaxy.eu", ""))
	r, _ = s.Resolve("main")
	assert.Equal(t, "https://usegalaxy.eu", r.URL)
	assert.Equal(t, "newkey", r.APIKey)

	var nf *NotFoundError
	assert.True(t, errors.As(s.Update("missing", "x", "y"), &nf))
}

func TestRemove(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Add("a", "https://a.org", "1"))
	require.NoError(t, s.Add("b", "https://b.org", "2"))
	require.NoError(t, s.Add("c", "https://c.org", "3"))

	require.NoError(t, s.Remove("b"))

	var nf *NotFoundError
	_, err := s.Resolve("b")
	assert.True(t, errors.As(err, &nf))
	assert.True(t, errors.As(s.Remove("b"), &nf))

	reopened, err := Open(s.Path())
	require.NoError(t, err)
	records := reopened.List()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Alias)
	assert.Equal(t, "c", records[1].Alias)
}

func TestLookup_ByURL(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Add("main", "https://usegalaxy.org/", "abc123"))

	r, err := s.Lookup("https://usegalaxy.org")
	require.NoError(t, err)
	assert.Equal(t, "main", r.Alias)

	_, err = s.Lookup("https://elsewhere.org")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestCommit_LeavesNoTempFiles(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Add("a", "https://a.org", "1"))
	require.NoError(t, s.Update("a", "", "2"))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keys", entries[0].Name())
}
