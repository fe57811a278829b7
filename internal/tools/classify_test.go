package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BV-BRC/galaxy-admin/internal/galaxytest"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

func status(latest, update, upgrade, deprecated bool) *galaxy.ToolShedStatus {
	b := func(v bool) string {
		if v {
			return "True"
		}
		return "False"
	}
	return &galaxy.ToolShedStatus{
		LatestInstallableRevision: b(latest),
		RevisionUpdate:            b(update),
		RevisionUpgrade:           b(upgrade),
		RepositoryDeprecated:      b(deprecated),
	}
}

func installed(name, ctxRev, changeset string, st *galaxy.ToolShedStatus) galaxy.Repository {
	return galaxy.Repository{
		Name:                       name,
		Owner:                      "devteam",
		ToolShed:                   DefaultToolshed,
		ChangesetRevision:          changeset,
		InstalledChangesetRevision: changeset,
		CtxRev:                     ctxRev,
		Status:                     "Installed",
		ToolShedStatus:             st,
	}
}

func TestGroupRepositories(t *testing.T) {
	repos := GroupRepositories([]galaxy.Repository{
		installed("fastqc", "3", "c3", nil),
		installed("bwa", "1", "b1", nil),
		installed("fastqc", "11", "c11", nil),
	})
	require.Len(t, repos, 2)
	assert.Equal(t, "bwa", repos[0].Name)
	assert.Equal(t, "c11", repos[1].Revisions[0].Revision())
	assert.Equal(t, "c3", repos[1].Revisions[1].Revision())
}

func TestClassify_Cached(t *testing.T) {
	tests := []struct {
		name string
		st   *galaxy.ToolShedStatus
		want string
	}{
		{"latest", status(true, false, false, false), " *"},
		{"update", status(false, true, false, false), " u"},
		{"upgrade", status(false, true, true, false), " U"},
		{"deprecated latest", status(true, false, false, true), "D*"},
		{"unknown", nil, "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rev := installed("fastqc", "3", "c3", tt.st)
			repo := GroupRepositories([]galaxy.Repository{rev})[0]
			assert.Equal(t, tt.want, Classify(repo, rev).String())
		})
	}
}

func TestClassify_NewerInstalledWins(t *testing.T) {
	old := installed("fastqc", "3", "c3", status(false, true, true, false))
	newer := installed("fastqc", "5", "c5", status(true, false, false, false))
	repo := GroupRepositories([]galaxy.Repository{old, newer})[0]

	assert.Equal(t, " ^", Classify(repo, old).String())
	assert.Equal(t, " *", Classify(repo, newer).String())

	// A deactivated newer revision does not count.
	newer.Deleted = true
	repo = GroupRepositories([]galaxy.Repository{old, newer})[0]
	assert.Equal(t, " U", Classify(repo, old).String())
}

func TestChecker_Classify(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()
	srv.AddShedRepository("devteam", "fastqc", "c1", "c2")
	srv.AddShedRepository("devteam", "bwa", "b1", "b2")
	srv.SetShedTools("devteam", "fastqc", "c1", galaxy.ShedTool{ID: "fastqc", Version: "0.71"})
	srv.SetShedTools("devteam", "fastqc", "c2", galaxy.ShedTool{ID: "fastqc", Version: "0.72"})
	srv.SetShedTools("devteam", "bwa", "b1", galaxy.ShedTool{ID: "bwa", Version: "0.7.17"})
	srv.SetShedTools("devteam", "bwa", "b2", galaxy.ShedTool{ID: "bwa", Version: "0.7.17"})

	checker := NewChecker(shedsFor(srv))
	ctx := context.Background()

	// Cached status claims latest; the toolshed knows better.
	rev := installed("fastqc", "0", "c1", status(true, false, false, false))
	st, err := checker.Classify(ctx, GroupRepositories([]galaxy.Repository{rev})[0], rev)
	require.NoError(t, err)
	assert.Equal(t, rune(TagUpgrade), st.Tag)

	rev = installed("bwa", "0", "b1", nil)
	st, err = checker.Classify(ctx, GroupRepositories([]galaxy.Repository{rev})[0], rev)
	require.NoError(t, err)
	assert.Equal(t, rune(TagUpdate), st.Tag)

	rev = installed("fastqc", "1", "c2", nil)
	st, err = checker.Classify(ctx, GroupRepositories([]galaxy.Repository{rev})[0], rev)
	require.NoError(t, err)
	assert.Equal(t, rune(TagLatest), st.Tag)
}

func TestVersionBump(t *testing.T) {
	tool := func(id, v string) galaxy.ShedTool { return galaxy.ShedTool{ID: id, Version: v} }
	tests := []struct {
		name         string
		older, newer []galaxy.ShedTool
		want         bool
	}{
		{"same", []galaxy.ShedTool{tool("a", "1.0")}, []galaxy.ShedTool{tool("a", "1.0")}, false},
		{"higher", []galaxy.ShedTool{tool("a", "1.0")}, []galaxy.ShedTool{tool("a", "1.1")}, true},
		{"lower", []galaxy.ShedTool{tool("a", "2.0.1")}, []galaxy.ShedTool{tool("a", "2.0.0")}, false},
		{"not semver", []galaxy.ShedTool{tool("a", "1.0+galaxy1")}, []galaxy.ShedTool{tool("a", "rc-x")}, true},
		{"new tool", []galaxy.ShedTool{tool("a", "1.0")}, []galaxy.ShedTool{tool("a", "1.0"), tool("b", "1.0")}, true},
		{"removed tool", []galaxy.ShedTool{tool("a", "1.0"), tool("b", "1.0")}, []galaxy.ShedTool{tool("a", "1.0")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VersionBump(tt.older, tt.newer))
		})
	}
}
