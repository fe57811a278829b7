package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BV-BRC/galaxy-admin/internal/galaxytest"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

func shedTool(repo galaxy.Repository, section, sectionName string) galaxy.Tool {
	return galaxy.Tool{
		ID:               repo.ToolShed + "/repos/" + repo.Owner + "/" + repo.Name + "/" + repo.Name + "/1.0",
		Name:             repo.Name,
		Version:          "1.0",
		PanelSectionID:   section,
		PanelSectionName: sectionName,
		ToolShedRepository: &galaxy.ToolShedRepoInfo{
			ToolShed:          repo.ToolShed,
			Owner:             repo.Owner,
			Name:              repo.Name,
			ChangesetRevision: repo.Revision(),
		},
	}
}

func TestUpdate_InstallsNewestIntoSameSection(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()
	srv.AddShedRepository("devteam", "fastqc", "c1", "c2")
	old := installed("fastqc", "0", "c1", status(false, true, false, false))
	srv.AddInstalled(old)
	srv.AddTool(shedTool(old, "qc", "Quality Control"))

	outcomes, err := newEngine(srv).Update(context.Background(), Reference{Name: "fastqc"}, UpdateOptions{})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ResultOK, outcomes[0].Result)

	installs := srv.Installs()
	require.Len(t, installs, 1)
	assert.Equal(t, "c2", installs[0].ChangesetRevision)
	assert.Equal(t, "qc", installs[0].ToolPanelSectionID)
}

func TestUpdate_SkipsLatest(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()
	srv.AddShedRepository("devteam", "fastqc", "c1", "c2")
	srv.AddShedRepository("devteam", "bwa", "b1")
	srv.AddInstalled(installed("fastqc", "1", "c2", nil))
	srv.AddInstalled(installed("bwa", "0", "b1", status(true, false, false, false)))

	outcomes, err := newEngine(srv).Update(context.Background(), Reference{Owner: "devteam"}, UpdateOptions{})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, ResultSkipped, o.Result, o.Ref.String())
	}
	assert.Empty(t, srv.Installs())
}

func TestUpdate_ContinuesAfterFailure(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()
	// bwa is no longer in the toolshed.
	srv.AddShedRepository("devteam", "fastqc", "c1", "c2")
	srv.AddInstalled(installed("bwa", "0", "b1", nil))
	srv.AddInstalled(installed("fastqc", "0", "c1", nil))

	outcomes, err := newEngine(srv).Update(context.Background(), Reference{Name: "*"}, UpdateOptions{CheckToolshed: true})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, ResultFailed, outcomes[0].Result)
	assert.Equal(t, ResultOK, outcomes[1].Result)

	var bf *BatchFailure
	require.True(t, errors.As(Collect(outcomes), &bf))
	assert.Equal(t, "bwa", bf.Failed[0].Ref.Name)
}

func TestUpdate_NoMatch(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()

	_, err := newEngine(srv).Update(context.Background(), Reference{Name: "nothing*"}, UpdateOptions{})
	var nf *galaxy.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestUninstall(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()
	srv.AddInstalled(installed("fastqc", "0", "c1", nil))
	srv.AddInstalled(installed("fastqc", "1", "c2", nil))
	e := newEngine(srv)
	ctx := context.Background()

	_, err := e.Uninstall(ctx, fastqc, false)
	var amb *AmbiguousRevisionError
	require.True(t, errors.As(err, &amb), "expected AmbiguousRevisionError, got %v", err)
	assert.Equal(t, []string{"1:c2", "0:c1"}, amb.Revisions)

	ref := fastqc
	ref.Revision = "c1"
	outcomes, err := e.Uninstall(ctx, ref, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ResultOK, outcomes[0].Result)

	// Only c2 is still active, so no revision is needed.
	outcomes, err = e.Uninstall(ctx, fastqc, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "c2", outcomes[0].Ref.Revision)

	ref.Revision = AllRevisions
	outcomes, err = e.Uninstall(ctx, ref, true)
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.Empty(t, srv.Repositories())

	uninstalls := srv.Uninstalls()
	require.Len(t, uninstalls, 4)
	assert.False(t, uninstalls[0].RemoveFromDisk)
	assert.True(t, uninstalls[3].RemoveFromDisk)
}

func TestUninstall_Errors(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()
	srv.AddInstalled(installed("fastqc", "0", "c1", nil))
	e := newEngine(srv)
	ctx := context.Background()

	var nf *galaxy.NotFoundError
	_, err := e.Uninstall(ctx, Reference{Toolshed: DefaultToolshed, Owner: "devteam", Name: "bwa"}, false)
	assert.True(t, errors.As(err, &nf))

	ref := fastqc
	ref.Revision = "zzz"
	_, err = e.Uninstall(ctx, ref, false)
	assert.True(t, errors.As(err, &nf))

	var perr *ParseError
	_, err = e.Uninstall(ctx, Reference{Toolshed: DefaultToolshed, Owner: "devteam", Name: "fast*"}, false)
	assert.True(t, errors.As(err, &perr))
}

func TestStatuses(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()
	srv.AddInstalled(installed("fastqc", "0", "c1", status(false, true, false, false)))
	srv.AddInstalled(installed("bwa", "0", "b1", status(true, false, false, false)))

	e := newEngine(srv)
	all, err := e.Statuses(context.Background(), Reference{}, nil, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "bwa", all[0].Repository.Name)

	updateable, err := e.Statuses(context.Background(), Reference{}, nil, true)
	require.NoError(t, err)
	require.Len(t, updateable, 1)
	assert.Equal(t, "fastqc", updateable[0].Repository.Name)
}
