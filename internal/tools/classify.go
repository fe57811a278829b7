package tools

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// Tag values for the primary update status of an installed revision.
const (
	TagNone        = ' '
	TagLatest      = '*'
	TagNewerExists = '^'
	TagUpdate      = 'u'
	TagUpgrade     = 'U'
)

// Status is the classification of one installed revision.
type Status struct {
	Tag        rune
	Deprecated bool
}

// String renders the two character status column, e.g. "D*" or " U".
func (s Status) String() string {
	d := ' '
	if s.Deprecated {
		d = 'D'
	}
	tag := s.Tag
	if tag == 0 {
		tag = TagNone
	}
	return string([]rune{d, tag})
}

// Updateable reports whether a newer revision can be installed.
func (s Status) Updateable() bool {
	return s.Tag == TagUpdate || s.Tag == TagUpgrade
}

// Classify uses the toolshed status Galaxy caches for each revision.
func Classify(repo *Installed, rev galaxy.Repository) Status {
	st := Status{Tag: TagNone, Deprecated: rev.ToolShedStatus.Deprecated()}
	switch s := rev.ToolShedStatus; {
	case repo.HasNewer(rev):
		st.Tag = TagNewerExists
	case s.Upgrade():
		st.Tag = TagUpgrade
	case s.Update():
		st.Tag = TagUpdate
	case s.Latest():
		st.Tag = TagLatest
	}
	return st
}

// Toolshed is the part of the toolshed API classification and installs use.
type Toolshed interface {
	OrderedInstallableRevisions(ctx context.Context, owner, name string) ([]string, error)
	RevisionTools(ctx context.Context, owner, name, changeset string) ([]galaxy.ShedTool, error)
}

// ShedFunc returns a client for the toolshed host.
type ShedFunc func(toolshed string) Toolshed

// Checker classifies revisions against the live toolshed, caching toolshed
// answers for the lifetime of the checker.
type Checker struct {
	Sheds ShedFunc

	newest map[string]string
	tools  map[string][]galaxy.ShedTool
}

// NewChecker creates a Checker.
func NewChecker(sheds ShedFunc) *Checker {
	return &Checker{Sheds: sheds, newest: map[string]string{}, tools: map[string][]galaxy.ShedTool{}}
}

// NewestRevision returns the newest installable changeset of a repository.
func (c *Checker) NewestRevision(ctx context.Context, ref Reference) (string, error) {
	key := repoKey(ref.Toolshed, ref.Owner, ref.Name)
	if rev, ok := c.newest[key]; ok {
		return rev, nil
	}
	revs, err := c.Sheds(ref.Toolshed).OrderedInstallableRevisions(ctx, ref.Owner, ref.Name)
	if err != nil {
		return "", err
	}
	if len(revs) == 0 {
		return "", &galaxy.NotFoundError{Kind: "installable revision", Name: ref.String()}
	}
	c.newest[key] = revs[len(revs)-1]
	return c.newest[key], nil
}

func (c *Checker) revisionTools(ctx context.Context, ref Reference, changeset string) ([]galaxy.ShedTool, error) {
	key := repoKey(ref.Toolshed, ref.Owner, ref.Name) + "|" + changeset
	if t, ok := c.tools[key]; ok {
		return t, nil
	}
	t, err := c.Sheds(ref.Toolshed).RevisionTools(ctx, ref.Owner, ref.Name, changeset)
	if err != nil {
		return nil, err
	}
	c.tools[key] = t
	return t, nil
}

// Classify compares rev with the newest installable revision in the
// toolshed. When the installed tool versions cannot be fetched the upgrade
// decision falls back to Galaxy's cached status.
func (c *Checker) Classify(ctx context.Context, repo *Installed, rev galaxy.Repository) (Status, error) {
	st := Status{Tag: TagNone, Deprecated: rev.ToolShedStatus.Deprecated()}
	if repo.HasNewer(rev) {
		st.Tag = TagNewerExists
		return st, nil
	}

	ref := repo.Reference()
	newest, err := c.NewestRevision(ctx, ref)
	if err != nil {
		return st, err
	}
	if rev.Revision() == newest {
		st.Tag = TagLatest
		return st, nil
	}

	latest, err := c.revisionTools(ctx, ref, newest)
	if err != nil {
		return st, err
	}
	installed, err := c.revisionTools(ctx, ref, rev.Revision())
	if err != nil {
		logger.Debugf("no tool metadata for %s %s: %v", ref, rev.Revision(), err)
		st.Tag = TagUpdate
		if rev.ToolShedStatus.Upgrade() {
			st.Tag = TagUpgrade
		}
		return st, nil
	}

	st.Tag = TagUpdate
	if VersionBump(installed, latest) {
		st.Tag = TagUpgrade
	}
	return st, nil
}

// VersionBump reports whether any tool in newer is absent from older or has
// a higher version there. Versions that are not semantic versions are
// compared for equality only.
func VersionBump(older, newer []galaxy.ShedTool) bool {
	have := make(map[string]string, len(older))
	for _, t := range older {
		have[t.ID] = t.Version
	}
	for _, t := range newer {
		prev, ok := have[t.ID]
		if !ok {
			return true
		}
		if prev == t.Version {
			continue
		}
		pv, perr := semver.NewVersion(prev)
		nv, nerr := semver.NewVersion(t.Version)
		if perr != nil || nerr != nil || nv.GreaterThan(pv) {
			return true
		}
	}
	return false
}
