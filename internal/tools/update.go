package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// UpdateOptions control Update.
type UpdateOptions struct {
	InstallOptions

	// CheckToolshed asks the toolshed about every repository instead of
	// trusting the status Galaxy has cached.
	CheckToolshed bool
}

// Update installs the newest toolshed revision of every installed
// repository matched by pattern, into the panel section its tools are
// already in. Repositories are handled one at a time and a failure does not
// stop the rest.
func (e *Engine) Update(ctx context.Context, pattern Reference, opts UpdateOptions) ([]Outcome, error) {
	repos, err := e.Galaxy.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	matches := Select(GroupRepositories(repos), pattern)
	if len(matches) == 0 {
		return nil, &galaxy.NotFoundError{Kind: "installed repository", Name: pattern.String()}
	}
	tools, err := e.Galaxy.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	checker := NewChecker(e.Sheds)
	var outcomes []Outcome
	for _, repo := range matches {
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{Ref: repo.Reference(), Result: ResultInterrupted, Message: "interrupted", Err: ctx.Err()})
			break
		}
		outcomes = append(outcomes, e.update(ctx, checker, repo, tools, opts))
	}
	return outcomes, nil
}

func (e *Engine) update(ctx context.Context, checker *Checker, repo *Installed, tools []galaxy.Tool, opts UpdateOptions) Outcome {
	ref := repo.Reference()
	current := repo.Newest()
	if current == nil {
		return Outcome{Ref: ref, Result: ResultSkipped, Message: "no active revision"}
	}
	if s := current.ToolShedStatus; !opts.CheckToolshed && s.Latest() && !s.Update() && !s.Upgrade() {
		return Outcome{Ref: ref, Result: ResultSkipped, Message: "up to date"}
	}

	latest, err := checker.NewestRevision(ctx, ref)
	if err != nil {
		err = fmt.Errorf("failed to check %s: %w", ref, err)
		return Outcome{Ref: ref, Result: ResultFailed, Message: err.Error(), Err: err}
	}
	if repo.HasRevision(latest) {
		return Outcome{Ref: ref, Result: ResultSkipped, Message: "already at latest revision"}
	}

	install := opts.InstallOptions
	install.Section = repositorySection(tools, ref, current.Revision())
	ref.Revision = latest
	logger.Infof("updating %s/%s from %s to %s", ref.Owner, ref.Name, current.RevisionID(), latest)
	return e.Install(ctx, ref, install)
}

// repositorySection returns the panel section id holding the tools of a
// repository revision, falling back to any revision of the repository.
func repositorySection(tools []galaxy.Tool, ref Reference, changeset string) string {
	fallback := ""
	for _, t := range tools {
		r, ok := ToolRepository(t)
		if !ok || r.Owner != ref.Owner || r.Name != ref.Name || r.Toolshed != ToolshedHost(ref.Toolshed) {
			continue
		}
		if t.PanelSectionID == "" {
			continue
		}
		if r.Revision == changeset {
			return t.PanelSectionID
		}
		if fallback == "" {
			fallback = t.PanelSectionID
		}
	}
	return fallback
}

// AmbiguousRevisionError is returned when several revisions are installed
// and none was chosen.
type AmbiguousRevisionError struct {
	Ref       Reference
	Revisions []string
}

func (e *AmbiguousRevisionError) Error() string {
	return fmt.Sprintf("%s has several revisions installed, pick one of: %s (or '*' for all)",
		e.Ref, strings.Join(e.Revisions, ", "))
}

// AllRevisions selects every installed revision for Uninstall.
const AllRevisions = "*"

// Uninstall deactivates the installed revisions of exactly one repository,
// removing them from disk when removeFromDisk is set. ref.Revision picks a
// revision, AllRevisions picks all, and empty is only allowed when a single
// revision is installed.
func (e *Engine) Uninstall(ctx context.Context, ref Reference, removeFromDisk bool) ([]Outcome, error) {
	if ref.IsPattern() {
		return nil, &ParseError{Input: ref.String(), Reason: "wildcards are not allowed when uninstalling"}
	}
	repos, err := e.Galaxy.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	matches := Select(GroupRepositories(repos), Reference{Toolshed: ref.Toolshed, Owner: ref.Owner, Name: ref.Name})
	if len(matches) == 0 {
		return nil, &galaxy.NotFoundError{Kind: "installed repository", Name: ref.String()}
	}
	repo := matches[0]

	// Deactivated revisions can still be removed from disk.
	candidates := repo.Active()
	if removeFromDisk {
		candidates = repo.Revisions
	}

	var targets []galaxy.Repository
	switch ref.Revision {
	case AllRevisions:
		targets = candidates
	case "":
		if len(candidates) > 1 {
			revs := make([]string, 0, len(candidates))
			for _, r := range candidates {
				revs = append(revs, r.RevisionID())
			}
			return nil, &AmbiguousRevisionError{Ref: repo.Reference(), Revisions: revs}
		}
		targets = candidates
	default:
		for _, r := range candidates {
			if r.Revision() == ref.Revision || r.InstalledChangesetRevision == ref.Revision {
				targets = append(targets, r)
			}
		}
	}
	if len(targets) == 0 {
		return nil, &galaxy.NotFoundError{Kind: "installed revision", Name: ref.String()}
	}

	var outcomes []Outcome
	for _, r := range targets {
		target := repo.Reference()
		target.Revision = r.Revision()
		logger.Infof("uninstalling %s", target)
		err := e.Galaxy.UninstallRepository(ctx, galaxy.UninstallRequest{
			ToolShedURL:       target.ToolshedURL(),
			Name:              r.Name,
			Owner:             r.Owner,
			ChangesetRevision: r.Revision(),
			RemoveFromDisk:    removeFromDisk,
		})
		switch {
		case err == nil:
			outcomes = append(outcomes, Outcome{Ref: target, Result: ResultOK, Message: "uninstalled"})
		case ctx.Err() != nil:
			outcomes = append(outcomes, Outcome{Ref: target, Result: ResultInterrupted, Message: "interrupted", Err: ctx.Err()})
			return outcomes, nil
		default:
			err = fmt.Errorf("failed to uninstall %s: %w", target, err)
			outcomes = append(outcomes, Outcome{Ref: target, Result: ResultFailed, Message: err.Error(), Err: err})
		}
	}
	return outcomes, nil
}
