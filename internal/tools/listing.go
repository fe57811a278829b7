package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// RepositoryStatus is one installed revision with its classification.
type RepositoryStatus struct {
	Repository galaxy.Repository
	Status     Status
}

// Statuses classifies the active revisions of the repositories matched by
// ref. A nil checker trusts Galaxy's cached toolshed status; otherwise the
// toolshed is asked, falling back to the cached status when it cannot be
// reached. With updateable set only revisions that can be updated are
// returned.
func (e *Engine) Statuses(ctx context.Context, ref Reference, checker *Checker, updateable bool) ([]RepositoryStatus, error) {
	repos, err := e.Galaxy.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	var out []RepositoryStatus
	for _, repo := range Select(GroupRepositories(repos), ref) {
		for _, rev := range repo.Active() {
			st := Classify(repo, rev)
			if checker != nil {
				live, err := checker.Classify(ctx, repo, rev)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					logger.Warningf("failed to check %s in the toolshed: %v", repo.Reference(), err)
				} else {
					st = live
				}
			}
			if updateable && !st.Updateable() {
				continue
			}
			out = append(out, RepositoryStatus{Repository: rev, Status: st})
		}
	}
	return out, nil
}

// ToolEntry is an installed tool and, for toolshed tools, the repository
// revision providing it.
type ToolEntry struct {
	Tool       galaxy.Tool
	Repository *galaxy.Repository
}

// Tools lists the toolshed tools of the repositories matched by ref, plus
// built-in tools when builtin is set, sorted by tool name and version.
func (e *Engine) Tools(ctx context.Context, ref Reference, builtin bool) ([]ToolEntry, error) {
	tools, err := e.Galaxy.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	repos, err := e.Galaxy.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	var out []ToolEntry
	for _, t := range tools {
		tr, ok := ToolRepository(t)
		if !ok {
			if builtin && globMatch(ref.Name, t.Name) {
				out = append(out, ToolEntry{Tool: t})
			}
			continue
		}
		if !ref.Matches(tr.Toolshed, tr.Owner, tr.Name) {
			continue
		}
		entry := ToolEntry{Tool: t}
		for i, r := range repos {
			if r.Owner == tr.Owner && r.Name == tr.Name && ToolshedHost(r.ToolShed) == tr.Toolshed && r.Revision() == tr.Revision {
				entry.Repository = &repos[i]
				break
			}
		}
		out = append(out, entry)
	}

	sort.SliceStable(out, func(a, b int) bool {
		na, nb := strings.ToLower(out[a].Tool.Name), strings.ToLower(out[b].Tool.Name)
		if na != nb {
			return na < nb
		}
		return out[a].Tool.Version < out[b].Tool.Version
	})
	return out, nil
}

// Export lists the installed repositories matched by ref as bulk entries,
// in the order their tools appear in the tool panel. Package and data
// manager repositories, which have no panel tools, follow at the end.
func (e *Engine) Export(ctx context.Context, ref Reference) ([]BulkEntry, error) {
	repos, err := e.Galaxy.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	tools, err := e.Galaxy.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	panel, err := e.Galaxy.ToolPanel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool panel: %w", err)
	}
	positions := toolPositions(panel)

	type placed struct {
		entry BulkEntry
		index int
	}
	best := map[string]*placed{}
	for _, t := range tools {
		pos, inPanel := positions[t.ID]
		if !inPanel {
			continue
		}
		tr, ok := ToolRepository(t)
		if !ok {
			continue
		}
		key := repoKey(tr.Toolshed, tr.Owner, tr.Name) + "|" + tr.Revision
		if p, seen := best[key]; !seen || pos.index < p.index {
			best[key] = &placed{entry: BulkEntry{Reference: tr, Section: pos.section}, index: pos.index}
		}
	}

	var out []placed
	tail := len(positions)
	for _, r := range repos {
		if r.Deleted || r.Status != "Installed" || !ref.Matches(r.ToolShed, r.Owner, r.Name) {
			continue
		}
		entry := BulkEntry{Reference: Reference{
			Toolshed: ToolshedHost(r.ToolShed),
			Owner:    r.Owner,
			Name:     r.Name,
			Revision: r.Revision(),
		}}
		if p, ok := best[repoKey(r.ToolShed, r.Owner, r.Name)+"|"+r.Revision()]; ok {
			entry.Section = p.entry.Section
			out = append(out, placed{entry: entry, index: p.index})
			continue
		}
		if strings.HasPrefix(r.Name, "package_") || strings.HasPrefix(r.Name, "data_manager_") {
			out = append(out, placed{entry: entry, index: tail})
			tail++
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].index < out[b].index })
	entries := make([]BulkEntry, 0, len(out))
	for _, p := range out {
		entries = append(entries, p.entry)
	}
	return entries, nil
}
