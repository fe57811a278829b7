package tools

import (
	"sort"
	"strings"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// Installed is one repository with every revision the server knows about,
// newest first by ctx_rev.
type Installed struct {
	Toolshed  string
	Owner     string
	Name      string
	Revisions []galaxy.Repository
}

// Reference returns the repository reference without revision.
func (i *Installed) Reference() Reference {
	return Reference{Toolshed: ToolshedHost(i.Toolshed), Owner: i.Owner, Name: i.Name}
}

// Active returns the revisions that have not been deactivated, newest first.
func (i *Installed) Active() []galaxy.Repository {
	var out []galaxy.Repository
	for _, r := range i.Revisions {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out
}

// Newest returns the newest active revision, or nil.
func (i *Installed) Newest() *galaxy.Repository {
	for k := range i.Revisions {
		if !i.Revisions[k].Deleted {
			return &i.Revisions[k]
		}
	}
	return nil
}

// HasNewer reports whether an active revision newer than rev is installed.
func (i *Installed) HasNewer(rev galaxy.Repository) bool {
	n := i.Newest()
	return n != nil && n.RevisionNumber() > rev.RevisionNumber()
}

// HasRevision reports whether changeset is installed and active.
func (i *Installed) HasRevision(changeset string) bool {
	for _, r := range i.Active() {
		if r.Revision() == changeset {
			return true
		}
	}
	return false
}

func repoKey(toolshed, owner, name string) string {
	return ToolshedHost(toolshed) + "|" + owner + "|" + name
}

// GroupRepositories collects installed revisions into repositories sorted by
// name (case-insensitive), then owner and toolshed.
func GroupRepositories(repos []galaxy.Repository) []*Installed {
	index := map[string]*Installed{}
	var out []*Installed
	for _, r := range repos {
		key := repoKey(r.ToolShed, r.Owner, r.Name)
		inst, ok := index[key]
		if !ok {
			inst = &Installed{Toolshed: ToolshedHost(r.ToolShed), Owner: r.Owner, Name: r.Name}
			index[key] = inst
			out = append(out, inst)
		}
		inst.Revisions = append(inst.Revisions, r)
	}

	for _, inst := range out {
		sort.SliceStable(inst.Revisions, func(a, b int) bool {
			return inst.Revisions[a].RevisionNumber() > inst.Revisions[b].RevisionNumber()
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		na, nb := strings.ToLower(out[a].Name), strings.ToLower(out[b].Name)
		if na != nb {
			return na < nb
		}
		if out[a].Owner != out[b].Owner {
			return out[a].Owner < out[b].Owner
		}
		return out[a].Toolshed < out[b].Toolshed
	})
	return out
}

// Select returns the repositories matched by ref.
func Select(repos []*Installed, ref Reference) []*Installed {
	var out []*Installed
	for _, r := range repos {
		if ref.Matches(r.Toolshed, r.Owner, r.Name) {
			out = append(out, r)
		}
	}
	return out
}

// ToolRepository returns the repository a tool was installed from. Tools
// without repository metadata are recognised from their GUID
// ("<toolshed>/repos/<owner>/<name>/<tool>/<version>") and the changeset
// from the config file path.
func ToolRepository(t galaxy.Tool) (ref Reference, ok bool) {
	if info := t.ToolShedRepository; info != nil {
		return Reference{
			Toolshed: ToolshedHost(info.ToolShed),
			Owner:    info.Owner,
			Name:     info.Name,
			Revision: info.ChangesetRevision,
		}, true
	}

	i := strings.Index(t.ID, "/repos/")
	if i < 0 {
		return Reference{}, false
	}
	parts := strings.Split(t.ID[i+len("/repos/"):], "/")
	if len(parts) < 2 {
		return Reference{}, false
	}
	ref = Reference{Toolshed: ToolshedHost(t.ID[:i]), Owner: parts[0], Name: parts[1]}

	// .../repos/<owner>/<name>/<changeset>/<name>/...
	marker := "/repos/" + ref.Owner + "/" + ref.Name + "/"
	if j := strings.Index(t.ConfigFile, marker); j >= 0 {
		rest := t.ConfigFile[j+len(marker):]
		if k := strings.Index(rest, "/"); k > 0 {
			ref.Revision = rest[:k]
		}
	}
	return ref, true
}
