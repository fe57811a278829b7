package tools

import (
	"fmt"
	"path"
	"strings"
)

// DefaultToolshed is assumed when a reference names no toolshed.
const DefaultToolshed = "toolshed.g2.bx.psu.edu"

// Reference identifies a tool repository, optionally at one revision.
// Toolshed is held without protocol. Owner and Name may hold glob patterns
// when used to select installed repositories.
type Reference struct {
	Toolshed string
	Owner    string
	Name     string
	Revision string
}

func (r Reference) String() string {
	s := r.Toolshed + "/" + r.Owner + "/" + r.Name
	if r.Revision != "" {
		s += "/" + r.Revision
	}
	return s
}

// ToolshedURL returns the full toolshed URL.
func (r Reference) ToolshedURL() string {
	return NormaliseToolshedURL(r.Toolshed)
}

// IsPattern reports whether owner or name contain glob metacharacters.
func (r Reference) IsPattern() bool {
	return strings.ContainsAny(r.Owner+r.Name, "*?[")
}

// Matches reports whether an installed repository is selected by r. The
// revision is not considered.
func (r Reference) Matches(toolshed, owner, name string) bool {
	if r.Toolshed != "" && !globMatch(ToolshedHost(r.Toolshed), ToolshedHost(toolshed)) {
		return false
	}
	return globMatch(r.Owner, owner) && globMatch(r.Name, name)
}

func globMatch(pattern, s string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, s)
	return err == nil && ok
}

// ParseError reports a repository reference that could not be understood.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid repository specification '%s': %s", e.Input, e.Reason)
}

// NormaliseToolshedURL adds https:// to a toolshed given without protocol.
func NormaliseToolshedURL(toolshed string) string {
	if strings.HasPrefix(toolshed, "http://") || strings.HasPrefix(toolshed, "https://") {
		return toolshed
	}
	return "https://" + toolshed
}

// ToolshedHost strips the protocol and trailing slashes from a toolshed URL.
func ToolshedHost(toolshed string) string {
	toolshed = strings.TrimPrefix(toolshed, "https://")
	toolshed = strings.TrimPrefix(toolshed, "http://")
	return strings.TrimRight(toolshed, "/")
}

func hasProtocol(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func looksLikeHost(s string) bool {
	return strings.ContainsAny(s, ".:") || s == "localhost"
}

func isMarker(s string) bool {
	return s == "view" || s == "repo" || s == "repos"
}

// ParseReference accepts the shapes
//
//	https://toolshed.g2.bx.psu.edu/view/devteam/fastqc[/e7b2202befea]
//	toolshed.g2.bx.psu.edu/view/devteam/fastqc
//	devteam/fastqc[/e7b2202befea]
//	[toolshed] devteam fastqc [e7b2202befea]
//
// Revisions of the form "3:e7b2202befea" keep only the changeset. An empty
// defaultShed means DefaultToolshed.
func ParseReference(args []string, defaultShed string) (Reference, error) {
	if defaultShed == "" {
		defaultShed = DefaultToolshed
	}
	input := strings.Join(args, " ")
	if len(args) == 0 {
		return Reference{}, &ParseError{Input: input, Reason: "no repository given"}
	}

	var shed string
	var rest []string

	if len(args) == 1 {
		spec := strings.Trim(args[0], "/")
		proto := hasProtocol(spec)
		parts := splitPath(ToolshedHost(spec))
		if len(parts) == 0 {
			return Reference{}, &ParseError{Input: input, Reason: "empty specification"}
		}

		marker := -1
		for i, p := range parts {
			if isMarker(p) {
				marker = i
				break
			}
		}
		switch {
		case marker == 0:
			return Reference{}, &ParseError{Input: input, Reason: "missing toolshed before '" + parts[0] + "'"}
		case marker > 0:
			shed, rest = strings.Join(parts[:marker], "/"), parts[marker+1:]
		case proto || looksLikeHost(parts[0]):
			shed, rest = parts[0], parts[1:]
		default:
			shed, rest = defaultShed, parts
		}
	} else {
		first := strings.TrimRight(args[0], "/")
		if hasProtocol(first) || looksLikeHost(first) {
			shed = ToolshedHost(first)
			for _, m := range []string{"/view", "/repos", "/repo"} {
				shed = strings.TrimSuffix(shed, m)
			}
			rest = args[1:]
		} else {
			shed, rest = defaultShed, args
		}
	}

	return fromParts(input, ToolshedHost(shed), rest)
}

func splitPath(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func fromParts(input, shed string, rest []string) (Reference, error) {
	switch {
	case len(rest) < 2:
		return Reference{}, &ParseError{Input: input, Reason: "need both owner and repository name"}
	case len(rest) > 3:
		return Reference{}, &ParseError{Input: input, Reason: "too many components"}
	}

	ref := Reference{Toolshed: shed, Owner: rest[0], Name: rest[1]}
	for _, v := range []string{ref.Owner, ref.Name} {
		if v == "" || strings.ContainsAny(v, "/ \t") {
			return Reference{}, &ParseError{Input: input, Reason: fmt.Sprintf("bad owner or name '%s'", v)}
		}
	}

	if len(rest) == 3 {
		rev := rest[2]
		if i := strings.Index(rev, ":"); i >= 0 {
			rev = rev[i+1:]
		}
		if rev == "" || strings.ContainsAny(rev, "/ \t") {
			return Reference{}, &ParseError{Input: input, Reason: fmt.Sprintf("bad revision '%s'", rest[2])}
		}
		ref.Revision = rev
	}
	return ref, nil
}
