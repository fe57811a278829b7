package tools

import (
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// Section is a tool panel section with the tools it holds. Tools at the top
// level of the panel are collected in a section with empty ID and name.
type Section struct {
	ID    string
	Name  string
	Tools []galaxy.PanelElement
}

// FindSection returns the panel section whose id or name is s, preferring
// an id match.
func FindSection(panel []galaxy.PanelElement, s string) *galaxy.PanelElement {
	for i := range panel {
		if panel[i].ModelClass == galaxy.ModelToolSection && panel[i].ID == s {
			return &panel[i]
		}
	}
	for i := range panel {
		if panel[i].ModelClass == galaxy.ModelToolSection && panel[i].Name == s {
			return &panel[i]
		}
	}
	return nil
}

// Sections returns the panel sections in display order. Labels are dropped.
func Sections(panel []galaxy.PanelElement) []Section {
	var out []Section
	top := -1
	for _, e := range panel {
		switch e.ModelClass {
		case galaxy.ModelToolSection:
			s := Section{ID: e.ID, Name: e.Name}
			for _, t := range e.Elems {
				if t.ModelClass == galaxy.ModelTool {
					s.Tools = append(s.Tools, t)
				}
			}
			out = append(out, s)
		case galaxy.ModelTool:
			if top < 0 {
				out = append(out, Section{})
				top = len(out) - 1
			}
			out[top].Tools = append(out[top].Tools, e)
		}
	}
	return out
}

// panelPosition is where a tool appears in the panel.
type panelPosition struct {
	index   int
	section string
}

// toolPositions maps tool ids to their position in the panel.
func toolPositions(panel []galaxy.PanelElement) map[string]panelPosition {
	pos := map[string]panelPosition{}
	n := 0
	for _, e := range panel {
		switch e.ModelClass {
		case galaxy.ModelTool:
			pos[e.ID] = panelPosition{index: n}
			n++
		case galaxy.ModelToolSection:
			for _, t := range e.Elems {
				if t.ModelClass != galaxy.ModelTool {
					continue
				}
				pos[t.ID] = panelPosition{index: n, section: e.Name}
				n++
			}
		}
	}
	return pos
}
