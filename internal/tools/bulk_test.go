package tools

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BV-BRC/galaxy-admin/internal/galaxytest"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

func TestReadBulk(t *testing.T) {
	input := strings.Join([]string{
		"# exported from usegalaxy",
		"toolshed.g2.bx.psu.edu\tdevteam\tfastqc\te7b2202befea\tQuality Control",
		"",
		"https://toolshed.g2.bx.psu.edu/\tiuc\tbwa",
		"toolshed.g2.bx.psu.edu\tiuc\tpackage_samtools\t3:abc\t",
	}, "\n")

	entries, err := ReadBulk(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Quality Control", entries[0].Section)
	assert.Equal(t, "toolshed.g2.bx.psu.edu", entries[1].Toolshed)
	assert.Empty(t, entries[1].Revision)
	assert.Equal(t, "abc", entries[2].Revision)
	assert.Empty(t, entries[2].Section)

	_, err = ReadBulk(strings.NewReader("toolshed.g2.bx.psu.edu\tdevteam\n"))
	assert.ErrorContains(t, err, "line 1")
}

func TestExport_RoundTrip(t *testing.T) {
	srv := galaxytest.NewServer()
	defer srv.Close()

	bwa := installed("bwa", "4", "b4", nil)
	fastqc := installed("fastqc", "2", "c2", nil)
	samtools := installed("package_samtools_1_9", "0", "s0", nil)
	hidden := installed("hidden", "0", "h0", nil)
	gone := installed("cutadapt", "1", "x1", nil)
	gone.Deleted = true
	for _, r := range []galaxy.Repository{bwa, fastqc, samtools, hidden, gone} {
		srv.AddInstalled(r)
	}
	// Panel order: Quality Control (fastqc) then Mapping (bwa).
	srv.AddTool(shedTool(fastqc, "qc", "Quality Control"))
	srv.AddTool(shedTool(bwa, "mapping", "Mapping"))

	entries, err := newEngine(srv).Export(context.Background(), Reference{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "fastqc", entries[0].Name)
	assert.Equal(t, "Quality Control", entries[0].Section)
	assert.Equal(t, "bwa", entries[1].Name)
	assert.Equal(t, "package_samtools_1_9", entries[2].Name)
	assert.Equal(t, "", entries[2].Section)

	var buf bytes.Buffer
	require.NoError(t, WriteBulk(&buf, entries))
	assert.Contains(t, buf.String(), "toolshed.g2.bx.psu.edu\tdevteam\tfastqc\tc2\tQuality Control\n")

	back, err := ReadBulk(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries, back)
}

func TestSections(t *testing.T) {
	panel := []galaxy.PanelElement{
		{ID: "upload1", Name: "Upload", ModelClass: galaxy.ModelTool},
		{ID: "lbl", Name: "NGS", ModelClass: galaxy.ModelToolSectionLabel},
		{ID: "qc", Name: "Quality Control", ModelClass: galaxy.ModelToolSection, Elems: []galaxy.PanelElement{
			{ID: "fastqc", ModelClass: galaxy.ModelTool},
			{ID: "sub", ModelClass: galaxy.ModelToolSectionLabel},
		}},
		{ID: "cat1", Name: "Concatenate", ModelClass: galaxy.ModelTool},
	}

	sections := Sections(panel)
	require.Len(t, sections, 2)
	assert.Equal(t, "", sections[0].Name)
	assert.Len(t, sections[0].Tools, 2)
	assert.Equal(t, "Quality Control", sections[1].Name)
	assert.Len(t, sections[1].Tools, 1)

	assert.Equal(t, "qc", FindSection(panel, "Quality Control").ID)
	assert.Equal(t, "qc", FindSection(panel, "qc").ID)
	assert.Nil(t, FindSection(panel, "NGS"))
}
