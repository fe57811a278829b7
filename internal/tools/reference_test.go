package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Reference
	}{
		{
			name: "full URL",
			args: []string{"https://toolshed.g2.bx.psu.edu/view/devteam/fastqc/e7b2202befea"},
			want: Reference{"toolshed.g2.bx.psu.edu", "devteam", "fastqc", "e7b2202befea"},
		},
		{
			name: "URL with repos segment and trailing slash",
			args: []string{"https://testtoolshed.g2.bx.psu.edu/repos/iuc/bwa/"},
			want: Reference{"testtoolshed.g2.bx.psu.edu", "iuc", "bwa", ""},
		},
		{
			name: "host without protocol",
			args: []string{"toolshed.g2.bx.psu.edu/view/devteam/fastqc"},
			want: Reference{"toolshed.g2.bx.psu.edu", "devteam", "fastqc", ""},
		},
		{
			name: "owner and name",
			args: []string{"devteam/fastqc"},
			want: Reference{DefaultToolshed, "devteam", "fastqc", ""},
		},
		{
			name: "owner name and numbered revision",
			args: []string{"devteam/fastqc/3:e7b2202befea"},
			want: Reference{DefaultToolshed, "devteam", "fastqc", "e7b2202befea"},
		},
		{
			name: "separate arguments",
			args: []string{"devteam", "fastqc", "e7b2202befea"},
			want: Reference{DefaultToolshed, "devteam", "fastqc", "e7b2202befea"},
		},
		{
			name: "separate arguments with toolshed",
			args: []string{"https://testtoolshed.g2.bx.psu.edu/", "iuc", "bwa", "12:abc"},
			want: Reference{"testtoolshed.g2.bx.psu.edu", "iuc", "bwa", "abc"},
		},
		{
			name: "toolshed with port",
			args: []string{"localhost:9009", "iuc", "bwa"},
			want: Reference{"localhost:9009", "iuc", "bwa", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.args, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReference_Errors(t *testing.T) {
	bad := [][]string{
		nil,
		{"fastqc"},
		{"/view/devteam/fastqc"},
		{"a/b/c/d"},
		{"toolshed.org", "devteam"},
		{"devteam", "fastqc", "rev", "extra"},
		{"devteam/fastqc/3:"},
	}
	for _, args := range bad {
		_, err := ParseReference(args, "")
		var perr *ParseError
		assert.True(t, errors.As(err, &perr), "expected ParseError for %q, got %v", args, err)
	}
}

func TestReference_Matches(t *testing.T) {
	ref := Reference{Toolshed: "toolshed.g2.bx.psu.edu", Owner: "devteam", Name: "fastq*"}
	assert.True(t, ref.IsPattern())
	assert.True(t, ref.Matches("https://toolshed.g2.bx.psu.edu/", "devteam", "fastqc"))
	assert.False(t, ref.Matches("testtoolshed.g2.bx.psu.edu", "devteam", "fastqc"))
	assert.False(t, ref.Matches("toolshed.g2.bx.psu.edu", "iuc", "fastqc"))
	assert.True(t, Reference{Name: "bwa"}.Matches("anywhere", "iuc", "bwa"))
}

func TestToolRepository(t *testing.T) {
	tool := galaxy.Tool{
		ID:         "toolshed.g2.bx.psu.edu/repos/devteam/fastqc/fastqc/0.72",
		ConfigFile: "/srv/shed_tools/toolshed.g2.bx.psu.edu/repos/devteam/fastqc/e7b2202befea/fastqc/rgFastQC.xml",
	}
	ref, ok := ToolRepository(tool)
	require.True(t, ok)
	assert.Equal(t, Reference{"toolshed.g2.bx.psu.edu", "devteam", "fastqc", "e7b2202befea"}, ref)

	_, ok = ToolRepository(galaxy.Tool{ID: "upload1"})
	assert.False(t, ok)

	ref, ok = ToolRepository(galaxy.Tool{ID: "x", ToolShedRepository: &galaxy.ToolShedRepoInfo{
		ToolShed: "https://toolshed.g2.bx.psu.edu/", Owner: "iuc", Name: "bwa", ChangesetRevision: "abc",
	}})
	require.True(t, ok)
	assert.Equal(t, Reference{"toolshed.g2.bx.psu.edu", "iuc", "bwa", "abc"}, ref)
}
