package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustlens/evidence-verifier/internal/models"
)

func TestInputFlags_Load(t *testing.T) {
	dir := t.TempDir()
	infile := filepath.Join(dir, "texts.txt")
	require.NoError(t, os.WriteFile(infile, []byte("first line\n\n  second line  \n"), 0o644))

	tests := []struct {
		name     string
		flags    inputFlags
		stdin    string
		args     []string
		expected []string
		wantErr  bool
	}{
		{
			name:     "Text flags",
			flags:    inputFlags{texts: []string{"a", "b"}},
			expected: []string{"a", "b"},
		},
		{
			name:     "Input file skips blank lines",
			flags:    inputFlags{infile: infile},
			expected: []string{"first line", "second line"},
		},
		{
			name:     "Stdin",
			flags:    inputFlags{infile: "-"},
			stdin:    "from stdin\n",
			expected: []string{"from stdin"},
		},
		{
			name:     "Positional args",
			args:     []string{"positional"},
			expected: []string{"positional"},
		},
		{
			name:    "Nothing given",
			wantErr: true,
		},
		{
			name:    "Missing file",
			flags:   inputFlags{infile: filepath.Join(dir, "missing.txt")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			texts, err := tt.flags.load(strings.NewReader(tt.stdin), tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, texts)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, "", false, map[string]int{"count": 1}))
	assert.Equal(t, "{\"count\":1}\n", buf.String())

	buf.Reset()
	require.NoError(t, writeJSON(&buf, "", true, map[string]int{"count": 1}))
	assert.Equal(t, "{\n  \"count\": 1\n}\n", buf.String())

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeJSON(&buf, path, false, []string{"x"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\"x\"]\n", string(data))
}

func TestHeuristicsCommand(t *testing.T) {
	cmd := heuristicsCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--text", "A peer-reviewed meta-analysis (doi:10.1000/182)"})

	require.NoError(t, cmd.Execute())

	var output heuristicOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &output))
	require.Equal(t, 1, output.Count)
	assert.Greater(t, output.Results[0].Score, 0.5)
}

func TestHeuristicsCommand_Table(t *testing.T) {
	cmd := heuristicsCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--table", "just my opinion"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "just my opinion")
	assert.Contains(t, out.String(), "TOTAL")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview("  a \n b "))
	long := strings.Repeat("x", 100)
	assert.Len(t, []rune(preview(long)), previewLength)
}

func TestRenderReport(t *testing.T) {
	report := &models.Report{
		ID:            "r1",
		Source:        "hackernews",
		Duration:      "1.5s",
		TotalComments: 3,
		Summary: models.ReportSummary{
			StatusCounts: map[models.EvidenceStatus]int{
				models.StatusVerified: 2,
				models.StatusNone:     1,
			},
			URLsChecked:   4,
			URLsVerified:  3,
			TopCategories: []string{"government (2)"},
		},
	}

	cmd := ingestCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)

	renderReport(cmd, report)

	assert.Contains(t, out.String(), "Report r1 from hackernews: 3 comments")
	assert.Contains(t, out.String(), string(models.StatusVerified))
	assert.Contains(t, out.String(), "3/4")
	assert.Contains(t, out.String(), "government (2)")
}
