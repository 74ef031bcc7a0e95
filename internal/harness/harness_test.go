package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buildml/internal/record"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "expectations that do not hold",
		Record: record.Record{
			Actions: []record.Action{{
				Command: "cc",
				Accesses: []record.Access{
					{Op: "read", Path: "/a.c"},
					{Op: "write", Path: "/a.o"},
				},
			}},
		},
		Expect: []Assertion{
			{Type: AssertDerived, From: []string{"/a.c"}, Equals: []string{"/a.c"}},
			{Type: AssertMissing, Paths: []string{"/a.o"}},
			{Type: AssertState, Action: 0, Path: "/a.o", Op: "read"},
			{Type: AssertWriteOnly, Equals: []string{}},
			{Type: AssertInputs, From: []string{"/a.o"}, Contains: []string{"/a.c"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expect[0] derived")
	assert.Contains(t, result.Errors[0], "{/a.o}")
	assert.Contains(t, result.Errors[1], "/a.o to be missing")
	assert.Contains(t, result.Errors[2], "got write")
	assert.Contains(t, result.Errors[3], "expect[3] write_only")
}

func TestRun_UnresolvableExpectedPath(t *testing.T) {
	scenario := &Scenario{
		Name:        "typo",
		Description: "expected path was never recorded",
		Record:      record.Record{Files: []string{"/real.c"}},
		Expect: []Assertion{
			{Type: AssertNeverAccessed, Equals: []string{"/raal.c"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "resolve /raal.c")
}

func TestRun_ImportFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "broken",
		Description: "record with an invalid op",
		Record: record.Record{
			Actions: []record.Action{{Command: "cc", Accesses: []record.Access{{Op: "exec", Path: "/a"}}}},
		},
		Expect: []Assertion{{Type: AssertWriteOnly}},
	}

	_, err := Run(scenario)
	assert.Error(t, err)
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nexpect: [{type: write_only}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nexpect: [{type: write_only}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no expectations",
			content: "name: n\ndescription: d\n",
			wantErr: "expect list is required",
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nexpects: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "unknown type",
			content: "name: n\ndescription: d\nexpect: [{type: trace_order}]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "derived without from",
			content: "name: n\ndescription: d\nexpect: [{type: derived, equals: [/a]}]\n",
			wantErr: "from is required",
		},
		{
			name:    "derived without target",
			content: "name: n\ndescription: d\nexpect: [{type: derived, from: [/a]}]\n",
			wantErr: "equals or contains is required",
		},
		{
			name:    "state action out of range",
			content: "name: n\ndescription: d\nexpect: [{type: state, action: 3, path: /a, op: read}]\n",
			wantErr: "out of range",
		},
		{
			name: "state bad op",
			content: "name: n\ndescription: d\nrecord: {actions: [{command: cc}]}\n" +
				"expect: [{type: state, action: 0, path: /a, op: chmod}]\n",
			wantErr: "op must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
