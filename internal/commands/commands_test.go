package commands

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamops/streamcheck/internal/config"
	"github.com/streamops/streamcheck/pkg/types"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"validation_failed", ErrValidationFailed, 1},
		{"wrapped_validation_failed", fmt.Errorf("%w: 3 of 9 checks failing", ErrValidationFailed), 1},
		{"operational", fmt.Errorf("loading config: boom"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd("1.2.3")

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "flows")
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "preflight")
	assert.Contains(t, names, "version")
}

func TestRunCmd_RequiresAMGID(t *testing.T) {
	root := NewRootCmd("test")
	root.SetArgs([]string{"run"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	assert.Error(t, root.Execute())
}

func TestRunCmd_ModeFlagsConflict(t *testing.T) {
	root := NewRootCmd("test")
	root.SetArgs([]string{"run", "DISCO01", "--cdn-only", "--flows-only"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	assert.Error(t, root.Execute())
}

func TestFlowsCmd_RequiresTarget(t *testing.T) {
	root := NewRootCmd("test")
	root.SetArgs([]string{"flows"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provide flow ARNs or --amgid")
}

func TestFlowsCmd_ARNsAndAMGIDConflict(t *testing.T) {
	root := NewRootCmd("test")
	root.SetArgs([]string{"flows", "arn:aws:mediaconnect:us-east-1:123456789012:flow:1-aaaa:x", "--amgid", "DISCO01"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestVersionCmd(t *testing.T) {
	root := NewRootCmd("9.9.9")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "streamcheck 9.9.9")
}

func TestWriteReports(t *testing.T) {
	rep := types.Report{
		RunID: "01HWTESTRUN0000000000000000",
		AMGID: "DISCO01",
		Endpoints: []types.EndpointVerdict{
			{Endpoint: types.DeliveryEndpoint{ID: "feed-1", URL: "https://cdn.example.com/a.m3u8"}, Level: types.VerdictPass},
		},
		Flows: []types.FlowHealthRecord{
			{FlowARN: "arn:a", Name: "disco-main", Verdict: types.VerdictPass},
		},
	}

	t.Run("full_run_with_json", func(t *testing.T) {
		cfg := config.Default()
		cfg.Reports.Dir = t.TempDir()

		paths, err := writeReports(rep, &cfg, runOptions{jsonOut: true})
		require.NoError(t, err)
		require.Len(t, paths, 3)
		assert.True(t, strings.HasPrefix(filepath.Base(paths[0]), "CDN_Test_Report_"))
		assert.True(t, strings.HasPrefix(filepath.Base(paths[1]), "MediaConnect_Report_DISCO01_"))
		assert.True(t, strings.HasSuffix(paths[2], ".json"))
	})

	t.Run("cdn_only", func(t *testing.T) {
		cfg := config.Default()
		cfg.Reports.Dir = t.TempDir()

		paths, err := writeReports(rep, &cfg, runOptions{cdnOnly: true})
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.True(t, strings.HasPrefix(filepath.Base(paths[0]), "CDN_Test_Report_"))
	})

	t.Run("flows_only", func(t *testing.T) {
		cfg := config.Default()
		cfg.Reports.Dir = t.TempDir()

		paths, err := writeReports(rep, &cfg, runOptions{flowsOnly: true})
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.True(t, strings.HasPrefix(filepath.Base(paths[0]), "MediaConnect_Report_"))
	})

	t.Run("output_dir_override", func(t *testing.T) {
		cfg := config.Default()
		cfg.Reports.Dir = filepath.Join(t.TempDir(), "ignored")
		override := t.TempDir()

		paths, err := writeReports(rep, &cfg, runOptions{cdnOnly: true, outputDir: override})
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, override, filepath.Dir(paths[0]))
	})
}
