package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/gridmapper/internal/cli"
)

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte("architecture \"x\" {\n"), 0o600))

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	err := run(context.Background(), out, errOut, []string{"check", filePath})

	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, cli.ExitUsage, exitErr.Code)
	require.Contains(t, exitErr.Message, "failed to parse HCL file")
}

func TestRun_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, &bytes.Buffer{}, []string{"-h"}))
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	hcl := `
architecture "grid" {
  mesh {
    rows = 2
    cols = 2
  }
}
taskgraph "pair" {
  task "a" { class = "tile" }
  task "b" { class = "tile" }
  channel "ab" {
    source = "a"
    sinks  = ["b"]
  }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "p.hcl"), []byte(hcl), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := run(ctx, &bytes.Buffer{}, &bytes.Buffer{}, []string{"map", tempDir})

	require.ErrorIs(t, err, context.Canceled)
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, cli.ExitFailure, exitErr.Code)
}
