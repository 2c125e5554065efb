package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/gridpath/internal/leveldata"
)

const towerFile = "../../internal/leveldata/testdata/tower.yaml"

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	missing := filepath.Join(t.TempDir(), "navgrid.yaml")
	full := append([]string{"navgrid", "--config", missing}, args...)
	err := newApp(&out).Run(context.Background(), full)
	return out.String(), err
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(""))
}

func TestPathCommand(t *testing.T) {
	out, err := runApp(t, "path", "--level", towerFile, "--from", "0,0", "--to", "5,3,1")
	require.NoError(t, err)

	assert.Contains(t, out, "(0,0,0)\n")
	assert.Contains(t, out, "(2,3,0)\n")
	assert.Contains(t, out, "(4,0,1)\n")
	assert.Contains(t, out, "cost ")
}

func TestPathCommandNoPath(t *testing.T) {
	// (0,0,1) has no floor.
	out, err := runApp(t, "path", "--level", towerFile, "--from", "0,0", "--to", "0,0,1")
	require.NoError(t, err)
	assert.Equal(t, "no path\n", out)
}

func TestPathCommandBadCoord(t *testing.T) {
	_, err := runApp(t, "path", "--level", towerFile, "--from", "0", "--to", "1,1")
	assert.Error(t, err)
}

func TestReachCommand(t *testing.T) {
	out, err := runApp(t, "reach", "--level", towerFile, "--from", "0,0", "--range", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "(1,0,0)\n")
	assert.Contains(t, out, "(0,1,0)\n")
	assert.NotContains(t, out, "(1,1,0)", "diagonal costs more than one step")
	assert.Contains(t, out, "2 cells\n")
}

func TestInspectCommand(t *testing.T) {
	out, err := runApp(t, "inspect", "--level", towerFile)
	require.NoError(t, err)

	assert.Contains(t, out, "level tower 6x4, 2 floors")
	assert.Contains(t, out, "fingerprint ")
	assert.Contains(t, out, "floor 0: ")
	assert.Contains(t, out, "floor 1: ")
	assert.Contains(t, out, "link (4,0,0) <-> (4,0,1)\n")
}

func TestLevelFileMissing(t *testing.T) {
	_, err := runApp(t, "inspect", "--level", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPickLevel(t *testing.T) {
	levels := []*leveldata.Level{{Name: "alpha"}, {Name: "beta"}}

	got, err := pickLevel(levels, "")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)

	got, err = pickLevel(levels, "beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", got.Name)

	_, err = pickLevel(levels, "gamma")
	assert.Error(t, err)

	_, err = pickLevel(nil, "")
	assert.Error(t, err)
}
