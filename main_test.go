package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/regionnav-go/graph"
)

func TestBakeAndInfoCommands(t *testing.T) {
	t.Cleanup(func() { graph.UseGzip(true) })
	path := filepath.Join(t.TempDir(), "grid.rgnv")

	var out bytes.Buffer
	bake := bakeCmd()
	bake.SetOut(&out)
	bake.SetArgs([]string{"--shape", "grid", "--width", "2", "--depth", "3", "--gzip", path})
	require.NoError(t, bake.Execute())
	assert.Contains(t, out.String(), "6 regions")

	out.Reset()
	info := infoCmd()
	info.SetOut(&out)
	info.SetArgs([]string{path})
	require.NoError(t, info.Execute())

	var fi graph.FileInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &fi))
	assert.Equal(t, 6, fi.RegionCount)
	assert.Equal(t, "volume", fi.Kind)
}

func TestBakeCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	bake := bakeCmd()
	bake.SetOut(&bytes.Buffer{})
	bake.SetErr(&bytes.Buffer{})
	bake.SetArgs([]string{"--shape", "ring", filepath.Join(dir, "x")})
	assert.ErrorContains(t, bake.Execute(), "unknown shape")

	bake = bakeCmd()
	bake.SetOut(&bytes.Buffer{})
	bake.SetErr(&bytes.Buffer{})
	bake.SetArgs([]string{"--kind", "lava", filepath.Join(dir, "y")})
	assert.Error(t, bake.Execute())
}
