package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kris96tian/MOFAX-Online/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModel(t *testing.T) (string, *testkit.FakeReader) {
	t.Helper()
	reader := testkit.NewFakeReader()
	content := reader.Register([]byte("cli model"), testkit.SmallModel())
	path := filepath.Join(t.TempDir(), "small.hdf5")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path, reader
}

func run(t *testing.T, reader *testkit.FakeReader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(reader)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSummaryCommand(t *testing.T) {
	path, reader := writeModel(t)

	out, err := run(t, reader, "summary", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Cells:    5")
	assert.Contains(t, out, "Features: 7")
	assert.Contains(t, out, "Groups:   g1, g2")
	assert.Contains(t, out, "expectations/W/rna")
}

func TestTopCommand(t *testing.T) {
	path, reader := writeModel(t)

	out, err := run(t, reader, "top", path, "--factor", "Factor1", "--n-features", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "gene2")
	assert.Contains(t, lines[2], "gene3")

	_, err = run(t, reader, "top", path, "--n-features", "21")
	assert.Error(t, err)

	_, err = run(t, reader, "top", path, "--factor", "Factor8")
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	path, reader := writeModel(t)
	dir := t.TempDir()

	target := filepath.Join(dir, "w.csv")
	out, err := run(t, reader, "export", path, "--table", "weights", "--output", target, "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "7 rows x 3 columns")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "feature,view,Factor1,Factor2,Factor3\n"))

	_, err = run(t, reader, "export", path, "--table", "samples")
	assert.Error(t, err)

	_, err = run(t, reader, "export", path, "--format", "xlsx", "--check", "--output", filepath.Join(dir, "w.xlsx"))
	assert.ErrorContains(t, err, "--check")
}

func TestMissingModel(t *testing.T) {
	_, reader := writeModel(t)
	_, err := run(t, reader, "summary", filepath.Join(t.TempDir(), "nope.hdf5"))
	assert.ErrorContains(t, err, "not found")
}
