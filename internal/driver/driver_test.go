package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cairn/internal/config"
)

func TestCompileFileEmitOnlyProducesAssemblyWithoutExternalTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "add.c")
	require.NoError(t, os.WriteFile(path, []byte("int add(int a, int b) { return a + b; }\n"), 0o644))

	res, err := CompileFile(path, config.Options{X86_64: true, EmitOnly: true})
	require.NoError(t, err)
	assert.Contains(t, res.Assembly, ".globl add")
	assert.Contains(t, res.Assembly, "add:")
	assert.Empty(t, res.ObjectPath)
	assert.Empty(t, res.BinaryPath)

	written, err := os.ReadFile(res.AsmPath)
	require.NoError(t, err)
	assert.Equal(t, res.Assembly, string(written))
}

func TestCompileFileReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.c")
	require.NoError(t, os.WriteFile(path, []byte("int f( {{{ not valid C\n"), 0o644))

	_, err := CompileFile(path, config.Options{X86_64: true, EmitOnly: true})
	assert.Error(t, err)
}

func TestAssemblerAndLinkerPathDefaults(t *testing.T) {
	assert.Equal(t, "as", assemblerPath(config.Options{}))
	assert.Equal(t, "ld", linkerPath(config.Options{}))
	assert.Equal(t, "/opt/as", assemblerPath(config.Options{AssemblerPath: "/opt/as"}))
	assert.Equal(t, "/opt/ld", linkerPath(config.Options{LinkerPath: "/opt/ld"}))
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestCompileFileRemovesStaleBinaryOnLinkFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "add.c")
	require.NoError(t, os.WriteFile(path, []byte("int add(int a, int b) { return a + b; }\n"), 0o644))

	// args are: -o <out> <in>; $2 is the output path either tool was told to produce.
	asmScript := writeScript(t, dir, "fake-as", "touch \"$2\"\n")
	linkScript := writeScript(t, dir, "fake-ld", "exit 1\n")

	binPath := filepath.Join(dir, "add")
	require.NoError(t, os.WriteFile(binPath, []byte("stale binary from a previous build"), 0o755))

	_, err := CompileFile(path, config.Options{
		X86_64:        true,
		AssemblerPath: asmScript,
		LinkerPath:    linkScript,
		Output:        binPath,
	})
	require.Error(t, err)

	_, statErr := os.Stat(binPath)
	assert.True(t, os.IsNotExist(statErr), "a failed link must not leave a stale binary at the output path")
}
