package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.c")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestPreprocessReadsFileVerbatim(t *testing.T) {
	path := writeTemp(t, "int f(void) { return 1; }\n")
	text, err := Preprocess(path)
	require.NoError(t, err)
	assert.Equal(t, "int f(void) { return 1; }\n", text)
}

func TestPreprocessStripsLineDirectivesPreservingLineCount(t *testing.T) {
	src := "#line 1 \"orig.c\"\nint f(void) {\n# 2 \"orig.c\" 1\nreturn 1;\n}\n"
	path := writeTemp(t, src)
	text, err := Preprocess(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(text, "#"))
	assert.Equal(t, strings.Count(src, "\n"), strings.Count(text, "\n"))
}

func TestPreprocessMissingFileErrors(t *testing.T) {
	_, err := Preprocess(filepath.Join(t.TempDir(), "does_not_exist.c"))
	assert.Error(t, err)
}
