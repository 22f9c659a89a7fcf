package driver

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// lineDirective matches a GNU-style `# 12 "file.c"` or `#line 12 "file.c"`
// marker a real preprocessor leaves behind to point diagnostics back at the
// original, pre-expansion source.
var lineDirective = regexp.MustCompile(`^\s*#\s*(line\s+)?\d+\s+"[^"]*".*$`)

// Preprocess is the seam spec.md describes as out of scope for the core
// pipeline ("consumed via a preprocess(path) -> text interface"): this repo
// does not implement macro expansion or #include, so it stubs the
// interface by reading the file verbatim and stripping any #line-style
// directive lines a real preprocessor would have inserted, since
// internal/token's lexer has no notion of '#' directive syntax and would
// otherwise choke on them.
func Preprocess(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "preprocess: opening %s", path)
	}
	defer f.Close()

	var out strings.Builder
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if lineDirective.MatchString(line) {
			// Keep the line count stable rather than collapsing it away.
			out.WriteByte('\n')
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return "", errors.Wrapf(err, "preprocess: reading %s", path)
	}
	return out.String(), nil
}
