// Package config holds the compiler's user-facing options: a single struct
// threaded from cmd/cairnc's cobra flags through internal/driver into every
// pipeline stage that needs to know the target word size, syntax dialect,
// struct pack alignment, or whether to stop after emitting assembly.
//
// Grounded on falcon's scattered compile-time `const bool Debug*` flags in
// compile/compiler.go, consolidated here into one struct per the idiomatic
// Go config convention the rest of the pack's cobra-using manifests
// converge on (raymyers-ralph-cc-go, ajroetker-goat).
package config

// Options is immutable once built by cmd/cairnc and passed by value down
// the pipeline.
type Options struct {
	X86_64   bool // --arch x86-64 (false selects x86-32)
	Intel    bool // --syntax intel (false selects AT&T)
	Pack     int  // --pack, struct alignment override; 0 = natural alignment
	Debug    bool // --debug, gates logrus stage tracing in internal/driver
	EmitOnly bool // --emit-only, skip the external assembler/linker
	Output   string // -o, final binary path; defaults to the source's base name

	// AssemblerPath and LinkerPath are not exposed as cairnc flags (the
	// spec's flag set is arch/syntax/pack/debug/emit-only/-o only); they
	// default to the host "as"/"ld" when left empty and exist so
	// driver.CompileFile is independently testable against a fake tool path.
	AssemblerPath string
	LinkerPath    string
}

// WordSize returns the target's pointer/word width in bytes, the same
// 4-vs-8 split internal/sema and internal/emit each compute off their own
// X86_64 bool.
func (o Options) WordSize() int {
	if o.X86_64 {
		return 8
	}
	return 4
}
