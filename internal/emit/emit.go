// Package emit walks the allocated LIR and produces x86 assembly text, in
// either AT&T or Intel syntax, for the 32-bit or 64-bit instruction set.
//
// Grounded on compile/codegen/asm_x86.go's Assembler (emit0/emit1/emit2,
// suffix(), the operand-to-string dispatch, and the FRAME_SIZE symbol
// patched once the frame's final size is known) and arch_x86.go's register
// tables, generalized two ways: Assembler has no real register allocator
// behind it (every virtual register becomes its own stack slot, via
// allocateStackSlot), so its emit2 loads every source through a scratch
// register first; here the register allocator has already assigned real
// locations, so operands are formatted directly from regalloc.Result
// without a scratch-register detour. The second axis is syntax: Assembler
// only emits AT&T; operand formatting here is parametrized so the same
// instruction dispatch produces Intel's dest-first, sigil-free operands too.
package emit

import (
	"fmt"

	"cairn/internal/regalloc"
)

// Options controls the target and dialect an Emit call produces for.
type Options struct {
	X86_64   bool
	Intel    bool
	WordSize int // 4 for x86-32, 8 for x86-64, kept independent of X86_64 for tests
	Debug    bool
}

// emitter holds the mutable state threaded through one translation unit's
// worth of emission: the growing text buffer, the register-allocator
// result it renders operands from, and the per-function bookkeeping reset
// at each func_begin.
type emitter struct {
	opts  Options
	alloc *regalloc.Result
	buf   []byte

	funcName    string
	labelSeq    int // short-circuit / misc label minting, scoped per function
	frameSize   int
	minNamedOff int            // most negative sema-assigned stack offset seen in this function, extended below to cover spilled-in parameters
	paramOffset map[string]int // frame offset each load_param/store_param name was spilled to on entry
	emittedSyms map[string]bool
}

func newEmitter(alloc *regalloc.Result, opts Options) *emitter {
	return &emitter{opts: opts, alloc: alloc, emittedSyms: make(map[string]bool, 32)}
}

func (e *emitter) writeln(s string) {
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, '\n')
}

func (e *emitter) writef(format string, args ...any) {
	e.writeln(fmt.Sprintf(format, args...))
}

// frameReg / stackReg name the base and stack pointer, sized by X86_64, AT&T
// vs Intel sigil convention applied by reg().
func (e *emitter) frameReg() string {
	if e.opts.X86_64 {
		return e.reg("rbp")
	}
	return e.reg("ebp")
}

func (e *emitter) stackPtrReg() string {
	if e.opts.X86_64 {
		return e.reg("rsp")
	}
	return e.reg("esp")
}

func (e *emitter) reg(name string) string {
	if e.opts.Intel {
		return name
	}
	return "%" + name
}

// suffix returns the AT&T mnemonic size suffix for a byte width; Intel
// syntax carries no mnemonic suffix, so callers only append this in AT&T
// mode.
func suffix(width int) string {
	switch width {
	case 1:
		return "b"
	case 2:
		return "w"
	case 4:
		return "l"
	case 8:
		return "q"
	}
	return "l"
}

func (e *emitter) nextLabel(tag string) string {
	e.labelSeq++
	return fmt.Sprintf("L%d_%s", e.labelSeq, tag)
}
