package emit

import (
	"strings"

	"cairn/internal/lir"
	"cairn/internal/types"
)

// emitData implements the data-section walk: one pass over the whole
// instruction list collecting glob_* directives, in source order, followed
// by .bss/.lcomm stubs for every named variable referenced but never
// declared by a glob_* directive in this unit (an extern tentative
// definition resolved by the linker against another translation unit).
func (e *emitter) emitData(instrs lir.List) {
	var globals []*lir.Instruction
	for _, ins := range instrs {
		switch ins.Op {
		case lir.OpGlobVar, lir.OpGlobArray, lir.OpGlobUnion, lir.OpGlobStruct,
			lir.OpGlobString, lir.OpGlobWString, lir.OpGlobAddr:
			globals = append(globals, ins)
		}
	}
	if len(globals) > 0 {
		e.writeln("  .data")
		for _, ins := range globals {
			e.emitGlobal(ins)
		}
	}
	e.emitBSS(instrs)
}

func (e *emitter) emitGlobal(ins *lir.Instruction) {
	e.emittedSyms[ins.Name] = true
	if ins.Src1 != 0 {
		e.writef("  .local %s", ins.Name)
	}
	if align := types.AlignOf(ins.Type, e.opts.WordSize); align > 1 {
		e.writef("  .align %d", align)
	}
	switch ins.Op {
	case lir.OpGlobVar:
		e.writef("%s:", ins.Name)
		e.writef("  .%s %d", scalarDirective(types.SizeOf(ins.Type, e.opts.WordSize)), ins.Imm)
	case lir.OpGlobArray:
		e.writef("%s:", ins.Name)
		elemWidth := types.SizeOf(ins.Type.Elem, e.opts.WordSize)
		e.writef("  .%s %s", scalarDirective(elemWidth), ins.Data)
	case lir.OpGlobStruct, lir.OpGlobUnion:
		// Aggregate initializers are not lowered member-by-member yet; the
		// slot is zero-filled to the right size and left for a future pass
		// to patch in per-member values.
		e.writef("%s:", ins.Name)
		size := types.SizeOf(ins.Type, e.opts.WordSize)
		if ins.Op == lir.OpGlobUnion {
			size = types.UnionSize(ins.Type, e.opts.WordSize)
		}
		e.writef("  .zero %d", size)
	case lir.OpGlobString:
		e.writef("%s:", ins.Name)
		e.writef("  .string \"%s\"", escapeString(ins.Data))
	case lir.OpGlobWString:
		e.writef("%s:", ins.Name)
		e.writeWideString(ins.Data)
	case lir.OpGlobAddr:
		e.writef("%s:", ins.Name)
		e.writef("  .%s %s", scalarDirective(e.opts.WordSize), ins.Data)
	}
}

// writeWideString lowers a wide string literal to a NUL-terminated array of
// 4-byte code points, since the assembler's .string directive only knows
// byte strings.
func (e *emitter) writeWideString(s string) {
	runes := []rune(s)
	vals := make([]string, 0, len(runes)+1)
	for _, r := range runes {
		vals = append(vals, itoa(int(r)))
	}
	vals = append(vals, "0")
	e.writef("  .long %s", strings.Join(vals, ","))
}

func (e *emitter) emitBSS(instrs lir.List) {
	type pending struct {
		name string
		t    *types.Type
	}
	var stubs []pending
	seen := map[string]bool{}
	for _, ins := range instrs {
		if ins.Op != lir.OpLoadVar && ins.Op != lir.OpStoreVar && ins.Op != lir.OpAddr {
			continue
		}
		name := ins.Name
		if strings.HasPrefix(name, "stack:") || name == "" {
			continue
		}
		if e.emittedSyms[name] || seen[name] {
			continue
		}
		seen[name] = true
		stubs = append(stubs, pending{name: name, t: ins.Type})
	}
	if len(stubs) == 0 {
		return
	}
	e.writeln("  .bss")
	for _, p := range stubs {
		size := types.SizeOf(p.t, e.opts.WordSize)
		if size == 0 {
			size = e.opts.WordSize
		}
		e.writef("  .lcomm %s,%d", p.name, size)
	}
}

func scalarDirective(width int) string {
	switch width {
	case 1:
		return "byte"
	case 2:
		return "word"
	case 8:
		return "quad"
	default:
		return "long"
	}
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
