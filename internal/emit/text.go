package emit

import (
	"sort"
	"strconv"
	"strings"

	"cairn/internal/lir"
	"cairn/internal/regalloc"
)

// Emit runs the two-phase walk the emitter is for: the data section first,
// then the text section, and returns the full assembly listing.
func Emit(instrs lir.List, alloc *regalloc.Result, opts Options) string {
	e := newEmitter(alloc, opts)
	e.emitData(instrs)
	e.emitText(instrs)
	return string(e.buf)
}

// argRegs names the integer argument registers consulted before falling
// back to stack pushes. 32-bit mode uses a two-register fastcall-style
// convention (cdecl's traditional all-stack convention is not implemented,
// consistent with the allocator itself only ever needing GPRs 0-5); 64-bit
// mode uses the System V six-register order.
func (e *emitter) argRegs() []string {
	if e.opts.X86_64 {
		return []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
	}
	return []string{"ecx", "edx"}
}

func (e *emitter) emitText(instrs lir.List) {
	var pendingArgs []int
	for i, ins := range instrs {
		switch ins.Op {
		case lir.OpFuncBegin:
			e.beginFunc(ins.Name, instrs, i)
			continue
		case lir.OpFuncEnd:
			e.endFunc()
			continue
		}
		switch ins.Op {
		case lir.OpLabel:
			e.writef("%s:", ins.Name)
		case lir.OpBr:
			e.writef("  jmp %s", ins.Name)
		case lir.OpBCond:
			// bcond branches to Name when Src1 is zero.
			e.writef("  %s $0, %s", e.cmpMnemonic(), e.valOperand(ins.Src1))
			e.writef("  je %s", ins.Name)
		case lir.OpConst:
			e.emitConst(ins)
		case lir.OpAdd, lir.OpSub, lir.OpMul, lir.OpAnd, lir.OpOr, lir.OpXor:
			e.emitBinArith(ins)
		case lir.OpDiv, lir.OpMod:
			e.emitDivMod(ins)
		case lir.OpNeg:
			e.emitUnary(ins, "neg")
		case lir.OpNot:
			e.emitUnary(ins, "not")
		case lir.OpShl:
			e.emitShift(ins, "sal")
		case lir.OpShr:
			e.emitShift(ins, "sar")
		case lir.OpCmpEQ, lir.OpCmpNE, lir.OpCmpLT, lir.OpCmpLE, lir.OpCmpGT, lir.OpCmpGE:
			e.emitCompare(ins)
		case lir.OpLogAnd, lir.OpLogOr:
			e.emitShortCircuit(ins)
		case lir.OpLoadVar, lir.OpLoadParam:
			e.emitLoadNamed(ins)
		case lir.OpStoreVar, lir.OpStoreParam:
			e.emitStoreNamed(ins)
		case lir.OpAddr:
			e.emitAddr(ins)
		case lir.OpAlloca:
			e.emitAlloca(ins)
		case lir.OpLoadPtr, lir.OpBFLoad:
			e.emitLoadPtr(ins)
		case lir.OpStorePtr, lir.OpBFStore:
			e.emitStorePtr(ins)
		case lir.OpLoadIdx:
			e.emitLoadIdx(ins)
		case lir.OpStoreIdx:
			e.emitStoreIdx(ins)
		case lir.OpPtrAdd:
			e.emitPtrAdd(ins, false)
		case lir.OpPtrSub:
			e.emitPtrAdd(ins, true)
		case lir.OpPtrDiff:
			e.emitPtrDiff(ins)
		case lir.OpCast:
			e.emitCast(ins)
		case lir.OpArg:
			pendingArgs = append(pendingArgs, ins.Src1)
		case lir.OpCall, lir.OpCallVoid:
			e.emitCall(ins, pendingArgs)
			pendingArgs = nil
		case lir.OpReturn:
			e.emitReturn(ins)
		case lir.OpReturnAgg:
			e.emitReturnAgg(ins)
		}
	}
}

// beginFunc resets per-function state and scans ahead to the matching
// func_end for the frame-size inputs: the lowest (most negative) named
// stack offset sema already assigned, the incoming parameters that need a
// frame slot of their own, and which register spills stack below both.
func (e *emitter) beginFunc(name string, instrs lir.List, start int) {
	e.funcName = name
	e.labelSeq = 0
	e.minNamedOff = 0
	e.paramOffset = make(map[string]int, 4)
	paramIndex := map[string]int64{}
	for i := start + 1; i < len(instrs) && instrs[i].Op != lir.OpFuncEnd; i++ {
		ins := instrs[i]
		if off, ok := parseStackName(ins.Name); ok && off < e.minNamedOff {
			e.minNamedOff = off
		}
		if ins.Op == lir.OpLoadParam || ins.Op == lir.OpStoreParam {
			paramIndex[ins.Name] = ins.Imm
		}
		// return_agg names the hidden return-pointer parameter even when it
		// was never read through an explicit load_param; that pointer is
		// always parameter 0 (func.go's hidden-return convention), so the
		// entry spill still needs to happen.
		if ins.Op == lir.OpReturnAgg {
			if _, ok := paramIndex[ins.Name]; !ok {
				paramIndex[ins.Name] = 0
			}
		}
	}
	orderedParams := orderParamNames(paramIndex)
	for _, p := range orderedParams {
		e.minNamedOff -= e.opts.WordSize
		e.paramOffset[p] = e.minNamedOff
	}

	named := -e.minNamedOff
	spill := e.alloc.StackSlots * e.opts.WordSize
	frame := named + spill
	if e.opts.X86_64 {
		frame = align16(frame)
	}
	e.frameSize = frame

	e.writeln("  .text")
	e.writef("  .globl %s", name)
	e.writef("%s:", name)
	e.writef("  push %s", e.frameReg())
	e.writef("  mov %s, %s", e.movOperands(e.stackPtrReg(), e.frameReg())...)
	if frame > 0 {
		e.writef("  sub $%d, %s", frame, e.stackPtrReg())
	}
	e.spillParams(orderedParams, paramIndex)
}

// orderParamNames returns the distinct load_param/store_param names of one
// function sorted by their parameter index, so the entry spill below copies
// them in argument order regardless of the order they're first referenced.
func orderParamNames(paramIndex map[string]int64) []string {
	names := make([]string, 0, len(paramIndex))
	for n := range paramIndex {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return paramIndex[names[i]] < paramIndex[names[j]] })
	return names
}

// spillParams copies every incoming argument this function actually
// references out of its entry location (an argRegs() register, or a
// caller-pushed stack slot above the saved frame pointer for indices past
// the register convention) into its own frame slot, the same way a spilled
// local would be addressed. This keeps load_param/store_param as ordinary
// frame-relative memory ops for the rest of the function body instead of
// requiring every parameter register to stay reserved across its lifetime,
// which the six-GPR allocator has no room to guarantee.
func (e *emitter) spillParams(ordered []string, paramIndex map[string]int64) {
	regs := e.argRegs()
	for _, name := range ordered {
		idx := int(paramIndex[name])
		dst := e.memAt(e.paramOffset[name])
		if idx < len(regs) {
			e.emit2("mov", e.reg(regs[idx]), dst)
			continue
		}
		scratch := e.reg("eax")
		if e.opts.X86_64 {
			scratch = e.reg("rax")
		}
		srcOff := (2 + (idx - len(regs))) * e.opts.WordSize
		e.emit2("mov", e.memAt(srcOff), scratch)
		e.emit2("mov", scratch, dst)
	}
}

func (e *emitter) endFunc() {
	e.writeln("  .L_epilogue:")
	if e.frameSize > 0 {
		e.writef("  add $%d, %s", e.frameSize, e.stackPtrReg())
	}
	e.writef("  pop %s", e.frameReg())
	e.writeln("  ret")
}

// movOperands orders a (src, dst) pair Intel-first-dest-when-requested; mov
// is the one mnemonic whose suffix can't be deduced from either operand
// alone in AT&T mode, so callers pass it through unmodified otherwise.
func (e *emitter) movOperands(src, dst string) []any {
	if e.opts.Intel {
		return []any{dst, src}
	}
	return []any{src, dst}
}

func (e *emitter) cmpMnemonic() string { return "cmp" }

func align16(n int) int { return (n + 15) / 16 * 16 }

func parseStackName(name string) (int, bool) {
	if !strings.HasPrefix(name, "stack:") {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimPrefix(name, "stack:"))
	if err != nil {
		return 0, false
	}
	return v, true
}

// valOperand formats the operand for an already-allocated value id.
func (e *emitter) valOperand(id int) string {
	if id == 0 {
		return "$0"
	}
	loc, ok := e.alloc.Loc[id]
	if !ok {
		return "$0"
	}
	if loc.InReg {
		if e.opts.Intel {
			return strings.TrimPrefix(loc.Reg, "%")
		}
		return loc.Reg
	}
	off := e.minNamedOff - (loc.StackSlot+1)*e.opts.WordSize
	return e.memAt(off)
}

// namedOperand formats the memory operand for a sema-assigned name: either
// a frame-relative local ("stack:N") or a bare global symbol.
func (e *emitter) namedOperand(name string) string {
	if off, ok := parseStackName(name); ok {
		return e.memAt(off)
	}
	if e.opts.Intel {
		return "[" + name + "]"
	}
	if e.opts.X86_64 {
		return name + "(%rip)"
	}
	return name
}

func (e *emitter) memAt(off int) string {
	if e.opts.Intel {
		if off < 0 {
			return "[" + stripSigil(e.frameReg()) + strconv.Itoa(off) + "]"
		}
		return "[" + stripSigil(e.frameReg()) + "+" + strconv.Itoa(off) + "]"
	}
	return strconv.Itoa(off) + "(" + e.frameReg() + ")"
}

func stripSigil(s string) string { return strings.TrimPrefix(s, "%") }

func (e *emitter) immOperand(v int64) string {
	if e.opts.Intel {
		return strconv.FormatInt(v, 10)
	}
	return "$" + strconv.FormatInt(v, 10)
}

func (e *emitter) emit2(mnemonic, src, dst string) {
	a, b := src, dst
	if e.opts.Intel {
		a, b = dst, src
	}
	e.writef("  %s %s, %s", mnemonic, a, b)
}

func (e *emitter) emit1(mnemonic, operand string) {
	e.writef("  %s %s", mnemonic, operand)
}

func (e *emitter) emitConst(ins *lir.Instruction) {
	e.emit2("mov", e.immOperand(ins.Imm), e.valOperand(ins.Dest))
}

var arithMnemonic = map[lir.Op]string{
	lir.OpAdd: "add", lir.OpSub: "sub", lir.OpMul: "imul",
	lir.OpAnd: "and", lir.OpOr: "or", lir.OpXor: "xor",
}

// emitBinArith lowers the two-address integer/bit ops: since Dest is a
// fresh value distinct from Src1/Src2, the x86 destructive two-operand form
// needs a copy into Dest first.
func (e *emitter) emitBinArith(ins *lir.Instruction) {
	dst := e.valOperand(ins.Dest)
	e.emit2("mov", e.valOperand(ins.Src1), dst)
	e.emit2(arithMnemonic[ins.Op], e.valOperand(ins.Src2), dst)
}

func (e *emitter) emitUnary(ins *lir.Instruction, mnemonic string) {
	dst := e.valOperand(ins.Dest)
	e.emit2("mov", e.valOperand(ins.Src1), dst)
	e.emit1(mnemonic, dst)
}

// emitShift lowers shl/shr: the count operand is forced into %cl by the
// register allocator, so the variable-count form always reads %cl.
func (e *emitter) emitShift(ins *lir.Instruction, mnemonic string) {
	dst := e.valOperand(ins.Dest)
	e.emit2("mov", e.valOperand(ins.Src1), dst)
	e.emit2(mnemonic, e.reg("cl"), dst)
}

// emitDivMod lowers div/mod: dividend goes through %eax/%rax with the sign
// extension sequence, divisor is whatever the allocator placed Src2 at, and
// the quotient/remainder are already forced into %eax/%edx by the
// allocator so no post-move is needed for the common case.
func (e *emitter) emitDivMod(ins *lir.Instruction) {
	ax := e.reg("eax")
	dx := e.reg("edx")
	signExtend := "cltd"
	if e.opts.X86_64 {
		ax, dx = e.reg("rax"), e.reg("rdx")
		signExtend = "cqto"
	}
	e.emit2("mov", e.valOperand(ins.Src1), ax)
	e.writef("  %s", signExtend)
	e.emit1("idiv", e.valOperand(ins.Src2))
	want := ax
	if ins.Op == lir.OpMod {
		want = dx
	}
	dst := e.valOperand(ins.Dest)
	if dst != want {
		e.emit2("mov", want, dst)
	}
}

var setMnemonic = map[lir.Op]string{
	lir.OpCmpEQ: "sete", lir.OpCmpNE: "setne", lir.OpCmpLT: "setl",
	lir.OpCmpLE: "setle", lir.OpCmpGT: "setg", lir.OpCmpGE: "setge",
}

// emitCompare lowers a comparison to cmp+setcc; the allocator forces the
// result into %al, so the byte-sized set instruction writes it directly.
func (e *emitter) emitCompare(ins *lir.Instruction) {
	e.emit2("cmp", e.valOperand(ins.Src2), e.valOperand(ins.Src1))
	e.emit1(setMnemonic[ins.Op], e.valOperand(ins.Dest))
}

// emitShortCircuit lowers logand/logor into the compare+branch+set form
// using freshly-minted labels, rather than leaning on the allocator's flag
// register the way a cmov-based lowering would.
func (e *emitter) emitShortCircuit(ins *lir.Instruction) {
	falseLabel := e.nextLabel("false")
	trueLabel := e.nextLabel("true")
	endLabel := e.nextLabel("end")
	dst := e.valOperand(ins.Dest)

	e.emit2(e.cmpMnemonic(), e.immOperand(0), e.valOperand(ins.Src1))
	if ins.Op == lir.OpLogAnd {
		e.emit1("je", falseLabel)
		e.emit2(e.cmpMnemonic(), e.immOperand(0), e.valOperand(ins.Src2))
		e.emit1("je", falseLabel)
	} else {
		e.emit1("jne", trueLabel)
		e.emit2(e.cmpMnemonic(), e.immOperand(0), e.valOperand(ins.Src2))
		e.emit1("je", falseLabel)
	}
	e.writef("%s:", trueLabel)
	e.emit2("mov", e.immOperand(1), dst)
	e.emit1("jmp", endLabel)
	e.writef("%s:", falseLabel)
	e.emit2("mov", e.immOperand(0), dst)
	e.writef("%s:", endLabel)
}

func (e *emitter) emitLoadNamed(ins *lir.Instruction) {
	e.emit2("mov", e.operandFor(ins), e.valOperand(ins.Dest))
}

func (e *emitter) emitStoreNamed(ins *lir.Instruction) {
	e.emit2("mov", e.valOperand(ins.Src1), e.operandFor(ins))
}

// operandFor resolves load_var/store_var through namedOperand (a frame
// offset sema already picked, or a global symbol) and load_param/
// store_param through the entry-spill slot beginFunc assigned it.
func (e *emitter) operandFor(ins *lir.Instruction) string {
	if ins.Op == lir.OpLoadParam || ins.Op == lir.OpStoreParam {
		return e.memAt(e.paramOffset[ins.Name])
	}
	return e.namedOperand(ins.Name)
}

// emitAddr lowers addr(name): a local gets its frame address via lea, a
// global gets its bare symbol loaded as an immediate address.
func (e *emitter) emitAddr(ins *lir.Instruction) {
	if _, ok := parseStackName(ins.Name); ok {
		e.emit2("lea", e.namedOperand(ins.Name), e.valOperand(ins.Dest))
		return
	}
	operand := "$" + ins.Name
	if e.opts.Intel {
		operand = ins.Name
	}
	e.emit2("mov", operand, e.valOperand(ins.Dest))
}

// emitAlloca reserves Imm bytes below the current stack pointer and returns
// its address; there is no pre-reserved frame slot for this since the size
// is only known at this instruction.
func (e *emitter) emitAlloca(ins *lir.Instruction) {
	e.emit2("sub", e.immOperand(ins.Imm), e.stackPtrReg())
	e.emit2("mov", e.stackPtrReg(), e.valOperand(ins.Dest))
}

func (e *emitter) ptrMem(base int, disp int64) string {
	loc := e.valOperand(base)
	d := strconv.FormatInt(disp, 10)
	if e.opts.Intel {
		reg := stripSigil(loc)
		if disp == 0 {
			return "[" + reg + "]"
		}
		if disp > 0 {
			return "[" + reg + "+" + d + "]"
		}
		return "[" + reg + d + "]"
	}
	if disp == 0 {
		return "(" + loc + ")"
	}
	return d + "(" + loc + ")"
}

func (e *emitter) emitLoadPtr(ins *lir.Instruction) {
	e.emit2("mov", e.ptrMem(ins.Src1, ins.Imm), e.valOperand(ins.Dest))
}

func (e *emitter) emitStorePtr(ins *lir.Instruction) {
	e.emit2("mov", e.valOperand(ins.Src2), e.ptrMem(ins.Src1, ins.Imm))
}

func (e *emitter) idxMem(base, idx int, scale int64) string {
	baseLoc := stripSigil(e.valOperand(base))
	idxLoc := stripSigil(e.valOperand(idx))
	s := strconv.FormatInt(scale, 10)
	if e.opts.Intel {
		return "[" + baseLoc + "+" + idxLoc + "*" + s + "]"
	}
	return "(%" + baseLoc + ",%" + idxLoc + "," + s + ")"
}

func (e *emitter) emitLoadIdx(ins *lir.Instruction) {
	e.emit2("mov", e.idxMem(ins.Src1, ins.Src2, ins.Imm), e.valOperand(ins.Dest))
}

// emitStoreIdx reads the stored value from Dest: store_idx has no result
// of its own, so the builder stashes the source value there instead of
// adding a fourth operand slot.
func (e *emitter) emitStoreIdx(ins *lir.Instruction) {
	e.emit2("mov", e.valOperand(ins.Dest), e.idxMem(ins.Src1, ins.Src2, ins.Imm))
}

// emitPtrAdd/emitPtrAdd(sub) lower pointer +/- int*elem_size. For an add
// whose scale is one of x86's addressing-mode scales {1,2,4,8} a single lea
// computes it; a sub, or any other scale, scales the index explicitly first.
func (e *emitter) emitPtrAdd(ins *lir.Instruction, sub bool) {
	dst := e.valOperand(ins.Dest)
	if !sub && isScale(ins.Imm) {
		base := stripSigil(e.valOperand(ins.Src1))
		idx := stripSigil(e.valOperand(ins.Src2))
		s := strconv.FormatInt(ins.Imm, 10)
		if e.opts.Intel {
			e.emit2("lea", "["+base+"+"+idx+"*"+s+"]", dst)
		} else {
			e.emit2("lea", "(%"+base+",%"+idx+","+s+")", dst)
		}
		return
	}
	e.emit2("mov", e.valOperand(ins.Src2), dst)
	e.emit2("imul", e.immOperand(ins.Imm), dst)
	if sub {
		e.emit1("neg", dst)
	}
	e.emit2("add", e.valOperand(ins.Src1), dst)
}

func isScale(n int64) bool { return n == 1 || n == 2 || n == 4 || n == 8 }

// emitPtrDiff lowers (p1-p2)/elem_size. The division by a non-power-of-two
// element size would need the same forced-%eax/%edx dance as div/mod
// without the allocator having reserved it for this value, so only the
// power-of-two case (the overwhelming majority of real element sizes) is
// handled precisely; others fall back to an idiv sequence that clobbers
// %eax/%edx directly.
func (e *emitter) emitPtrDiff(ins *lir.Instruction) {
	dst := e.valOperand(ins.Dest)
	e.emit2("mov", e.valOperand(ins.Src1), dst)
	e.emit2("sub", e.valOperand(ins.Src2), dst)
	if shift, ok := log2(ins.Imm); ok {
		if shift > 0 {
			e.emit2("sar", e.immOperand(int64(shift)), dst)
		}
		return
	}
	ax := e.reg("eax")
	signExtend := "cltd"
	if e.opts.X86_64 {
		ax = e.reg("rax")
		signExtend = "cqto"
	}
	e.emit2("mov", dst, ax)
	e.writef("  %s", signExtend)
	e.emit1("idiv", e.immOperand(ins.Imm))
	e.emit2("mov", ax, dst)
}

func log2(n int64) (int, bool) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, false
	}
	shift := 0
	for n > 1 {
		n >>= 1
		shift++
	}
	return shift, true
}

// emitCast lowers a width/signedness change with movzx when the target type
// is unsigned and movsx otherwise, for narrowing and widening alike.
func (e *emitter) emitCast(ins *lir.Instruction) {
	dst := e.valOperand(ins.Dest)
	src := e.valOperand(ins.Src1)
	if ins.Type != nil && ins.Type.IsUnsigned() {
		e.emit2("movzx", src, dst)
		return
	}
	e.emit2("movsx", src, dst)
}

func (e *emitter) emitCall(ins *lir.Instruction, args []int) {
	regs := e.argRegs()
	var stackArgs []int
	for i, a := range args {
		if i < len(regs) {
			e.emit2("mov", e.valOperand(a), e.reg(regs[i]))
			continue
		}
		stackArgs = append(stackArgs, a)
	}
	for i := len(stackArgs) - 1; i >= 0; i-- {
		e.emit1("push", e.valOperand(stackArgs[i]))
	}
	e.emit1("call", ins.Name)
	if len(stackArgs) > 0 {
		e.emit2("add", e.immOperand(int64(len(stackArgs)*e.opts.WordSize)), e.stackPtrReg())
	}
	if ins.Op == lir.OpCall && ins.Dest != 0 {
		ret := e.reg("eax")
		if e.opts.X86_64 {
			ret = e.reg("rax")
		}
		dst := e.valOperand(ins.Dest)
		if dst != ret {
			e.emit2("mov", ret, dst)
		}
	}
}

func (e *emitter) emitReturn(ins *lir.Instruction) {
	if ins.Src1 != 0 {
		ret := e.reg("eax")
		if e.opts.X86_64 {
			ret = e.reg("rax")
		}
		src := e.valOperand(ins.Src1)
		if src != ret {
			e.emit2("mov", src, ret)
		}
	}
	e.writeln("  jmp .L_epilogue")
}

// emitReturnAgg lowers the hidden-pointer aggregate return: the source
// address is moved into %eax/%rax the way the hidden pointer argument's
// value flows back to the caller, matching the convention's "return the
// same pointer the caller passed in".
func (e *emitter) emitReturnAgg(ins *lir.Instruction) {
	ret := e.reg("eax")
	if e.opts.X86_64 {
		ret = e.reg("rax")
	}
	if ins.Src1 != 0 {
		e.emit2("mov", e.valOperand(ins.Src1), ret)
	} else {
		// Name is the hidden return-pointer parameter, spilled by beginFunc
		// under the same convention as any other load_param/store_param.
		e.emit2("mov", e.memAt(e.paramOffset[ins.Name]), ret)
	}
	e.writeln("  jmp .L_epilogue")
}
