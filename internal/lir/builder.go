package lir

import (
	"cairn/internal/token"
	"cairn/internal/types"
)

// Builder owns the growing instruction list, the next value id, and the
// "current source location" subsequently appended instructions inherit,
// plus the name -> alias-set table that AliasSetFor fills in.
type Builder struct {
	Instrs     List
	nextValue  int
	curPos     token.Pos
	AliasNames map[string]int // name -> alias set, filled by AliasSetFor
	nextAlias  int
}

func NewBuilder() *Builder {
	return &Builder{nextValue: 1, AliasNames: make(map[string]int), nextAlias: 1}
}

// SetPos updates the current source location; every instruction appended
// after this call carries it until changed again.
func (b *Builder) SetPos(p token.Pos) { b.curPos = p }

// newValueID returns a fresh SSA-like value id, enforcing the builder
// invariant that dest > 0 is assigned exactly once per id.
func (b *Builder) newValueID() int {
	id := b.nextValue
	b.nextValue++
	return id
}

func (b *Builder) append(ins *Instruction) *Instruction {
	ins.Pos = b.curPos
	b.Instrs = append(b.Instrs, ins)
	return ins
}

// Emit appends an instruction that produces a new value (Dest > 0) and
// returns the value id.
func (b *Builder) Emit(op Op, t *types.Type, src1, src2 int, imm int64) int {
	id := b.newValueID()
	b.append(&Instruction{Op: op, Dest: id, Src1: src1, Src2: src2, Imm: imm, Type: t})
	return id
}

// EmitConst appends an integer/pointer constant.
func (b *Builder) EmitConst(t *types.Type, imm int64) int {
	id := b.newValueID()
	b.append(&Instruction{Op: OpConst, Dest: id, Imm: imm, Type: t})
	return id
}

// EmitFConst appends a floating-point constant.
func (b *Builder) EmitFConst(t *types.Type, f float64) int {
	id := b.newValueID()
	b.append(&Instruction{Op: OpConst, Dest: id, FImm: f, Type: t})
	return id
}

// EmitNoResult appends a side-effecting instruction with no Dest, e.g.
// store, branch, or label.
func (b *Builder) EmitNoResult(op Op, src1, src2 int, name string) {
	b.append(&Instruction{Op: op, Src1: src1, Src2: src2, Name: name})
}

// EmitNamed appends a value-producing instruction that also carries a
// name (load_var, load_param, addr, alloca).
func (b *Builder) EmitNamed(op Op, t *types.Type, name string, imm int64) int {
	id := b.newValueID()
	b.append(&Instruction{Op: op, Dest: id, Name: name, Imm: imm, Type: t})
	return id
}

// Label mints a fresh internal label name, used both for control-flow
// lowering scaffolding (if/while/for/switch) and for the emitter's
// short-circuit lowering.
func (b *Builder) Label(prefix string) string {
	id := b.newValueID()
	return prefix + itoa(id)
}

// EmitFuncBegin appends the function-boundary marker, stamping Data with
// "inline" when the source carried an inline hint, so the optimizer's
// inline-expansion pass (4) can recognize inlining candidates without a
// side channel back into the symbol table.
func (b *Builder) EmitFuncBegin(name string, isInline bool) {
	data := ""
	if isInline {
		data = "inline"
	}
	b.append(&Instruction{Op: OpFuncBegin, Name: name, Data: data})
}

func (b *Builder) EmitLabel(name string) {
	b.append(&Instruction{Op: OpLabel, Name: name})
}

func (b *Builder) EmitBr(target string) {
	b.append(&Instruction{Op: OpBr, Name: target})
}

// EmitBCond appends a conditional branch on the value `cond`, taken when
// cond is zero, to `target` (if/while/for lowering branches to the "false"
// continuation).
func (b *Builder) EmitBCond(cond int, target string) {
	b.append(&Instruction{Op: OpBCond, Src1: cond, Name: target})
}

// AliasSetFor returns the alias-set integer for a named memory location,
// allocating a fresh one on first use.
func (b *Builder) AliasSetFor(name string, restrictSite int) int {
	if restrictSite != 0 {
		// restrict-qualified pointer loads/stores receive a unique alias
		// set per call site rather than per name.
		b.nextAlias++
		return b.nextAlias
	}
	if s, ok := b.AliasNames[name]; ok {
		return s
	}
	b.nextAlias++
	b.AliasNames[name] = b.nextAlias
	return b.nextAlias
}

// EmitGlobVar appends a scalar global/static declaration with its initial
// value folded to an immediate (0 when uninitialized).
func (b *Builder) EmitGlobVar(name string, t *types.Type, init int64) {
	b.append(&Instruction{Op: OpGlobVar, Name: name, Imm: init, Type: t})
}

// EmitGlobArray appends an array global; Data carries the comma-joined
// folded element values, already rendered (missing slots as 0) by the
// caller, and Imm carries the element count.
func (b *Builder) EmitGlobArray(name string, t *types.Type, count int, data string) {
	b.append(&Instruction{Op: OpGlobArray, Name: name, Imm: int64(count), Data: data, Type: t})
}

// EmitGlobStruct / EmitGlobUnion mirror EmitGlobArray for aggregate globals.
func (b *Builder) EmitGlobStruct(name string, t *types.Type, data string) {
	b.append(&Instruction{Op: OpGlobStruct, Name: name, Data: data, Type: t})
}

func (b *Builder) EmitGlobUnion(name string, t *types.Type, data string) {
	b.append(&Instruction{Op: OpGlobUnion, Name: name, Data: data, Type: t})
}

// EmitGlobString appends a string-literal data directive declared under
// name; callers that need its address emit an addr of that same name.
func (b *Builder) EmitGlobString(name, value string, wide bool) {
	op := OpGlobString
	if wide {
		op = OpGlobWString
	}
	b.append(&Instruction{Op: op, Name: name, Data: value})
}

// EmitGlobAddr appends a global whose initializer is the address of
// another global (e.g. `int *p = &g;` at file scope).
func (b *Builder) EmitGlobAddr(name string, t *types.Type, of string) {
	b.append(&Instruction{Op: OpGlobAddr, Name: name, Data: of, Type: t})
}

// EmitReturnAgg appends the hidden-pointer-return instruction: Name carries
// the hidden destination pointer parameter's name, and Src1, when non-zero,
// is an address returned in its place. The emitter only moves that pointer
// into %eax/%rax; the aggregate's bytes are copied by LIR the caller emits
// before this instruction.
func (b *Builder) EmitReturnAgg(srcAddr int, destParam string) {
	b.append(&Instruction{Op: OpReturnAgg, Src1: srcAddr, Name: destParam})
}

// EmitStoreParam appends a store to a parameter slot (rare: parameters
// reassigned inside the function body).
func (b *Builder) EmitStoreParam(name string, index int, val int) {
	b.append(&Instruction{Op: OpStoreParam, Src1: val, Imm: int64(index), Name: name})
}

// EmitStoreIdx appends an indexed store, scaled by elemSize, mirroring
// load_idx's addressing; the stored value is carried in Dest.
func (b *Builder) EmitStoreIdx(arr, idx, val int, elemSize int64) {
	b.append(&Instruction{Op: OpStoreIdx, Src1: arr, Src2: idx, Imm: elemSize, Dest: val})
}

// EmitStoreMember appends a store through a base pointer/aggregate value
// at a fixed byte offset, the store-side counterpart of a member load.
func (b *Builder) EmitStoreMember(base int, byteOffset int64, val int) {
	b.append(&Instruction{Op: OpStorePtr, Src1: base, Src2: val, Imm: byteOffset})
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
