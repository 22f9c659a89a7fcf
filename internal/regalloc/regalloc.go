// Package regalloc implements the linear-scan register allocator that runs
// over the flat LIR between the optimizer and the code emitter.
//
// Grounded on compile/codegen/lsra.go's vocabulary (Interval, Range,
// UsePoint, the active/inactive/handled worklist split) and arch_x86.go's
// register tables, but the allocation itself is a complete rewrite: the
// source file's own tryAllocatePhyReg unconditionally returns true with
// the real split/spill logic commented out and its driver calling
// os.Exit(1); this package finishes the algorithm the way a flat,
// non-SSA LIR makes it simple to finish — one forward pass over a linear
// instruction list instead of a block/predecessor graph, so liveness is
// "first def index to last use index" directly rather than a fixpoint
// over GenKill/LiveInOut bitmaps. No interval splitting, matching the
// Non-goal on graph-coloring/advanced allocation.
package regalloc

import "cairn/internal/lir"

// NumRegs is REGALLOC_NUM_REGS: six general-purpose registers are
// allocatable.
const NumRegs = 6

const (
	regEAX = iota
	regEBX
	regECX
	regEDX
	regESI
	regEDI
)

var names32 = [NumRegs]string{"%eax", "%ebx", "%ecx", "%edx", "%esi", "%edi"}
var names64 = [NumRegs]string{"%rax", "%rbx", "%rcx", "%rdx", "%rsi", "%rdi"}

// Location is where one value id lives after allocation: either a
// register name, or a zero-based stack slot index n, which internal/emit
// places (n+1)*word_size below the function's named locals and parameter
// slots. Exactly one of the two is meaningful, selected by InReg.
type Location struct {
	InReg     bool
	Reg       string
	StackSlot int
}

// Result is the allocator's published output for one translation unit.
type Result struct {
	Loc        map[int]Location
	StackSlots int // high-water mark of stack slots used by any one function
}

// Allocate runs the linear scan described over instrs and returns the
// per-value location map. x86_64 selects the 64-bit register name table;
// word_size is only used by callers translating StackSlot into a byte
// offset.
func Allocate(instrs lir.List, x86_64 bool) *Result {
	names := names32
	if x86_64 {
		names = names64
	}

	lastUse := computeLastUse(instrs)
	forced := computeForcedRegs(instrs)

	res := &Result{Loc: make(map[int]Location, 64)}

	type held struct {
		valueID int
		reg     int
	}
	var active []held
	free := []int{0, 1, 2, 3, 4, 5}
	nextSlot := 0
	maxSlot := 0

	removeActive := func(reg int) {
		for i, h := range active {
			if h.reg == reg {
				active = append(active[:i], active[i+1:]...)
				return
			}
		}
	}

	spillToSlot := func(valueID int) {
		res.Loc[valueID] = Location{InReg: false, StackSlot: nextSlot}
		nextSlot++
		if nextSlot > maxSlot {
			maxSlot = nextSlot
		}
	}

	assignReg := func(valueID, reg int, name string) {
		res.Loc[valueID] = Location{InReg: true, Reg: name}
		active = append(active, held{valueID: valueID, reg: reg})
	}

	takeReg := func(reg int) {
		for i, r := range free {
			if r == reg {
				free = append(free[:i], free[i+1:]...)
				return
			}
		}
	}

	expire := func(pos int) {
		for i := len(active) - 1; i >= 0; i-- {
			if lastUse[active[i].valueID] <= pos {
				reg := active[i].reg
				active = append(active[:i], active[i+1:]...)
				free = append(free, reg)
			}
		}
	}

	// evictForced frees up `reg` for a forced assignment by spilling
	// whichever active value currently holds it, if any.
	evictForced := func(reg int) {
		for _, h := range active {
			if h.reg == reg {
				removeActive(reg)
				spillToSlot(h.valueID)
				return
			}
		}
		takeReg(reg)
	}

	// furthestActive returns the index into active of the entry whose
	// value has the furthest-in-the-future last use, or -1 if active is
	// empty.
	furthestActive := func() int {
		best := -1
		for i, h := range active {
			if best == -1 || lastUse[h.valueID] > lastUse[active[best].valueID] {
				best = i
			}
		}
		return best
	}

	for i, ins := range instrs {
		if ins.Op == lir.OpFuncBegin {
			active = nil
			free = []int{0, 1, 2, 3, 4, 5}
			nextSlot = 0
			continue
		}
		if ins.Op == lir.OpFuncEnd {
			continue
		}

		expire(i)

		if ins.Dest == 0 {
			continue
		}

		if reg, ok := forced[ins.Dest]; ok {
			evictForced(reg)
			name := names[reg]
			if isCompareOp(ins.Op) {
				name = "%al" // compare results always force regEAX above
			}
			assignReg(ins.Dest, reg, name)
			continue
		}

		if len(free) > 0 {
			reg := free[len(free)-1]
			free = free[:len(free)-1]
			assignReg(ins.Dest, reg, names[reg])
			continue
		}

		victim := furthestActive()
		if victim == -1 || lastUse[ins.Dest] >= lastUse[active[victim].valueID] {
			// The new value itself has the furthest use (or there's
			// nothing active to spill instead): it goes to the stack.
			spillToSlot(ins.Dest)
			continue
		}
		reg := active[victim].reg
		spilledID := active[victim].valueID
		active = append(active[:victim], active[victim+1:]...)
		spillToSlot(spilledID)
		assignReg(ins.Dest, reg, names[reg])
	}

	res.StackSlots = maxSlot
	return res
}

// computeLastUse is "compute last-use index for every value ID in one
// forward pass": the highest instruction index where a value id appears
// as Src1 or Src2, defaulting to its definition index if never read
// again.
func computeLastUse(instrs lir.List) map[int]int {
	last := make(map[int]int, 64)
	for i, ins := range instrs {
		if ins.Dest != 0 {
			if _, ok := last[ins.Dest]; !ok {
				last[ins.Dest] = i
			}
		}
		if ins.Src1 != 0 {
			last[ins.Src1] = i
		}
		if ins.Src2 != 0 {
			last[ins.Src2] = i
		}
	}
	return last
}

// computeForcedRegs implements "dedicated registers are reserved for
// div/mod (%eax+%edx), shifts (%ecx), and compare-result bytes (%al)":
// div's quotient and mod's remainder must land in %eax/%edx respectively,
// a comparison's boolean result must land in the %al alias of %eax, and a
// shift's count operand must land in %ecx.
func computeForcedRegs(instrs lir.List) map[int]int {
	forced := make(map[int]int, 16)
	for _, ins := range instrs {
		switch ins.Op {
		case lir.OpDiv:
			forced[ins.Dest] = regEAX
		case lir.OpMod:
			forced[ins.Dest] = regEDX
		case lir.OpShl, lir.OpShr:
			if ins.Src2 != 0 {
				forced[ins.Src2] = regECX
			}
		}
		if isCompareOp(ins.Op) {
			forced[ins.Dest] = regEAX
		}
	}
	return forced
}

func isCompareOp(op lir.Op) bool {
	switch op {
	case lir.OpCmpEQ, lir.OpCmpNE, lir.OpCmpLT, lir.OpCmpLE, lir.OpCmpGT, lir.OpCmpGE:
		return true
	}
	return false
}

