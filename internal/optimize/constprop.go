package optimize

import "cairn/internal/lir"

// loopBody reports, for each instruction index, whether it lies inside a
// "simple loop": a `label L` immediately followed by a `bcond ... L_end`,
// closed later by a `br L` with no intervening labels. Detected
// structurally rather than via a CFG, matching the flat-LIR model.
func loopBody(instrs lir.List) []bool {
	in := make([]bool, len(instrs))
	for i := 0; i < len(instrs)-1; i++ {
		if instrs[i].Op != lir.OpLabel || instrs[i+1].Op != lir.OpBCond {
			continue
		}
		start := i
		// find the matching `br L` with no intervening label, scanning
		// forward from just past the bcond.
		depth := 0
		for j := i + 2; j < len(instrs); j++ {
			if instrs[j].Op == lir.OpLabel {
				depth++
				continue
			}
			if instrs[j].Op == lir.OpBr && instrs[j].Name == instrs[start].Name {
				if depth == 0 {
					for k := start; k <= j; k++ {
						in[k] = true
					}
				}
				break
			}
		}
	}
	return in
}

// constantPropagation is pass 2: tracks is_const[value_id] and a
// per-variable "last known constant store" table. A non-volatile store of
// a constant remembers the variable; a subsequent non-volatile load
// rewrites to a const. Any store_ptr, store_idx, call, or arg invalidates
// every entry. Loop-body code does not record constants, even across
// stores, so a load before the loop's first store inside the loop isn't
// incorrectly folded across iterations.
func constantPropagation(instrs lir.List) lir.List {
	isConst := make(map[int]int64, 32)
	lastStore := make(map[string]int64, 16)
	inLoop := loopBody(instrs)

	constOf := func(id int) (int64, bool) {
		v, ok := isConst[id]
		return v, ok
	}

	for i, ins := range instrs {
		switch ins.Op {
		case lir.OpConst:
			isConst[ins.Dest] = ins.Imm

		case lir.OpStoreVar:
			if ins.IsVolatile {
				delete(lastStore, ins.Name)
				continue
			}
			if v, ok := constOf(ins.Src1); ok && !inLoop[i] {
				lastStore[ins.Name] = v
			} else {
				delete(lastStore, ins.Name)
			}

		case lir.OpLoadVar:
			if ins.IsVolatile {
				continue
			}
			if v, ok := lastStore[ins.Name]; ok && !inLoop[i] {
				ins.Op = lir.OpConst
				ins.Imm = v
				ins.Name = ""
				isConst[ins.Dest] = v
			}

		case lir.OpStorePtr, lir.OpStoreIdx, lir.OpBFStore,
			lir.OpCall, lir.OpCallVoid, lir.OpCallIndirect, lir.OpCallIndirectVoid,
			lir.OpArg:
			for k := range lastStore {
				delete(lastStore, k)
			}
		}
	}
	return instrs
}
