package optimize

import "cairn/internal/lir"

// pruneUnreachable is pass 6: after each unconditional branch or return,
// every instruction up to the next label is unreachable and is dropped.
func pruneUnreachable(instrs lir.List) lir.List {
	out := make(lir.List, 0, len(instrs))
	dead := false
	for _, ins := range instrs {
		if ins.Op == lir.OpLabel {
			dead = false
		}
		if dead {
			continue
		}
		out = append(out, ins)
		switch ins.Op {
		case lir.OpBr, lir.OpReturn, lir.OpReturnAgg:
			dead = true
		}
	}
	return out
}
