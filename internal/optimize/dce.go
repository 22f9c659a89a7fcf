package optimize

import "cairn/internal/lir"

// deadCodeElim is pass 7: a backward sweep marks the sources of every
// side-effecting instruction as used, propagates liveness backward
// through pure chains, then drops any instruction whose dest is unused
// and which has no side effect of its own. Iterated to a fixpoint within
// the pass since removing one dead value can make its own sources dead in
// turn.
func deadCodeElim(instrs lir.List) lir.List {
	for {
		used := make(map[int]bool, len(instrs))
		for _, ins := range instrs {
			if ins.Op.HasSideEffect() {
				used[ins.Src1] = true
				used[ins.Src2] = true
			}
		}
		for changed := true; changed; {
			changed = false
			for _, ins := range instrs {
				if ins.Dest == 0 || !used[ins.Dest] {
					continue
				}
				if ins.Src1 != 0 && !used[ins.Src1] {
					used[ins.Src1] = true
					changed = true
				}
				if ins.Src2 != 0 && !used[ins.Src2] {
					used[ins.Src2] = true
					changed = true
				}
			}
		}

		out := make(lir.List, 0, len(instrs))
		removed := false
		for _, ins := range instrs {
			if !ins.Op.HasSideEffect() && ins.Dest != 0 && !used[ins.Dest] {
				removed = true
				continue
			}
			out = append(out, ins)
		}
		instrs = out
		if !removed {
			return instrs
		}
	}
}
