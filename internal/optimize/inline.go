package optimize

import "cairn/internal/lir"

// inlinableOps is the "small function" whitelist pass 4 allows inside a
// function body considered for substitution: parameter loads, constants,
// returns, and a handful of simple arithmetic ops. No calls, no stores, no
// branches, no memory ops beyond load_param.
var inlinableOps = map[lir.Op]bool{
	lir.OpLoadParam: true, lir.OpConst: true,
	lir.OpReturn: true, lir.OpReturnAgg: true,
	lir.OpAdd: true, lir.OpSub: true, lir.OpMul: true, lir.OpDiv: true,
	lir.OpAnd: true, lir.OpOr: true, lir.OpXor: true, lir.OpNeg: true,
	lir.OpFuncBegin: true, lir.OpFuncEnd: true,
}

const maxInlineArith = 4

// funcBody is one function's instruction span. Inline-ness is read from
// its FuncBegin instruction's Data field, which sema stamps with "inline"
// when the function carries the source's inline hint.
type funcBody struct {
	name       string
	start, end int // indices of FuncBegin and FuncEnd, both inclusive
}

func findFuncBodies(instrs lir.List) []funcBody {
	var bodies []funcBody
	start := -1
	for i, ins := range instrs {
		switch ins.Op {
		case lir.OpFuncBegin:
			start = i
		case lir.OpFuncEnd:
			if start >= 0 {
				bodies = append(bodies, funcBody{name: ins.Name, start: start, end: i})
				start = -1
			}
		}
	}
	return bodies
}

// isSmall reports whether a function body qualifies for inlining: marked
// inline, and composed only of inlinableOps, with at most maxInlineArith
// arithmetic instructions.
func isSmall(instrs lir.List, fb funcBody) bool {
	if instrs[fb.start].Data != "inline" {
		return false
	}
	arith := 0
	for i := fb.start; i <= fb.end; i++ {
		op := instrs[i].Op
		if !inlinableOps[op] {
			return false
		}
		switch op {
		case lir.OpAdd, lir.OpSub, lir.OpMul, lir.OpDiv, lir.OpAnd, lir.OpOr, lir.OpXor, lir.OpNeg:
			arith++
		}
	}
	return arith <= maxInlineArith
}

// inlineExpansion is pass 4: for each call to a function marked inline
// whose body meets the small-function heuristic, substitute a cloned copy
// of the body with its load_param instructions replaced by the call's
// arguments, renumbering value ids so the clone doesn't collide with the
// rest of the unit.
func inlineExpansion(instrs lir.List) lir.List {
	bodies := findFuncBodies(instrs)
	small := make(map[string]funcBody, len(bodies))
	for _, fb := range bodies {
		if isSmall(instrs, fb) {
			small[fb.name] = fb
		}
	}
	if len(small) == 0 {
		return instrs
	}

	nextID := 0
	for _, ins := range instrs {
		if ins.Dest > nextID {
			nextID = ins.Dest
		}
	}
	nextID++

	out := make(lir.List, 0, len(instrs))
	// pendingArgs collects the OpArg value ids pushed since the previous
	// call, in push order (sema interleaves argument evaluation with the
	// pushes); argAt holds those OpArg instructions' positions in out so an
	// inlined call can drop them.
	var pendingArgs, argAt []int
	for i := 0; i < len(instrs); i++ {
		ins := instrs[i]
		if ins.Op == lir.OpArg {
			pendingArgs = append(pendingArgs, ins.Src1)
			argAt = append(argAt, len(out))
			out = append(out, ins)
			continue
		}
		if ins.Op == lir.OpCall || ins.Op == lir.OpCallVoid {
			if fb, ok := small[ins.Name]; ok {
				for k := len(argAt) - 1; k >= 0; k-- {
					out = append(out[:argAt[k]], out[argAt[k]+1:]...)
				}
				cloned, resultID := cloneBody(instrs, fb, pendingArgs, &nextID)
				out = append(out, cloned...)
				if ins.Op == lir.OpCall && ins.Dest != 0 {
					out = append(out, &lir.Instruction{
						Op: lir.OpAdd, Dest: ins.Dest, Src1: resultID, Src2: 0, Imm: 0, Type: ins.Type,
					})
				}
				pendingArgs, argAt = nil, nil
				continue
			}
			pendingArgs, argAt = nil, nil
		}
		out = append(out, ins)
	}
	return out
}

// cloneBody copies a small function body's instructions (excluding
// FuncBegin/FuncEnd), replacing load_param #N with the Nth argument value
// id and renumbering every other dest to a fresh id above *nextID so the
// clone cannot collide with the caller's value ids. It returns the cloned
// instructions and the value id standing in for the inlined return value
// (0 if the body is void).
func cloneBody(instrs lir.List, fb funcBody, args []int, nextID *int) (lir.List, int) {
	remap := make(map[int]int, fb.end-fb.start)
	var out lir.List
	result := 0
	for i := fb.start + 1; i < fb.end; i++ {
		src := instrs[i]
		clone := *src
		if clone.Op == lir.OpLoadParam {
			idx := int(clone.Imm)
			if idx >= 0 && idx < len(args) {
				remap[clone.Dest] = args[idx]
				continue // the param value IS the argument; no instruction needed
			}
		}
		if clone.Dest != 0 {
			fresh := *nextID
			*nextID++
			remap[clone.Dest] = fresh
			clone.Dest = fresh
		}
		if r, ok := remap[clone.Src1]; ok {
			clone.Src1 = r
		}
		if r, ok := remap[clone.Src2]; ok {
			clone.Src2 = r
		}
		if clone.Op == lir.OpReturn || clone.Op == lir.OpReturnAgg {
			result = clone.Src1
			continue // the return becomes a plain value flowing to the call site
		}
		out = append(out, &clone)
	}
	return out, result
}
