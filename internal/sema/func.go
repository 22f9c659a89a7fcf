package sema

import (
	"cairn/internal/ast"
	"cairn/internal/lir"
	"cairn/internal/sym"
	"cairn/internal/types"
)

// compileFunction implements phase 3: install parameters as
// symbols with sequential param_index, emit func_begin/func_end, and walk
// the body. Aggregate-by-value returns get a hidden pointer parameter at
// index 0 and lower to return_agg, following the System V ABI's hidden
// first argument convention for struct returns.
func (a *Analyzer) compileFunction(fn *ast.Function) {
	a.Syms.OpenScope()
	a.Syms.ResetLabels()
	a.stackOff = 0
	a.staticN = 0
	a.curFunc = fn
	a.hiddenRet = nil
	a.loops = nil

	retTy := a.resolveTypeName(fn.ReturnType)
	paramBase := 0
	if retTy.IsAggregate() {
		hiddenTy := &types.Type{Kind: types.Ptr, Inner: retTy}
		a.hiddenRet = &sym.Symbol{Name: "__ret", Kind: sym.Parameter, Type: hiddenTy, Storage: sym.StorageParam, ParamIndex: 0, IRName: "__ret"}
		a.Syms.Add(a.hiddenRet)
		paramBase = 1
	}

	a.B.EmitFuncBegin(fn.Name, fn.IsInline)
	for i, p := range fn.Params {
		pt := a.resolveTypeName(p.Type)
		a.Syms.Add(&sym.Symbol{Name: p.Name, Kind: sym.Parameter, Type: pt, Storage: sym.StorageParam, ParamIndex: i + paramBase, IRName: p.Name})
	}

	for _, stmt := range fn.Body.Stmts {
		a.checkStmt(stmt)
	}

	// A fall-through end-of-body for a non-void function is a missing
	// return; the register allocator/emitter don't need a trailing
	// return instruction to exist for every path, so this is left to a
	// future diagnostics pass rather than hard-errored here.
	a.B.EmitNoResult(lir.OpFuncEnd, 0, 0, fn.Name)
	a.Syms.CloseScope()
	a.curFunc = nil
}
