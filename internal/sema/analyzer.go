// Package sema implements the semantic analyzer and LIR builder: it walks
// the AST after parsing, validates every construct, resolves identifiers
// against the symbol table, computes aggregate layouts, decides storage,
// and emits LIR.
//
// Grounded on the ast.Infer/ast.TypeChecker walker-dispatch idiom
// (ast/type.go): one function per statement/expression kind, driven by a
// type switch rather than callback hooks, because this analyzer must emit
// LIR as it goes instead of annotating AST nodes in place for a later pass. The three-phase translation-unit
// ordering (prototypes, then globals, then function bodies) is grounded on
// compile/compiler.go's CompileTheWorld, which parses and type-checks the
// whole program before per-function codegen.
package sema

import (
	"cairn/internal/ast"
	"cairn/internal/diag"
	"cairn/internal/lir"
	"cairn/internal/sym"
	"cairn/internal/types"
)

// Options configures the platform- and translation-unit-wide behavior of
// the analyzer: the x86_64 flag selecting word size for the constant
// evaluator and storage layout, and the active struct pack alignment
// (0 = natural).
type Options struct {
	X86_64 bool
	Pack   int
}

func (o Options) WordSize() int {
	if o.X86_64 {
		return 8
	}
	return 4
}

// loopCtx tracks the labels break/continue resolve to; if the current
// scope lacks the corresponding target label, resolving it is a hard error.
type loopCtx struct {
	breakLabel    string
	continueLabel string
}

// Analyzer is the per-translation-unit semantic analyzer + LIR builder.
// Not safe for concurrent use.
type Analyzer struct {
	Opts Options
	Syms *sym.Table
	B    *lir.Builder
	Diag *diag.Context

	loops     []loopCtx
	stackOff  int // running per-function stack_offset counter
	staticN   int // counter minting __staticN names
	curFunc   *ast.Function
	hiddenRet *sym.Symbol // set when the current function returns an aggregate
}

// NewAnalyzer constructs an analyzer for one translation unit.
func NewAnalyzer(file string, opts Options) *Analyzer {
	return &Analyzer{
		Opts: opts,
		Syms: sym.NewTable(),
		B:    lir.NewBuilder(),
		Diag: diag.NewContext(file),
	}
}

// CompileUnit runs the three translation-unit phases in order and returns
// the populated LIR builder, or the accumulated diagnostics as an error. No
// partial output is produced on failure.
func (a *Analyzer) CompileUnit(tu *ast.TranslationUnit) (*lir.Builder, error) {
	// Phase 1: register all function prototypes/definitions.
	for _, fn := range tu.Funcs {
		if err := a.registerPrototype(fn); err != nil {
			return nil, err
		}
	}
	if a.Diag.HasErrors() {
		return nil, a.Diag
	}

	// Phase 2: process global declarations in source order.
	for _, g := range tu.Globals {
		a.processGlobal(g)
	}
	if a.Diag.HasErrors() {
		return nil, a.Diag
	}

	// Phase 3: process function definitions.
	for _, fn := range tu.Funcs {
		if fn.Body != nil {
			a.compileFunction(fn)
		}
	}
	if a.Diag.HasErrors() {
		return nil, a.Diag
	}
	return a.B, nil
}

// registerPrototype implements phase 1: a redeclaration must
// match return type, parameter types, and variadic flag; inline/noreturn
// flags merge monotonically (once set, stay set).
func (a *Analyzer) registerPrototype(fn *ast.Function) error {
	retTy := a.resolveTypeName(fn.ReturnType)
	var paramTypes []*types.Type
	for _, p := range fn.Params {
		paramTypes = append(paramTypes, a.resolveTypeName(p.Type))
	}
	sig := &types.Type{Kind: types.Func, Ret: retTy, Params: paramTypes, Variadic: fn.Variadic}

	if existing := a.Syms.Lookup(fn.Name); existing != nil {
		if existing.Kind != sym.FunctionSym {
			return a.Diag.Errorf(fn.Pos(), "redeclaration of %q as a different kind of symbol", fn.Name)
		}
		if !sameSignature(existing.Type, sig) {
			return a.Diag.Errorf(fn.Pos(), "conflicting types for %q", fn.Name)
		}
		existing.IsInline = existing.IsInline || fn.IsInline
		existing.IsNoreturn = existing.IsNoreturn || fn.IsNoreturn
		if fn.Body != nil {
			existing.IsPrototype = false
		}
		return nil
	}
	a.Syms.Add(&sym.Symbol{
		Name: fn.Name, Kind: sym.FunctionSym, Type: sig,
		IsPrototype: fn.Body == nil, IsInline: fn.IsInline, IsNoreturn: fn.IsNoreturn,
		IRName: fn.Name,
	})
	return nil
}

func sameSignature(a, b *types.Type) bool {
	if a.Variadic != b.Variadic || len(a.Params) != len(b.Params) {
		return false
	}
	if !sameType(a.Ret, b.Ret) {
		return false
	}
	for i := range a.Params {
		if !sameType(a.Params[i], b.Params[i]) {
			return false
		}
	}
	return true
}

func sameType(a, b *types.Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case types.Ptr:
		return sameType(a.Inner, b.Inner)
	case types.Array:
		return sameType(a.Elem, b.Elem)
	case types.Struct, types.Union, types.Enum:
		return a.Tag == b.Tag
	default:
		return true
	}
}
