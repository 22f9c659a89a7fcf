package sema

import (
	"strconv"
	"strings"

	"cairn/internal/ast"
	"cairn/internal/sym"
	"cairn/internal/types"
)

// processGlobal implements phase 2: "Process global
// declarations in source order, emitting glob_var, glob_array, glob_struct,
// glob_union, glob_string, glob_addr directives; fold initializers via the
// constant evaluator; zero-fill any uninitialized slots." Diagnostics are
// accumulated on a.Diag rather than returned, so one bad global doesn't stop
// the rest of the translation unit from being checked.
func (a *Analyzer) processGlobal(g ast.Stmt) {
	switch n := g.(type) {
	case *ast.VarDecl:
		a.processGlobalVar(n)
	case *ast.TypedefStmt:
		t := a.resolveTypeName(n.Type)
		a.Syms.Add(&sym.Symbol{Name: n.Name, Kind: sym.Typedef, Type: t})
	case *ast.EnumDecl:
		a.processEnumDecl(n)
	case *ast.StructDecl:
		kind := types.Struct
		if n.IsUnion {
			kind = types.Union
		}
		t := &types.Type{Kind: kind, Tag: n.Tag}
		for _, f := range n.Members {
			mt := a.resolveTypeName(f.Type)
			m := &types.Member{Name: f.Name, Type: mt}
			if f.BitWidth != nil {
				if v, _, ok := a.evalConstInt(f.BitWidth); ok {
					m.BitWidth = int(v)
				}
			}
			t.Members = append(t.Members, m)
		}
		if n.IsUnion {
			types.LayoutUnion(t, a.Opts.WordSize())
		} else {
			types.LayoutStruct(t, a.Opts.Pack, a.Opts.WordSize())
		}
		kindSym := sym.StructTag
		if n.IsUnion {
			kindSym = sym.UnionTag
		}
		a.Syms.AddTag(&sym.Symbol{Name: n.Tag, Kind: kindSym, Type: t})
	case *ast.StaticAssertStmt:
		v, _, ok := a.evalConstInt(n.Cond)
		if !ok {
			a.Diag.Errorf(n.Pos(), "static_assert condition is not a constant expression")
			return
		}
		if v == 0 {
			a.Diag.Errorf(n.Pos(), "static assertion failed: %s", n.Message)
		}
	}
}

func (a *Analyzer) processGlobalVar(n *ast.VarDecl) {
	t := a.resolveTypeName(n.Type)
	if existing := a.Syms.Lookup(n.Name); existing != nil {
		if !sameType(existing.Type, t) {
			a.Diag.Errorf(n.Pos(), "conflicting types for %q", n.Name)
			return
		}
		if n.Init == nil {
			return // repeated extern-style declaration, nothing new to emit
		}
	}

	s := &sym.Symbol{Name: n.Name, Kind: sym.Variable, Type: t, Storage: sym.StorageGlobal, IRName: n.Name}
	a.Syms.Add(s)

	switch t.Kind {
	case types.Array:
		a.emitGlobArray(n.Name, t, n.Init, n.Pos().Line)
	case types.Struct, types.Union:
		a.emitGlobAggregate(n.Name, t, n.Init)
	case types.Ptr:
		if id, ok := n.Init.(*ast.UnaryExpr); ok && id.Op == "&" {
			if target, ok := id.Operand.(*ast.Ident); ok {
				a.B.EmitGlobAddr(n.Name, t, target.Name)
				return
			}
		}
		v := int64(0)
		if n.Init != nil {
			if cv, _, ok := a.evalConstInt(n.Init); ok {
				v = cv
			}
		}
		a.B.EmitGlobVar(n.Name, t, v)
	default:
		v := int64(0)
		if n.Init != nil {
			cv, _, ok := a.evalConstInt(n.Init)
			if !ok {
				a.Diag.Errorf(n.Pos(), "global initializer for %q is not a constant expression", n.Name)
				return
			}
			v = cv
		}
		a.B.EmitGlobVar(n.Name, t, v)
	}
}

func (a *Analyzer) emitGlobArray(name string, t *types.Type, init ast.Expr, line int) {
	count := t.Len
	var vals []string
	if lst, ok := init.(*ast.InitList); ok {
		if count < 0 {
			count = len(lst.Elems)
			t.Len = count
		}
		vals = make([]string, count)
		next := 0
		for _, el := range lst.Elems {
			idx := next
			if el.Index != nil {
				if v, _, ok := a.evalConstInt(el.Index); ok {
					idx = int(v)
				}
			}
			if v, _, ok := a.evalConstInt(el.Value); ok {
				if idx >= 0 && idx < count {
					vals[idx] = strconv.FormatInt(v, 10)
				}
			}
			next = idx + 1
		}
	} else if count < 0 {
		count = 0
	}
	for i := range vals {
		if vals[i] == "" {
			vals[i] = "0"
		}
	}
	a.B.EmitGlobArray(name, t, count, strings.Join(vals, ","))
}

func (a *Analyzer) emitGlobAggregate(name string, t *types.Type, init ast.Expr) {
	vals := make([]string, len(t.Members))
	for i := range vals {
		vals[i] = "0"
	}
	if lst, ok := init.(*ast.InitList); ok {
		next := 0
		for _, el := range lst.Elems {
			idx := next
			if el.Designator != "" {
				for i, m := range t.Members {
					if m.Name == el.Designator {
						idx = i
						break
					}
				}
			}
			if v, _, ok := a.evalConstInt(el.Value); ok && idx >= 0 && idx < len(vals) {
				vals[idx] = strconv.FormatInt(v, 10)
			}
			next = idx + 1
		}
	}
	if t.Kind == types.Union {
		a.B.EmitGlobUnion(name, t, strings.Join(vals, ","))
	} else {
		a.B.EmitGlobStruct(name, t, strings.Join(vals, ","))
	}
}

// processEnumDecl registers every enumerator, applying the "previous + 1"
// rule for entries without an explicit value.
func (a *Analyzer) processEnumDecl(n *ast.EnumDecl) {
	next := int64(0)
	for i, name := range n.Names {
		v := next
		if i < len(n.Values) && n.Values[i] != nil {
			cv, _, ok := a.evalConstInt(n.Values[i])
			if !ok {
				a.Diag.Errorf(n.Pos(), "enumerator %q is not a constant expression", name)
				continue
			}
			v = cv
		}
		a.Syms.Add(&sym.Symbol{Name: name, Kind: sym.EnumConstant, Type: types.TInt, EnumValue: v})
		next = v + 1
	}
	if n.Tag != "" {
		a.Syms.AddTag(&sym.Symbol{Name: n.Tag, Kind: sym.StructTag, Type: &types.Type{Kind: types.Enum, Tag: n.Tag, Complete: true}})
	}
}
