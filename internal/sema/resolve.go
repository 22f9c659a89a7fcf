package sema

import (
	"cairn/internal/ast"
	"cairn/internal/sym"
	"cairn/internal/types"
)

// resolveTypeName turns parser surface syntax into a internal/types.Type,
// applying declarator modifiers (pointer chain, array dims, func
// signature) around the resolved base type.
func (a *Analyzer) resolveTypeName(tn *ast.TypeName) *types.Type {
	if tn == nil {
		return types.TVoid
	}
	base := a.resolveBase(tn)
	t := base
	if tn.IsFunc {
		var params []*types.Type
		for _, p := range tn.Params {
			params = append(params, a.resolveTypeName(p.Type))
		}
		t = &types.Type{Kind: types.Func, Ret: t, Params: params, Variadic: tn.Variadic}
	}
	// array dims apply innermost-first (closest to the declared name).
	for i := len(tn.ArrayDims) - 1; i >= 0; i-- {
		d := tn.ArrayDims[i]
		ln := -1
		hasVLA := d.IsVLAAny
		if d.Size != nil {
			if v, _, ok := a.evalConstInt(d.Size); ok {
				ln = int(v)
			} else {
				hasVLA = true
			}
		}
		t = &types.Type{Kind: types.Array, Elem: t, Len: ln, HasVLA: hasVLA}
	}
	for i := 0; i < tn.Pointer; i++ {
		t = &types.Type{Kind: types.Ptr, Inner: t}
	}
	t = applyQuals(t, tn.Quals)
	return t
}

func applyQuals(t *types.Type, quals []string) *types.Type {
	var q types.Qualifiers
	for _, s := range quals {
		switch s {
		case "const":
			q |= types.Const
		case "volatile":
			q |= types.Volatile
		case "restrict":
			q |= types.Restrict
		}
	}
	if q == 0 {
		return t
	}
	cp := *t
	cp.Quals |= q
	return &cp
}

func (a *Analyzer) resolveBase(tn *ast.TypeName) *types.Type {
	if tn.IsStruct || tn.IsUnion {
		return a.resolveAggregate(tn)
	}
	if tn.IsEnum {
		return &types.Type{Kind: types.Enum, Tag: tn.TagName, Complete: true}
	}
	if len(tn.Specifiers) == 1 {
		if s := a.Syms.Lookup(tn.Specifiers[0]); s != nil && s.Kind == sym.Typedef {
			return s.Type
		}
	}
	return resolveScalar(tn.Specifiers)
}

func (a *Analyzer) resolveAggregate(tn *ast.TypeName) *types.Type {
	kind := types.Struct
	if tn.IsUnion {
		kind = types.Union
	}
	t := &types.Type{Kind: kind, Tag: tn.TagName}
	if tn.Members != nil {
		for _, f := range tn.Members {
			mt := a.resolveTypeName(f.Type)
			m := &types.Member{Name: f.Name, Type: mt}
			if f.BitWidth != nil {
				if v, _, ok := a.evalConstInt(f.BitWidth); ok {
					m.BitWidth = int(v)
				}
			}
			if arr := mt; arr.Kind == types.Array && arr.Len < 0 && !arr.HasVLA {
				m.IsFlexible = true
			}
			t.Members = append(t.Members, m)
		}
		if tn.IsUnion {
			types.LayoutUnion(t, a.Opts.WordSize())
		} else {
			types.LayoutStruct(t, a.Opts.Pack, a.Opts.WordSize())
		}
		if tn.TagName != "" {
			a.Syms.AddTag(&sym.Symbol{Name: tn.TagName, Kind: tagKind(tn.IsUnion), Type: t})
		}
	} else if tn.TagName != "" {
		if existing := a.Syms.LookupTag(tn.TagName); existing != nil {
			return existing.Type
		}
		// forward reference to an incomplete aggregate.
		a.Syms.AddTag(&sym.Symbol{Name: tn.TagName, Kind: tagKind(tn.IsUnion), Type: t})
	}
	return t
}

func tagKind(isUnion bool) sym.Kind {
	if isUnion {
		return sym.UnionTag
	}
	return sym.StructTag
}

func resolveScalar(specs []string) *types.Type {
	has := func(s string) bool {
		for _, x := range specs {
			if x == s {
				return true
			}
		}
		return false
	}
	unsigned := has("unsigned")
	switch {
	case has("void"):
		return types.TVoid
	case has("bool"):
		return types.TBool
	case has("char"):
		if unsigned {
			return types.TUChar
		}
		return types.TChar
	case has("double"):
		if has("long") {
			return &types.Type{Kind: types.LDouble}
		}
		return types.TDouble
	case has("float"):
		return types.TFloat
	case has("short"):
		if unsigned {
			return types.TUShort
		}
		return types.TShort
	case countLong(specs) >= 2:
		if unsigned {
			return types.TULLong
		}
		return types.TLLong
	case countLong(specs) == 1:
		if unsigned {
			return types.TULong
		}
		return types.TLong
	default:
		if unsigned {
			return types.TUInt
		}
		return types.TInt
	}
}

func countLong(specs []string) int {
	n := 0
	for _, s := range specs {
		if s == "long" {
			n++
		}
	}
	return n
}
