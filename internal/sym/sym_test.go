package sym

import (
	"testing"

	"cairn/internal/types"
)

func TestLookupShadowing(t *testing.T) {
	tbl := NewTable()
	tbl.Add(&Symbol{Name: "x", Kind: Variable, Type: types.TInt})
	tbl.OpenScope()
	tbl.Add(&Symbol{Name: "x", Kind: Variable, Type: types.TChar})

	s := tbl.Lookup("x")
	if s.Type != types.TChar {
		t.Fatalf("inner x should shadow outer, got %v", s.Type.Kind)
	}
	tbl.CloseScope()
	s = tbl.Lookup("x")
	if s.Type != types.TInt {
		t.Fatalf("outer x should be visible again, got %v", s.Type.Kind)
	}
}

func TestPopToSnapshot(t *testing.T) {
	tbl := NewTable()
	tbl.Add(&Symbol{Name: "a", Kind: Variable, Type: types.TInt})
	snap := tbl.Mark()
	tbl.Add(&Symbol{Name: "b", Kind: Variable, Type: types.TInt})
	if tbl.Lookup("b") == nil {
		t.Fatal("b should be visible before pop_to")
	}
	tbl.PopTo(snap)
	if tbl.Lookup("b") != nil {
		t.Fatal("b should be gone after pop_to")
	}
	if tbl.Lookup("a") == nil {
		t.Fatal("a should survive pop_to")
	}
}

func TestTagNamespaceSeparateFromOrdinary(t *testing.T) {
	tbl := NewTable()
	tbl.Add(&Symbol{Name: "S", Kind: Variable, Type: types.TInt})
	tbl.AddTag(&Symbol{Name: "S", Kind: StructTag, Type: &types.Type{Kind: types.Struct, Tag: "S"}})
	if tbl.Lookup("S").Kind != Variable {
		t.Fatal("ordinary S should be the variable")
	}
	if tbl.LookupTag("S").Kind != StructTag {
		t.Fatal("tag S should be the struct tag")
	}
}

func TestLabelTablePerFunction(t *testing.T) {
	tbl := NewTable()
	tbl.ResetLabels()
	tbl.DeclareLabel("done")
	if !tbl.HasLabel("done") {
		t.Fatal("label done should be declared")
	}
	tbl.ResetLabels()
	if tbl.HasLabel("done") {
		t.Fatal("label table should reset per function")
	}
}
