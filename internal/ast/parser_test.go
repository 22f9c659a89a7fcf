package ast

import (
	"strings"
	"testing"

	"cairn/internal/token"
)

type noTypedefs struct{}

func (noTypedefs) IsTypedef(string) bool { return false }

func parse(t *testing.T, src string) *TranslationUnit {
	t.Helper()
	l := token.NewLexer("t.c", strings.NewReader(src))
	p := NewParser(l, noTypedefs{})
	tu, err := p.ParseTranslationUnit()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return tu
}

func mustNotNil(t *testing.T, v interface{}, what string) {
	t.Helper()
	if v == nil {
		t.Fatalf("%s is nil", what)
	}
}

func TestParseSimpleFunction(t *testing.T) {
	tu := parse(t, "int f(void){return 2+3;}")
	if len(tu.Funcs) != 1 {
		t.Fatalf("want 1 function, got %d", len(tu.Funcs))
	}
	fn := tu.Funcs[0]
	if fn.Name != "f" {
		t.Fatalf("name = %q", fn.Name)
	}
	mustNotNil(t, fn.Body, "body")
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("want 1 stmt, got %d", len(fn.Body.Stmts))
	}
	ret, ok := fn.Body.Stmts[0].(*ReturnStmt)
	if !ok {
		t.Fatalf("want ReturnStmt, got %T", fn.Body.Stmts[0])
	}
	bin, ok := ret.Value.(*BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("want binary +, got %#v", ret.Value)
	}
}

func TestParseGlobalArray(t *testing.T) {
	tu := parse(t, "static int a[3] = {1,2,3};")
	if len(tu.Globals) != 1 {
		t.Fatalf("want 1 global, got %d", len(tu.Globals))
	}
	vd, ok := tu.Globals[0].(*VarDecl)
	if !ok {
		t.Fatalf("want VarDecl, got %T", tu.Globals[0])
	}
	if vd.Storage != "static" || vd.Name != "a" {
		t.Fatalf("vd = %+v", vd)
	}
	if len(vd.Type.ArrayDims) != 1 {
		t.Fatalf("want 1 array dim, got %d", len(vd.Type.ArrayDims))
	}
	il, ok := vd.Init.(*InitList)
	if !ok || len(il.Elems) != 3 {
		t.Fatalf("want 3-elem init list, got %#v", vd.Init)
	}
}

func TestParseSwitch(t *testing.T) {
	tu := parse(t, "int f(int x){switch(x){case 1: return 1; case 2: return 2;}}")
	fn := tu.Funcs[0]
	sw, ok := fn.Body.Stmts[0].(*SwitchStmt)
	if !ok {
		t.Fatalf("want SwitchStmt, got %T", fn.Body.Stmts[0])
	}
	if len(sw.Cases) != 2 {
		t.Fatalf("want 2 cases, got %d", len(sw.Cases))
	}
}

func TestParsePointerDeclAndCast(t *testing.T) {
	tu := parse(t, "int f(void){int *p; p = (int*)0; return *p;}")
	fn := tu.Funcs[0]
	vd, ok := fn.Body.Stmts[0].(*VarDecl)
	if !ok || vd.Type.Pointer != 1 {
		t.Fatalf("want pointer decl, got %#v", fn.Body.Stmts[0])
	}
}

func TestParseStructWithBitfield(t *testing.T) {
	tu := parse(t, "struct S { unsigned a:3; unsigned b:5; };")
	sd, ok := tu.Globals[0].(*StructDecl)
	if !ok {
		t.Fatalf("want StructDecl, got %T", tu.Globals[0])
	}
	if len(sd.Members) != 2 || sd.Members[0].BitWidth == nil {
		t.Fatalf("sd = %+v", sd)
	}
}

func TestParseForLoop(t *testing.T) {
	tu := parse(t, "int f(void){int s=0; for(int i=0;i<10;i=i+1){s=s+i;} return s;}")
	fn := tu.Funcs[0]
	forS, ok := fn.Body.Stmts[1].(*ForStmt)
	if !ok {
		t.Fatalf("want ForStmt, got %T", fn.Body.Stmts[1])
	}
	mustNotNil(t, forS.Cond, "cond")
	mustNotNil(t, forS.Step, "step")
}
