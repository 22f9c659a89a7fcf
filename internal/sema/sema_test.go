package sema

import (
	"strings"
	"testing"

	"cairn/internal/ast"
	"cairn/internal/lir"
	"cairn/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noTypedefs stubs ast.TypedefSet for source snippets that never declare a
// typedef, mirroring ast/parser_test.go's own stub.
type noTypedefs struct{}

func (noTypedefs) IsTypedef(string) bool { return false }

func parse(t *testing.T, src string) *ast.TranslationUnit {
	t.Helper()
	l := token.NewLexer("t.c", strings.NewReader(src))
	p := ast.NewParser(l, noTypedefs{})
	tu, err := p.ParseTranslationUnit()
	require.NoError(t, err)
	return tu
}

func compile(t *testing.T, src string) lir.List {
	t.Helper()
	tu := parse(t, src)
	a := NewAnalyzer("t.c", Options{X86_64: true})
	b, err := a.CompileUnit(tu)
	require.NoError(t, err)
	return b.Instrs
}

func opsOf(instrs lir.List) []string {
	ops := make([]string, len(instrs))
	for i, ins := range instrs {
		ops[i] = ins.Op.String()
	}
	return ops
}

func countOp(instrs lir.List, op lir.Op) int {
	n := 0
	for _, ins := range instrs {
		if ins.Op == op {
			n++
		}
	}
	return n
}

func TestCompileSimpleScalarFunction(t *testing.T) {
	instrs := compile(t, "int add(int a, int b) { return a + b; }")
	require.NotEmpty(t, instrs)
	assert.Equal(t, lir.OpFuncBegin, instrs[0].Op)
	assert.Equal(t, "add", instrs[0].Name)
	assert.Contains(t, opsOf(instrs), "load_param")
	assert.Contains(t, opsOf(instrs), "add")
	assert.Equal(t, 1, countOp(instrs, lir.OpReturn))
	assert.Equal(t, lir.OpFuncEnd, instrs[len(instrs)-1].Op)
}

func TestCompileGlobalVarAndArray(t *testing.T) {
	instrs := compile(t, "int counter = 7;\nint nums[3] = {1, 2, 3};\n")
	var gv, ga *lir.Instruction
	for _, ins := range instrs {
		switch ins.Op {
		case lir.OpGlobVar:
			gv = ins
		case lir.OpGlobArray:
			ga = ins
		}
	}
	require.NotNil(t, gv)
	assert.Equal(t, "counter", gv.Name)
	assert.EqualValues(t, 7, gv.Imm)
	require.NotNil(t, ga)
	assert.Equal(t, "nums", ga.Name)
}

func TestCompileAggregateReturnUsesHiddenPointer(t *testing.T) {
	src := `
struct pair { int a; int b; };
struct pair make(int x, int y) {
	struct pair p;
	p.a = x;
	p.b = y;
	return p;
}
`
	instrs := compile(t, src)
	var begin, loadHidden, retAgg *lir.Instruction
	for _, ins := range instrs {
		switch {
		case ins.Op == lir.OpFuncBegin && begin == nil:
			begin = ins
		case ins.Op == lir.OpLoadParam && ins.Imm == 0 && loadHidden == nil:
			loadHidden = ins
		case ins.Op == lir.OpReturnAgg:
			retAgg = ins
		}
	}
	require.NotNil(t, begin)
	assert.Equal(t, "make", begin.Name)
	require.NotNil(t, loadHidden, "expected a load_param 0 reading the hidden return pointer")
	require.NotNil(t, retAgg)
	assert.Equal(t, loadHidden.Name, retAgg.Name, "return_agg must write through the same hidden pointer that was loaded")
	// The struct's two members must be copied into *__ret before the return.
	assert.GreaterOrEqual(t, countOp(instrs, lir.OpStorePtr), 2)
}

func TestCompileCallToAggregateReturningFunctionSynthesizesDestination(t *testing.T) {
	src := `
struct pair { int a; int b; };
struct pair make(int x, int y);
int use(void) {
	struct pair p = make(1, 2);
	return p.a;
}
`
	instrs := compile(t, src)
	assert.Contains(t, opsOf(instrs), "alloca", "call site should synthesize a hidden destination via alloca")
	assert.Contains(t, opsOf(instrs), "call_void", "aggregate-returning calls lower to call_void with the hidden pointer as arg 0")
	assert.GreaterOrEqual(t, countOp(instrs, lir.OpArg), 3, "two real args plus the synthesized hidden-pointer arg")
}

func TestCompileIfElseLowersToBranchesAndLabels(t *testing.T) {
	src := `
int max(int a, int b) {
	if (a > b) {
		return a;
	} else {
		return b;
	}
}
`
	instrs := compile(t, src)
	assert.Contains(t, opsOf(instrs), "bcond")
	assert.Contains(t, opsOf(instrs), "label")
	assert.Equal(t, 2, countOp(instrs, lir.OpReturn))
}

func TestCompileWhileLoopLowersToLabelsAndBranch(t *testing.T) {
	src := `
int sum_to(int n) {
	int total = 0;
	int i = 0;
	while (i < n) {
		total = total + i;
		i = i + 1;
	}
	return total;
}
`
	instrs := compile(t, src)
	assert.Contains(t, opsOf(instrs), "bcond")
	assert.Contains(t, opsOf(instrs), "br")
	assert.GreaterOrEqual(t, countOp(instrs, lir.OpLabel), 2)
}

func TestCompileForLoopLowersToLabelsAndBranch(t *testing.T) {
	src := `
int count(int n) {
	int c = 0;
	for (int i = 0; i < n; i = i + 1) {
		c = c + 1;
	}
	return c;
}
`
	instrs := compile(t, src)
	assert.Contains(t, opsOf(instrs), "bcond")
	assert.Contains(t, opsOf(instrs), "br")
}

func TestCompileRejectsConflictingRedeclaration(t *testing.T) {
	src := `
int f(int a);
int f(int a, int b) { return a + b; }
`
	tu := parse(t, src)
	a := NewAnalyzer("t.c", Options{X86_64: true})
	_, err := a.CompileUnit(tu)
	require.Error(t, err)
}

func TestCompileVoidFunctionEmitsPlainReturn(t *testing.T) {
	instrs := compile(t, "void noop(void) { return; }")
	assert.Equal(t, 1, countOp(instrs, lir.OpReturn))
	assert.Equal(t, 0, countOp(instrs, lir.OpReturnAgg))
	ret := instrs[len(instrs)-2]
	assert.Equal(t, lir.OpReturn, ret.Op)
	assert.Zero(t, ret.Src1)
}
