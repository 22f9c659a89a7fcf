// Package sym implements the scoped symbol table: a scope is a singly-
// linked list of symbols, and nested scopes are chained through their parent
// pointer so lookup walks current -> outer.
//
// Grounded on the scope-tracking machinery inside ast.Infer
// (enterScope/exitScope/getLetType/setVarType in ast/type.go),
// pulled out into its own package so the symbol table is a first-class
// component shared by the analyzer and the LIR builder rather than
// private to type inference.
package sym

import "cairn/internal/types"

// Kind is the closed set of symbol kinds.
type Kind int

const (
	Variable Kind = iota
	Parameter
	FunctionSym
	Typedef
	EnumConstant
	StructTag
	UnionTag
)

// Storage is where a variable's value lives at runtime.
type Storage int

const (
	StorageNone Storage = iota // extern, or not yet assigned
	StorageStatic
	StorageStack
	StorageParam
	StorageGlobal
)

// Symbol is one entry in the table.
type Symbol struct {
	Name        string
	Kind        Kind
	Type        *types.Type
	Storage     Storage
	IRName      string
	StackOffset int
	ParamIndex  int
	ArraySize   int
	ElemSize    int
	Alignment   int
	Const       bool
	Volatile    bool
	Restrict    bool
	IsPrototype bool
	IsInline    bool
	IsNoreturn  bool
	EnumValue   int64 // valid when Kind == EnumConstant

	next *Symbol // intrusive link within the owning scope chain
}

// scope is one nesting level: the head of its own symbol chain (linked
// through Symbol.next) plus a pointer to the enclosing scope.
type scope struct {
	head   *Symbol
	parent *scope
}

// Table is the full symbol table: an ordinary namespace, a tag namespace
// (struct/union/enum, kept distinct), and the current
// scope chain.
type Table struct {
	ordinary *scope
	tags     *scope
	labels   map[string]bool // current function's label table, reset per function
}

// NewTable returns a table with a single (file) scope open.
func NewTable() *Table {
	return &Table{ordinary: &scope{}, tags: &scope{}}
}

// Snapshot captures the current scope head so pop_to can restore it.
type Snapshot struct {
	ordinary *Symbol
	tags     *Symbol
}

// OpenScope pushes a new nested scope.
func (t *Table) OpenScope() {
	t.ordinary = &scope{parent: t.ordinary}
	t.tags = &scope{parent: t.tags}
}

// Mark returns a snapshot of the current scope heads, to be passed to
// PopTo later. This is made explicit rather than implied by a parent
// pointer so a single open scope can be rewound without closing it (e.g.
// for loop re-entry bookkeeping in the analyzer).
func (t *Table) Mark() Snapshot {
	return Snapshot{ordinary: t.ordinary.head, tags: t.tags.head}
}

// PopTo frees (unlinks) all entries newer than the snapshot, restoring the
// scope's head exactly.
func (t *Table) PopTo(s Snapshot) {
	t.ordinary.head = s.ordinary
	t.tags.head = s.tags
}

// CloseScope pops back to the parent scope entirely.
func (t *Table) CloseScope() {
	if t.ordinary.parent != nil {
		t.ordinary = t.ordinary.parent
	}
	if t.tags.parent != nil {
		t.tags = t.tags.parent
	}
}

// Add prepends a new symbol to the current ordinary scope, shadowing any
// outer declaration of the same name.
func (t *Table) Add(sy *Symbol) {
	sy.next = t.ordinary.head
	t.ordinary.head = sy
}

// AddTag prepends a new symbol into the current tag scope.
func (t *Table) AddTag(sy *Symbol) {
	sy.next = t.tags.head
	t.tags.head = sy
}

// Lookup walks current -> outer in the ordinary namespace.
func (t *Table) Lookup(name string) *Symbol {
	for sc := t.ordinary; sc != nil; sc = sc.parent {
		for s := sc.head; s != nil; s = s.next {
			if s.Name == name {
				return s
			}
		}
	}
	return nil
}

// LookupTag walks current -> outer in the tag namespace.
func (t *Table) LookupTag(name string) *Symbol {
	for sc := t.tags; sc != nil; sc = sc.parent {
		for s := sc.head; s != nil; s = s.next {
			if s.Name == name {
				return s
			}
		}
	}
	return nil
}

// IsTypedef satisfies ast.TypedefSet for the parser's typedef-vs-identifier
// disambiguation.
func (t *Table) IsTypedef(name string) bool {
	s := t.Lookup(name)
	return s != nil && s.Kind == Typedef
}

// ResetLabels starts a fresh per-function label table.
func (t *Table) ResetLabels() {
	t.labels = make(map[string]bool)
}

func (t *Table) DeclareLabel(name string) { t.labels[name] = true }
func (t *Table) HasLabel(name string) bool { return t.labels[name] }
