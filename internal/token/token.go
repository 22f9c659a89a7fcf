// Package token defines source positions and the lexical token vocabulary
// consumed by the parser.
package token

import "fmt"

// Pos is a source location attached to every token and, later, every LIR
// instruction.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Kind is the closed set of token tags.
type Kind int

const (
	EOF Kind = iota
	Ident
	Keyword
	IntLit
	FloatLit
	CharLit
	StringLit
	Punct
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "ident"
	case Keyword:
		return "keyword"
	case IntLit:
		return "int-literal"
	case FloatLit:
		return "float-literal"
	case CharLit:
		return "char-literal"
	case StringLit:
		return "string-literal"
	case Punct:
		return "punct"
	default:
		return "?"
	}
}

// IntSuffix records the unsigned/long-count annotations on an integer
// literal, e.g. the "UL" in 3UL.
type IntSuffix struct {
	Unsigned  bool
	LongCount int // 0, 1 (L) or 2 (LL)
}

// Token is a single lexical unit: a closed-set tag plus the literal text
// and source location it was scanned from.
type Token struct {
	Kind   Kind
	Text   string
	Pos    Pos
	Base   int // 8, 10, or 16 for IntLit; 0 otherwise
	Suffix IntSuffix
	Wide   bool // wide char/string literal (L'x', L"s")
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Text, t.Pos)
}

// Keywords is the closed keyword set recognized by the lexer. Anything not
// in this table that looks like an identifier is scanned as Ident.
var Keywords = map[string]bool{
	"void": true, "bool": true, "char": true, "short": true, "int": true,
	"long": true, "float": true, "double": true, "signed": true,
	"unsigned": true, "struct": true, "union": true, "enum": true,
	"typedef": true, "const": true, "volatile": true, "restrict": true,
	"static": true, "extern": true, "auto": true, "register": true,
	"inline": true, "_Noreturn": true, "sizeof": true, "_Alignof": true,
	"if": true, "else": true, "while": true, "do": true, "for": true,
	"switch": true, "case": true, "default": true, "break": true,
	"continue": true, "return": true, "goto": true, "_Static_assert": true,
}
