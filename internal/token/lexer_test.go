package token

import (
	"strings"
	"testing"
)

func mustBe(t *testing.T, got Token, kind Kind, text string) {
	t.Helper()
	if got.Kind != kind || got.Text != text {
		t.Fatalf("got %s, want kind=%s text=%q", got, kind, text)
	}
}

func TestLexerIdentsAndKeywords(t *testing.T) {
	l := NewLexer("t.c", strings.NewReader("int x = foo;"))
	mustBe(t, l.Next(), Keyword, "int")
	mustBe(t, l.Next(), Ident, "x")
	mustBe(t, l.Next(), Punct, "=")
	mustBe(t, l.Next(), Ident, "foo")
	mustBe(t, l.Next(), Punct, ";")
	mustBe(t, l.Next(), EOF, "")
}

func TestLexerNumbers(t *testing.T) {
	l := NewLexer("t.c", strings.NewReader("0x1F 42UL 3.14 010"))
	tok := l.Next()
	mustBe(t, tok, IntLit, "0x1F")
	if tok.Base != 16 {
		t.Fatalf("want base 16, got %d", tok.Base)
	}
	tok = l.Next()
	mustBe(t, tok, IntLit, "42")
	if !tok.Suffix.Unsigned || tok.Suffix.LongCount != 1 {
		t.Fatalf("bad suffix: %+v", tok.Suffix)
	}
	mustBe(t, l.Next(), FloatLit, "3.14")
	tok = l.Next()
	mustBe(t, tok, IntLit, "010")
	if tok.Base != 8 {
		t.Fatalf("want base 8, got %d", tok.Base)
	}
}

func TestLexerMultiCharPunct(t *testing.T) {
	l := NewLexer("t.c", strings.NewReader("a<<=b a<<b a<=b"))
	mustBe(t, l.Next(), Ident, "a")
	mustBe(t, l.Next(), Punct, "<<=")
	mustBe(t, l.Next(), Ident, "b")
	mustBe(t, l.Next(), Ident, "a")
	mustBe(t, l.Next(), Punct, "<<")
	mustBe(t, l.Next(), Ident, "b")
	mustBe(t, l.Next(), Ident, "a")
	mustBe(t, l.Next(), Punct, "<=")
	mustBe(t, l.Next(), Ident, "b")
}

func TestLexerComments(t *testing.T) {
	l := NewLexer("t.c", strings.NewReader("int /* skip me */ x; // trailing\ny"))
	mustBe(t, l.Next(), Keyword, "int")
	mustBe(t, l.Next(), Ident, "x")
	mustBe(t, l.Next(), Punct, ";")
	mustBe(t, l.Next(), Ident, "y")
}

func TestLexerStringAndChar(t *testing.T) {
	l := NewLexer("t.c", strings.NewReader(`"hi\n" 'a'`))
	mustBe(t, l.Next(), StringLit, `hi\n`)
	mustBe(t, l.Next(), CharLit, "a")
}
