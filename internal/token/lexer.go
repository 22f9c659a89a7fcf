package token

import (
	"bufio"
	"io"
	"strings"
)

// Lexer scans preprocessed source text one byte at a time, the way a
// hand-rolled recursive-descent frontend's lexer does: a one-byte lookahead
// buffer over a buffered reader, no external tokenizer library.
type Lexer struct {
	r        *bufio.Reader
	file     string
	line     int
	col      int
	lookahed byte
	haveLook bool
}

// NewLexer constructs a Lexer reading from r, reporting positions under the
// given file name (used verbatim in diagnostics; may be a #line-embedded
// name rather than the real path).
func NewLexer(file string, r io.Reader) *Lexer {
	return &Lexer{r: bufio.NewReader(r), file: file, line: 1, col: 0}
}

func (l *Lexer) peek() (byte, bool) {
	if l.haveLook {
		return l.lookahed, true
	}
	b, err := l.r.ReadByte()
	if err != nil {
		return 0, false
	}
	l.lookahed = b
	l.haveLook = true
	return b, true
}

func (l *Lexer) next() (byte, bool) {
	b, ok := l.peek()
	if !ok {
		return 0, false
	}
	l.haveLook = false
	if b == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return b, true
}

func (l *Lexer) pos() Pos { return Pos{File: l.file, Line: l.line, Column: l.col + 1} }

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isHexDig(b byte) bool { return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F') }
func isAlpha(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isAlnum(b byte) bool { return isAlpha(b) || isDigit(b) }

// Next scans and returns the next token, skipping whitespace and comments.
func (l *Lexer) Next() Token {
	l.skipWhitespaceAndComments()
	pos := l.pos()
	b, ok := l.peek()
	if !ok {
		return Token{Kind: EOF, Pos: pos}
	}
	switch {
	case isDigit(b):
		return l.scanNumber(pos)
	case b == '\'':
		return l.scanChar(pos, false)
	case b == '"':
		return l.scanString(pos, false)
	case isAlpha(b):
		return l.scanIdentOrKeyword(pos)
	default:
		return l.scanPunct(pos)
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		b, ok := l.peek()
		if !ok {
			return
		}
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			l.next()
		case b == '/':
			l.next()
			nb, ok := l.peek()
			if ok && nb == '/' {
				for {
					c, ok := l.next()
					if !ok || c == '\n' {
						break
					}
				}
				continue
			}
			if ok && nb == '*' {
				l.next()
				l.skipBlockComment()
				continue
			}
			// not a comment: push back conceptually by treating '/' as punct later.
			l.pushSlash()
			return
		default:
			return
		}
	}
}

// pushSlash is needed because skipWhitespaceAndComments already consumed
// the leading '/' while probing for a comment; stash it so scanPunct can
// still see it.
func (l *Lexer) pushSlash() {
	l.haveLook = true
	l.lookahed = '/'
}

func (l *Lexer) skipBlockComment() {
	prev := byte(0)
	for {
		b, ok := l.next()
		if !ok {
			return
		}
		if prev == '*' && b == '/' {
			return
		}
		prev = b
	}
}

func (l *Lexer) scanNumber(pos Pos) Token {
	var sb strings.Builder
	base := 10
	isFloat := false
	if b, _ := l.peek(); b == '0' {
		sb.WriteByte(b)
		l.next()
		if nb, ok := l.peek(); ok && (nb == 'x' || nb == 'X') {
			base = 16
			sb.WriteByte(nb)
			l.next()
			for {
				b, ok := l.peek()
				if !ok || !isHexDig(b) {
					break
				}
				sb.WriteByte(b)
				l.next()
			}
			return l.finishInt(pos, sb.String(), base)
		}
		base = 8
	}
	for {
		b, ok := l.peek()
		if !ok || !isDigit(b) {
			break
		}
		sb.WriteByte(b)
		l.next()
	}
	if b, ok := l.peek(); ok && b == '.' {
		isFloat = true
		sb.WriteByte(b)
		l.next()
		for {
			b, ok := l.peek()
			if !ok || !isDigit(b) {
				break
			}
			sb.WriteByte(b)
			l.next()
		}
	}
	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		isFloat = true
		sb.WriteByte(b)
		l.next()
		if b, ok := l.peek(); ok && (b == '+' || b == '-') {
			sb.WriteByte(b)
			l.next()
		}
		for {
			b, ok := l.peek()
			if !ok || !isDigit(b) {
				break
			}
			sb.WriteByte(b)
			l.next()
		}
	}
	if isFloat {
		for {
			b, ok := l.peek()
			if !ok || (b != 'f' && b != 'F' && b != 'l' && b != 'L') {
				break
			}
			l.next()
		}
		return Token{Kind: FloatLit, Text: sb.String(), Pos: pos}
	}
	return l.finishInt(pos, sb.String(), base)
}

func (l *Lexer) finishInt(pos Pos, text string, base int) Token {
	var suf IntSuffix
	for {
		b, ok := l.peek()
		if !ok {
			break
		}
		switch b {
		case 'u', 'U':
			suf.Unsigned = true
			l.next()
		case 'l', 'L':
			suf.LongCount++
			l.next()
		default:
			return Token{Kind: IntLit, Text: text, Pos: pos, Base: base, Suffix: suf}
		}
	}
	return Token{Kind: IntLit, Text: text, Pos: pos, Base: base, Suffix: suf}
}

func (l *Lexer) scanIdentOrKeyword(pos Pos) Token {
	var sb strings.Builder
	for {
		b, ok := l.peek()
		if !ok || !isAlnum(b) {
			break
		}
		sb.WriteByte(b)
		l.next()
	}
	text := sb.String()
	if Keywords[text] {
		return Token{Kind: Keyword, Text: text, Pos: pos}
	}
	return Token{Kind: Ident, Text: text, Pos: pos}
}

func (l *Lexer) scanChar(pos Pos, wide bool) Token {
	var sb strings.Builder
	l.next() // opening quote
	for {
		b, ok := l.next()
		if !ok || b == '\'' {
			break
		}
		sb.WriteByte(b)
		if b == '\\' {
			if nb, ok := l.next(); ok {
				sb.WriteByte(nb)
			}
		}
	}
	return Token{Kind: CharLit, Text: sb.String(), Pos: pos, Wide: wide}
}

func (l *Lexer) scanString(pos Pos, wide bool) Token {
	var sb strings.Builder
	l.next() // opening quote
	for {
		b, ok := l.next()
		if !ok || b == '"' {
			break
		}
		sb.WriteByte(b)
		if b == '\\' {
			if nb, ok := l.next(); ok {
				sb.WriteByte(nb)
			}
		}
	}
	return Token{Kind: StringLit, Text: sb.String(), Pos: pos, Wide: wide}
}

// multiChar lists the punctuator lookahead table, longest first, the way
// this lexer disambiguates e.g. "<<=" from "<<" from "<".
var multiChar = []string{
	"<<=", ">>=", "...",
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
}

func (l *Lexer) scanPunct(pos Pos) Token {
	first, _ := l.next()
	buf := []byte{first}
	// greedily try to extend to the longest matching punctuator.
	for {
		extended := string(buf)
		matched := false
		nb, ok := l.peek()
		if ok {
			candidate := extended + string(nb)
			for _, m := range multiChar {
				if strings.HasPrefix(m, candidate) {
					matched = true
					break
				}
			}
		}
		if !matched {
			break
		}
		c, _ := l.next()
		buf = append(buf, c)
	}
	return Token{Kind: Punct, Text: string(buf), Pos: pos}
}
