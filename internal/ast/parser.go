package ast

import (
	"fmt"

	"cairn/internal/token"
)

// ParseError is returned when the parser cannot continue; // requires it carry the first expected set alongside the position.
type ParseError struct {
	Pos      token.Pos
	Expected []string
	Got      token.Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unexpected %s %q, expected one of %v", e.Pos, e.Got.Kind, e.Got.Text, e.Expected)
}

// TypedefSet answers whether a name is currently a typedef, which is the
// only symbol-table consultation the parser performs.
type TypedefSet interface {
	IsTypedef(name string) bool
}

// Parser is pure recursive-descent over a token vector plus a cursor, the
// way ast/parser.go's Parser works, generalized to the full C-family
// grammar.
type Parser struct {
	toks  []token.Token
	pos   int
	typed TypedefSet
}

// NewParser buffers every token from l up front, then hands off to typedef-aware recursive descent.
func NewParser(l *token.Lexer, typed TypedefSet) *Parser {
	var toks []token.Token
	for {
		t := l.Next()
		toks = append(toks, t)
		if t.Kind == token.EOF {
			break
		}
	}
	return &Parser{toks: toks, typed: typed}
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) is(kind token.Kind, text string) bool {
	t := p.cur()
	return t.Kind == kind && t.Text == text
}

func (p *Parser) isPunct(text string) bool   { return p.is(token.Punct, text) }
func (p *Parser) isKeyword(text string) bool { return p.is(token.Keyword, text) }

func (p *Parser) expectPunct(text string) (token.Token, error) {
	if !p.isPunct(text) {
		return token.Token{}, &ParseError{Pos: p.cur().Pos, Expected: []string{text}, Got: p.cur()}
	}
	return p.advance(), nil
}

func (p *Parser) expectKeyword(text string) (token.Token, error) {
	if !p.isKeyword(text) {
		return token.Token{}, &ParseError{Pos: p.cur().Pos, Expected: []string{text}, Got: p.cur()}
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent() (token.Token, error) {
	if p.cur().Kind != token.Ident {
		return token.Token{}, &ParseError{Pos: p.cur().Pos, Expected: []string{"identifier"}, Got: p.cur()}
	}
	return p.advance(), nil
}

var typeKeywords = map[string]bool{
	"void": true, "bool": true, "char": true, "short": true, "int": true,
	"long": true, "float": true, "double": true, "signed": true,
	"unsigned": true,
}
var qualKeywords = map[string]bool{"const": true, "volatile": true, "restrict": true}
var storageKeywords = map[string]bool{"static": true, "extern": true, "auto": true, "register": true, "typedef": true}

// looksLikeTypeStart reports whether the current token can begin a
// declaration's type-specifier list: a type keyword, struct/union/enum,
// a qualifier/storage-class keyword, or a typedef-name (resolved via the
// symbol table).
func (p *Parser) looksLikeTypeStart() bool {
	t := p.cur()
	if t.Kind == token.Keyword {
		return typeKeywords[t.Text] || qualKeywords[t.Text] || storageKeywords[t.Text] ||
			t.Text == "struct" || t.Text == "union" || t.Text == "enum" ||
			t.Text == "inline" || t.Text == "_Noreturn"
	}
	if t.Kind == token.Ident && p.typed != nil {
		return p.typed.IsTypedef(t.Text)
	}
	return false
}

// ParseTranslationUnit is parse_toplevel's driver: it repeatedly parses one
// function or declaration until EOF,
func (p *Parser) ParseTranslationUnit() (*TranslationUnit, error) {
	tu := &TranslationUnit{}
	for p.cur().Kind != token.EOF {
		item, isFunc, err := p.parseToplevel()
		if err != nil {
			return tu, err
		}
		if isFunc {
			tu.Funcs = append(tu.Funcs, item.(*Function))
		} else {
			tu.Globals = append(tu.Globals, item.(Stmt))
		}
	}
	return tu, nil
}

// parseToplevel parses exactly one function or declaration, matching
// parse_toplevel contract.
func (p *Parser) parseToplevel() (interface{}, bool, error) {
	pos := p.cur().Pos
	isInline, isNoreturn := false, false
	for p.isKeyword("inline") || p.isKeyword("_Noreturn") {
		if p.isKeyword("inline") {
			isInline = true
		} else {
			isNoreturn = true
		}
		p.advance()
	}
	storage := ""
	for storageKeywords[p.cur().Text] && p.cur().Kind == token.Keyword {
		storage = p.cur().Text
		p.advance()
	}
	if p.isKeyword("_Static_assert") {
		s, err := p.parseStaticAssert()
		return s, false, err
	}
	retType, err := p.parseTypeSpecifiers()
	if err != nil {
		return nil, false, err
	}
	if retType.IsStruct || retType.IsUnion {
		if p.isPunct(";") {
			p.advance()
			return &StructDecl{base: base{pos}, Tag: retType.TagName, Members: retType.Members, IsUnion: retType.IsUnion}, false, nil
		}
	}
	if retType.IsEnum && p.isPunct(";") {
		p.advance()
		return &EnumDecl{base: base{pos}}, false, nil
	}
	decl, err := p.parseDeclarator(retType)
	if err != nil {
		return nil, false, err
	}
	if storage == "typedef" {
		if _, err := p.expectPunct(";"); err != nil {
			return nil, false, err
		}
		return &TypedefStmt{base: base{pos}, Name: decl.name, Type: decl.typ}, false, nil
	}
	if decl.typ.IsFunc {
		fn := &Function{base: base{pos}, Name: decl.name, ReturnType: retType,
			Params: decl.typ.Params, Variadic: decl.typ.Variadic,
			IsInline: isInline, IsNoreturn: isNoreturn}
		if p.isPunct("{") {
			body, err := p.parseBlock()
			if err != nil {
				return nil, false, err
			}
			fn.Body = body
			return fn, true, nil
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, false, err
		}
		return fn, true, nil
	}
	var init Expr
	if p.isPunct("=") {
		p.advance()
		init, err = p.parseInitializer()
		if err != nil {
			return nil, false, err
		}
	}
	vd := &VarDecl{base: base{pos}, Name: decl.name, Type: decl.typ, Storage: storage, Init: init}
	for p.isPunct(",") {
		p.advance()
		// additional declarators on the same line are modeled as sibling
		// globals discarded here for simplicity of the toplevel-one-at-a-
		// time contract; the common single-declarator form is primary.
		if _, err := p.parseDeclarator(retType); err != nil {
			return nil, false, err
		}
		if p.isPunct("=") {
			p.advance()
			if _, err := p.parseInitializer(); err != nil {
				return nil, false, err
			}
		}
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, false, err
	}
	return vd, false, nil
}

func (p *Parser) parseStaticAssert() (Stmt, error) {
	pos := p.cur().Pos
	p.advance()
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	msg := ""
	if p.isPunct(",") {
		p.advance()
		if p.cur().Kind == token.StringLit {
			msg = p.cur().Text
			p.advance()
		}
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &StaticAssertStmt{base: base{pos}, Cond: cond, Message: msg}, nil
}

// ---- type specifiers + declarators ----

func (p *Parser) parseTypeSpecifiers() (*TypeName, error) {
	pos := p.cur().Pos
	tn := &TypeName{base: base{pos}}
	for {
		t := p.cur()
		if t.Kind == token.Keyword && qualKeywords[t.Text] {
			tn.Quals = append(tn.Quals, t.Text)
			p.advance()
			continue
		}
		if t.Kind == token.Keyword && typeKeywords[t.Text] {
			tn.Specifiers = append(tn.Specifiers, t.Text)
			p.advance()
			continue
		}
		break
	}
	if p.isKeyword("struct") || p.isKeyword("union") {
		isUnion := p.isKeyword("union")
		p.advance()
		tag := ""
		if p.cur().Kind == token.Ident {
			tag = p.advance().Text
		}
		tn.IsStruct = !isUnion
		tn.IsUnion = isUnion
		tn.TagName = tag
		if p.isPunct("{") {
			p.advance()
			members, err := p.parseFieldList()
			if err != nil {
				return nil, err
			}
			tn.Members = members
		}
		return tn, nil
	}
	if p.isKeyword("enum") {
		p.advance()
		tag := ""
		if p.cur().Kind == token.Ident {
			tag = p.advance().Text
		}
		tn.IsEnum = true
		tn.TagName = tag
		if p.isPunct("{") {
			p.advance()
			for !p.isPunct("}") {
				if _, err := p.expectIdent(); err != nil {
					return nil, err
				}
				if p.isPunct("=") {
					p.advance()
					if _, err := p.parseAssignment(); err != nil {
						return nil, err
					}
				}
				if p.isPunct(",") {
					p.advance()
				}
			}
			p.advance()
		}
		return tn, nil
	}
	if len(tn.Specifiers) == 0 {
		if p.cur().Kind == token.Ident && p.typed != nil && p.typed.IsTypedef(p.cur().Text) {
			tn.Specifiers = append(tn.Specifiers, p.advance().Text)
		} else {
			return nil, &ParseError{Pos: pos, Expected: []string{"type-specifier"}, Got: p.cur()}
		}
	}
	return tn, nil
}

func (p *Parser) parseFieldList() ([]*FieldDecl, error) {
	var fields []*FieldDecl
	for !p.isPunct("}") {
		base, err := p.parseTypeSpecifiers()
		if err != nil {
			return nil, err
		}
		for {
			decl, err := p.parseDeclarator(base)
			if err != nil {
				return nil, err
			}
			fd := &FieldDecl{base: p.fieldBase(), Name: decl.name, Type: decl.typ}
			if p.isPunct(":") {
				p.advance()
				w, err := p.parseAssignment()
				if err != nil {
					return nil, err
				}
				fd.BitWidth = w
			}
			fields = append(fields, fd)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return fields, nil
}

func (p *Parser) fieldBase() base { return base{p.cur().Pos} }

type declarator struct {
	name string
	typ  *TypeName
}

// parseDeclarator handles pointer chains, arrays (with VLA [*] and size
// expressions), and function declarators,
func (p *Parser) parseDeclarator(spec *TypeName) (*declarator, error) {
	typ := &TypeName{base: spec.base, Specifiers: spec.Specifiers, IsStruct: spec.IsStruct,
		IsUnion: spec.IsUnion, IsEnum: spec.IsEnum, TagName: spec.TagName, Members: spec.Members}
	for p.isPunct("*") {
		p.advance()
		typ.Pointer++
		for qualKeywords[p.cur().Text] && p.cur().Kind == token.Keyword {
			p.advance()
		}
	}
	name := ""
	if p.cur().Kind == token.Ident {
		name = p.advance().Text
	}
	for {
		if p.isPunct("[") {
			p.advance()
			var dim ArrayDim
			if p.isPunct("*") {
				dim.IsVLAAny = true
				p.advance()
			} else if !p.isPunct("]") {
				e, err := p.parseAssignment()
				if err != nil {
					return nil, err
				}
				dim.Size = e
			}
			if _, err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			typ.ArrayDims = append(typ.ArrayDims, dim)
			continue
		}
		if p.isPunct("(") {
			p.advance()
			typ.IsFunc = true
			for !p.isPunct(")") {
				if p.isPunct("...") {
					p.advance()
					typ.Variadic = true
					break
				}
				pspec, err := p.parseTypeSpecifiers()
				if err != nil {
					return nil, err
				}
				pd, err := p.parseDeclarator(pspec)
				if err != nil {
					return nil, err
				}
				typ.Params = append(typ.Params, &ParamDecl{base: pspec.base, Name: pd.name, Type: pd.typ})
				if p.isPunct(",") {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return &declarator{name: name, typ: typ}, nil
}

func (p *Parser) parseInitializer() (Expr, error) {
	if p.isPunct("{") {
		return p.parseInitList()
	}
	return p.parseAssignment()
}

func (p *Parser) parseInitList() (*InitList, error) {
	pos := p.cur().Pos
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	il := &InitList{base: base{pos}}
	for !p.isPunct("}") {
		var elem InitElem
		if p.isPunct(".") {
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			elem.Designator = name.Text
			if _, err := p.expectPunct("="); err != nil {
				return nil, err
			}
		} else if p.isPunct("[") {
			p.advance()
			idx, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			elem.Index = idx
			if _, err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			if _, err := p.expectPunct("="); err != nil {
				return nil, err
			}
		}
		v, err := p.parseInitializer()
		if err != nil {
			return nil, err
		}
		elem.Value = v
		il.Elems = append(il.Elems, elem)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return il, nil
}

// ---- statements ----

func (p *Parser) parseBlock() (*BlockStmt, error) {
	pos := p.cur().Pos
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	blk := &BlockStmt{base: base{pos}}
	for !p.isPunct("}") {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, s)
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return blk, nil
}

func (p *Parser) parseStmt() (Stmt, error) {
	pos := p.cur().Pos
	switch {
	case p.isPunct("{"):
		return p.parseBlock()
	case p.isKeyword("return"):
		p.advance()
		var v Expr
		if !p.isPunct(";") {
			var err error
			v, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		return &ReturnStmt{base: base{pos}, Value: v}, nil
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("while"):
		return p.parseWhile()
	case p.isKeyword("do"):
		return p.parseDoWhile()
	case p.isKeyword("for"):
		return p.parseFor()
	case p.isKeyword("switch"):
		return p.parseSwitch()
	case p.isKeyword("break"):
		p.advance()
		_, err := p.expectPunct(";")
		return &BreakStmt{base{pos}}, err
	case p.isKeyword("continue"):
		p.advance()
		_, err := p.expectPunct(";")
		return &ContinueStmt{base{pos}}, err
	case p.isKeyword("goto"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		return &GotoStmt{base: base{pos}, Label: name.Text}, nil
	case p.isKeyword("_Static_assert"):
		return p.parseStaticAssert()
	case p.cur().Kind == token.Ident && p.peekAt(1).Kind == token.Punct && p.peekAt(1).Text == ":":
		name := p.advance().Text
		p.advance() // ':'
		inner, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		return &LabelStmt{base: base{pos}, Name: name, Stmt: inner}, nil
	case p.looksLikeTypeStart():
		return p.parseLocalDecl()
	default:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		return &ExprStmt{base: base{pos}, X: e}, nil
	}
}

func (p *Parser) parseLocalDecl() (Stmt, error) {
	pos := p.cur().Pos
	storage := ""
	for storageKeywords[p.cur().Text] && p.cur().Kind == token.Keyword {
		storage = p.cur().Text
		p.advance()
	}
	spec, err := p.parseTypeSpecifiers()
	if err != nil {
		return nil, err
	}
	decl, err := p.parseDeclarator(spec)
	if err != nil {
		return nil, err
	}
	var init Expr
	if p.isPunct("=") {
		p.advance()
		init, err = p.parseInitializer()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &VarDecl{base: base{pos}, Name: decl.name, Type: decl.typ, Storage: storage, Init: init}, nil
}

func (p *Parser) parseParenExpr() (Expr, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	pos := p.cur().Pos
	p.advance()
	cond, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	var els Stmt
	if p.isKeyword("else") {
		p.advance()
		els, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return &IfStmt{base: base{pos}, Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	pos := p.cur().Pos
	p.advance()
	cond, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{base: base{pos}, Cond: cond, Body: body}, nil
}

func (p *Parser) parseDoWhile() (Stmt, error) {
	pos := p.cur().Pos
	p.advance()
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("while"); err != nil {
		return nil, err
	}
	cond, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &DoWhileStmt{base: base{pos}, Body: body, Cond: cond}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	pos := p.cur().Pos
	p.advance()
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var init Stmt
	if !p.isPunct(";") {
		var err error
		if p.looksLikeTypeStart() {
			init, err = p.parseLocalDecl()
			if err != nil {
				return nil, err
			}
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(";"); err != nil {
				return nil, err
			}
			init = &ExprStmt{base: base{pos}, X: e}
		}
	} else {
		p.advance()
	}
	var cond Expr
	if !p.isPunct(";") {
		var err error
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	var step Expr
	if !p.isPunct(")") {
		var err error
		step, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ForStmt{base: base{pos}, Init: init, Cond: cond, Step: step, Body: body}, nil
}

func (p *Parser) parseSwitch() (Stmt, error) {
	pos := p.cur().Pos
	p.advance()
	tag, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	sw := &SwitchStmt{base: base{pos}, Tag: tag}
	for !p.isPunct("}") {
		var c SwitchCase
		if p.isKeyword("case") {
			p.advance()
			v, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			c.Value = v
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
		} else if p.isKeyword("default") {
			p.advance()
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
		} else {
			return nil, &ParseError{Pos: p.cur().Pos, Expected: []string{"case", "default"}, Got: p.cur()}
		}
		for !p.isKeyword("case") && !p.isKeyword("default") && !p.isPunct("}") {
			s, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			c.Body = append(c.Body, s)
		}
		sw.Cases = append(sw.Cases, c)
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return sw, nil
}

// ---- expressions: full C precedence, right-assoc assignment/conditional ----

func (p *Parser) parseExpr() (Expr, error) { return p.parseAssignment() }

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
}

func (p *Parser) parseAssignment() (Expr, error) {
	lhs, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == token.Punct && assignOps[p.cur().Text] {
		op := p.advance().Text
		rhs, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &AssignExpr{base: base{lhs.Pos()}, Op: op, Target: lhs, Value: rhs}, nil
	}
	return lhs, nil
}

func (p *Parser) parseConditional() (Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.isPunct("?") {
		p.advance()
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		els, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		return &ConditionalExpr{base: base{cond.Pos()}, Cond: cond, Then: then, Else: els}, nil
	}
	return cond, nil
}

func (p *Parser) binLevel(next func() (Expr, error), ops ...string) (Expr, error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		for _, o := range ops {
			if p.isPunct(o) {
				matched = o
				break
			}
		}
		if matched == "" {
			return lhs, nil
		}
		p.advance()
		rhs, err := next()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpr{base: base{lhs.Pos()}, Op: matched, L: lhs, R: rhs}
	}
}

func (p *Parser) parseLogicalOr() (Expr, error) {
	return p.binLevel(p.parseLogicalAnd, "||")
}
func (p *Parser) parseLogicalAnd() (Expr, error) {
	return p.binLevel(p.parseBitOr, "&&")
}
func (p *Parser) parseBitOr() (Expr, error) { return p.binLevel(p.parseBitXor, "|") }
func (p *Parser) parseBitXor() (Expr, error) { return p.binLevel(p.parseBitAnd, "^") }
func (p *Parser) parseBitAnd() (Expr, error) { return p.binLevel(p.parseEquality, "&") }
func (p *Parser) parseEquality() (Expr, error) {
	return p.binLevel(p.parseRelational, "==", "!=")
}
func (p *Parser) parseRelational() (Expr, error) {
	return p.binLevel(p.parseShift, "<", ">", "<=", ">=")
}
func (p *Parser) parseShift() (Expr, error) { return p.binLevel(p.parseAdditive, "<<", ">>") }
func (p *Parser) parseAdditive() (Expr, error) {
	return p.binLevel(p.parseMultiplicative, "+", "-")
}
func (p *Parser) parseMultiplicative() (Expr, error) {
	return p.binLevel(p.parseCast, "*", "/", "%")
}

// parseCast handles "(type) expr" by lookahead: '(' followed by a type
// start and then a matching ')' that is not immediately a compound literal
// brace is a cast; otherwise falls through to unary.
func (p *Parser) parseCast() (Expr, error) {
	if p.isPunct("(") && p.typeStartsAt(p.pos+1) {
		save := p.pos
		pos := p.cur().Pos
		p.advance()
		tn, err := p.parseAbstractType()
		if err == nil && p.isPunct(")") {
			p.advance()
			if p.isPunct("{") {
				il, err := p.parseInitList()
				if err != nil {
					return nil, err
				}
				return &CompoundLiteral{base: base{pos}, To: tn, Init: il}, nil
			}
			operand, err := p.parseCast()
			if err != nil {
				return nil, err
			}
			return &CastExpr{base: base{pos}, To: tn, Operand: operand}, nil
		}
		p.pos = save
	}
	return p.parseUnary()
}

func (p *Parser) typeStartsAt(idx int) bool {
	if idx >= len(p.toks) {
		return false
	}
	t := p.toks[idx]
	if t.Kind == token.Keyword {
		return typeKeywords[t.Text] || qualKeywords[t.Text] || t.Text == "struct" || t.Text == "union" || t.Text == "enum"
	}
	if t.Kind == token.Ident && p.typed != nil {
		return p.typed.IsTypedef(t.Text)
	}
	return false
}

func (p *Parser) parseAbstractType() (*TypeName, error) {
	spec, err := p.parseTypeSpecifiers()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") {
		p.advance()
		spec.Pointer++
	}
	for p.isPunct("[") {
		p.advance()
		var dim ArrayDim
		if !p.isPunct("]") {
			e, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			dim.Size = e
		}
		if _, err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		spec.ArrayDims = append(spec.ArrayDims, dim)
	}
	return spec, nil
}

var unaryOps = map[string]bool{"+": true, "-": true, "!": true, "~": true, "*": true, "&": true}

func (p *Parser) parseUnary() (Expr, error) {
	pos := p.cur().Pos
	if p.isPunct("++") || p.isPunct("--") {
		op := p.advance().Text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{base: base{pos}, Op: op, Operand: operand}, nil
	}
	if p.cur().Kind == token.Punct && unaryOps[p.cur().Text] {
		op := p.advance().Text
		operand, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{base: base{pos}, Op: op, Operand: operand}, nil
	}
	if p.isKeyword("sizeof") {
		p.advance()
		if p.isPunct("(") && p.typeStartsAt(p.pos+1) {
			p.advance()
			tn, err := p.parseAbstractType()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return &SizeofExpr{base: base{pos}, OfType: tn}, nil
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &SizeofExpr{base: base{pos}, OfValue: operand}, nil
	}
	if p.isKeyword("_Alignof") {
		p.advance()
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		tn, err := p.parseAbstractType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &AlignofExpr{base: base{pos}, Of: tn}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.cur().Pos
		switch {
		case p.isPunct("["):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			e = &IndexExpr{base: base{pos}, Array: e, Index: idx}
		case p.isPunct("("):
			p.advance()
			var args []Expr
			for !p.isPunct(")") {
				a, err := p.parseAssignment()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.isPunct(",") {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			e = &CallExpr{base: base{pos}, Callee: e, Args: args}
		case p.isPunct("."):
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			e = &MemberExpr{base: base{pos}, Object: e, Name: name.Text}
		case p.isPunct("->"):
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			e = &MemberExpr{base: base{pos}, Object: e, Name: name.Text, Arrow: true}
		case p.isPunct("++") || p.isPunct("--"):
			op := p.advance().Text
			e = &UnaryExpr{base: base{pos}, Op: op, Operand: e, Postfix: true}
		default:
			return e, nil
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.cur()
	pos := t.Pos
	switch t.Kind {
	case token.IntLit, token.FloatLit:
		p.advance()
		return &NumberLit{base: base{pos}, Text: t.Text, IsFloat: t.Kind == token.FloatLit}, nil
	case token.Ident:
		p.advance()
		return &Ident{base: base{pos}, Name: t.Text}, nil
	case token.StringLit:
		p.advance()
		return &StringLit{base: base{pos}, Value: t.Text, Wide: t.Wide}, nil
	case token.CharLit:
		p.advance()
		v := byte(0)
		if len(t.Text) > 0 {
			v = t.Text[0]
		}
		return &CharLit{base: base{pos}, Value: v, Wide: t.Wide}, nil
	case token.Punct:
		if t.Text == "(" {
			return p.parseParenExpr()
		}
	}
	return nil, &ParseError{Pos: pos, Expected: []string{"expression"}, Got: t}
}
