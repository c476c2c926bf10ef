package frontend

import (
	"fmt"
	"strconv"
	"strings"

	"qualflow/internal/ast"
)

// parser reads one type, type parameter, expression or statement string.
// Expressions use precedence climbing; the first error stops the parse.
type parser struct {
	toks []token
	pos  int
	err  *lexError
}

func newParser(src string) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks}, nil
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) peekAt(k int) token {
	if p.pos+k >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+k]
}

func (p *parser) advance() token {
	tok := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) at(kind tokKind) bool { return p.peek().Kind == kind }

func (p *parser) accept(kind tokKind) bool {
	if p.at(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kind tokKind) (token, bool) {
	if p.at(kind) {
		return p.advance(), true
	}
	p.fail(p.peek(), "expected %s, found %s", kind, describe(p.peek()))
	return token{}, false
}

func (p *parser) fail(at token, format string, args ...any) {
	if p.err == nil {
		p.err = &lexError{Off: at.Off, Msg: fmt.Sprintf(format, args...)}
	}
}

// finish checks that the whole input was consumed and returns the first
// error.
func (p *parser) finish() error {
	p.accept(tokSemicolon)
	if p.err == nil && !p.at(tokEOF) {
		p.fail(p.peek(), "unexpected %s", describe(p.peek()))
	}
	if p.err != nil {
		return p.err
	}
	return nil
}

func describe(t token) string {
	switch t.Kind {
	case tokEOF:
		return "end of input"
	case tokIdent, tokInt, tokFloat, tokString, tokChar:
		return fmt.Sprintf("%q", t.Text)
	}
	return "'" + t.Kind.String() + "'"
}

// Annotations ---------------------------------------------------------------

func (p *parser) annotations() ([]annoSyntax, bool) {
	var out []annoSyntax
	for p.at(tokAt) {
		a, ok := p.annotation()
		if !ok {
			return nil, false
		}
		out = append(out, a)
	}
	return out, true
}

func (p *parser) annotation() (annoSyntax, bool) {
	at := p.advance()
	name, ok := p.qualifiedName()
	if !ok {
		return annoSyntax{}, false
	}
	a := annoSyntax{Name: name, Off: at.Off, End: p.toks[p.pos-1].End}
	if !p.accept(tokLParen) {
		return a, true
	}
	for !p.at(tokRParen) {
		tok := p.advance()
		switch tok.Kind {
		case tokString:
			s, err := strconv.Unquote(tok.Text)
			if err != nil {
				p.fail(tok, "bad string argument %s", tok.Text)
				return annoSyntax{}, false
			}
			a.Args = append(a.Args, s)
		case tokIdent, tokInt, tokFloat:
			a.Args = append(a.Args, tok.Text)
		default:
			p.fail(tok, "unexpected %s in annotation arguments", describe(tok))
			return annoSyntax{}, false
		}
		if !p.accept(tokComma) {
			break
		}
	}
	end, ok := p.expect(tokRParen)
	a.End = end.End
	return a, ok
}

func (p *parser) qualifiedName() (string, bool) {
	first, ok := p.expect(tokIdent)
	if !ok {
		return "", false
	}
	parts := []string{first.Text}
	for p.at(tokDot) && p.peekAt(1).Kind == tokIdent && !keywords[p.peekAt(1).Text] {
		p.advance()
		parts = append(parts, p.advance().Text)
	}
	return strings.Join(parts, "."), true
}

// Types ---------------------------------------------------------------------

func (p *parser) parseType() (*typeSyntax, bool) {
	start := p.peek()
	annos, ok := p.annotations()
	if !ok {
		return nil, false
	}
	t := &typeSyntax{Annos: annos, Off: start.Off}
	if p.accept(tokQuestion) {
		t.Wildcard = true
		switch {
		case p.peek().is("extends"):
			p.advance()
			t.Bound, ok = p.parseType()
		case p.peek().is("super"):
			p.advance()
			t.Super = true
			t.Bound, ok = p.parseType()
		}
		if !ok {
			return nil, false
		}
		t.End = p.toks[p.pos-1].End
		return t, true
	}
	if tok := p.peek(); tok.Kind != tokIdent || keywords[tok.Text] {
		p.fail(tok, "expected a type, found %s", describe(tok))
		return nil, false
	}
	if t.Name, ok = p.qualifiedName(); !ok {
		return nil, false
	}
	if p.accept(tokLt) {
		for {
			arg, ok := p.parseType()
			if !ok {
				return nil, false
			}
			t.Args = append(t.Args, arg)
			if !p.accept(tokComma) {
				break
			}
		}
		if _, ok := p.expect(tokGt); !ok {
			return nil, false
		}
	}
	for {
		save := p.pos
		dimAnnos, ok := p.annotations()
		if !ok || !p.at(tokLBracket) || p.peekAt(1).Kind != tokRBracket {
			p.pos = save
			p.err = nil
			break
		}
		p.advance()
		p.advance()
		t.Dims = append(t.Dims, dimAnnos)
	}
	t.End = p.toks[p.pos-1].End
	return t, true
}

func (p *parser) parseTypeParam() (*typeParamSyntax, bool) {
	start := p.peek()
	annos, ok := p.annotations()
	if !ok {
		return nil, false
	}
	name, ok := p.expect(tokIdent)
	if !ok {
		return nil, false
	}
	tp := &typeParamSyntax{Annos: annos, Name: name.Text, Off: start.Off}
	if p.peek().is("extends") {
		p.advance()
		for {
			b, ok := p.parseType()
			if !ok {
				return nil, false
			}
			tp.Bounds = append(tp.Bounds, b)
			if !p.accept(tokAmp) {
				break
			}
		}
	}
	tp.End = p.toks[p.pos-1].End
	return tp, true
}

// Expressions ---------------------------------------------------------------

const (
	precAssign = 1 + iota
	precTernary
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
)

var binaryPrec = map[tokKind]int{
	tokOrOr:    precOr,
	tokAndAnd:  precAnd,
	tokEqEq:    precEquality,
	tokBangEq:  precEquality,
	tokLt:      precRelational,
	tokGt:      precRelational,
	tokLtEq:    precRelational,
	tokGtEq:    precRelational,
	tokPlus:    precAdditive,
	tokMinus:   precAdditive,
	tokStar:    precMultiplicative,
	tokSlash:   precMultiplicative,
	tokPercent: precMultiplicative,
}

func (p *parser) parseExpr(minPrec int) (*exprSyntax, bool) {
	left, ok := p.parseUnary()
	if !ok {
		return nil, false
	}
	for {
		tok := p.peek()
		switch {
		case tok.Kind == tokAssign && minPrec <= precAssign:
			p.advance()
			right, ok := p.parseExpr(precAssign)
			if !ok {
				return nil, false
			}
			left = &exprSyntax{Kind: sxAssign, X: left, Y: right, Off: left.Off, End: right.End}
		case tok.Kind == tokQuestion && minPrec <= precTernary:
			p.advance()
			then, ok := p.parseExpr(precAssign)
			if !ok {
				return nil, false
			}
			if _, ok := p.expect(tokColon); !ok {
				return nil, false
			}
			els, ok := p.parseExpr(precTernary)
			if !ok {
				return nil, false
			}
			left = &exprSyntax{Kind: sxTernary, X: left, Y: then, Z: els, Off: left.Off, End: els.End}
		case tok.is("instanceof") && minPrec <= precRelational:
			p.advance()
			t, ok := p.parseType()
			if !ok {
				return nil, false
			}
			left = &exprSyntax{Kind: sxInstanceOf, X: left, Type: t, Off: left.Off, End: t.End}
		default:
			prec, isBinary := binaryPrec[tok.Kind]
			if !isBinary || prec < minPrec {
				return left, true
			}
			p.advance()
			right, ok := p.parseExpr(prec + 1)
			if !ok {
				return nil, false
			}
			left = &exprSyntax{Kind: sxBinary, Op: tok.Kind, X: left, Y: right, Off: left.Off, End: right.End}
		}
	}
}

func (p *parser) parseUnary() (*exprSyntax, bool) {
	tok := p.peek()
	switch tok.Kind {
	case tokBang, tokMinus, tokPlus:
		p.advance()
		x, ok := p.parseUnary()
		if !ok {
			return nil, false
		}
		return &exprSyntax{Kind: sxUnary, Op: tok.Kind, X: x, Off: tok.Off, End: x.End}, true
	case tokLParen:
		if cast, ok := p.tryCast(); ok {
			return cast, true
		}
	}
	return p.parsePostfix()
}

// tryCast parses "(Type) operand" and restores the position when the
// parenthesis does not start a cast.
func (p *parser) tryCast() (*exprSyntax, bool) {
	save := p.pos
	open := p.advance()
	t, ok := p.parseType()
	if ok && p.at(tokRParen) && castFollower(p.peekAt(1)) {
		p.advance()
		x, ok := p.parseUnary()
		if !ok {
			return nil, false
		}
		return &exprSyntax{Kind: sxCast, Type: t, X: x, Off: open.Off, End: x.End}, true
	}
	p.pos = save
	p.err = nil
	return nil, false
}

func castFollower(t token) bool {
	switch t.Kind {
	case tokIdent:
		return t.Text != "instanceof"
	case tokInt, tokFloat, tokString, tokChar, tokLParen, tokBang:
		return true
	}
	return false
}

func (p *parser) parsePostfix() (*exprSyntax, bool) {
	x, ok := p.parsePrimary()
	if !ok {
		return nil, false
	}
	for {
		switch p.peek().Kind {
		case tokDot:
			p.advance()
			name, ok := p.expect(tokIdent)
			if !ok {
				return nil, false
			}
			if p.at(tokLParen) {
				args, end, ok := p.parseArgs()
				if !ok {
					return nil, false
				}
				x = &exprSyntax{Kind: sxCall, Name: name.Text, X: x, Args: args, Off: x.Off, End: end}
				continue
			}
			x = &exprSyntax{Kind: sxSelect, Name: name.Text, X: x, Off: x.Off, End: name.End}
		case tokLBracket:
			p.advance()
			idx, ok := p.parseExpr(precAssign)
			if !ok {
				return nil, false
			}
			end, ok := p.expect(tokRBracket)
			if !ok {
				return nil, false
			}
			x = &exprSyntax{Kind: sxIndex, X: x, Y: idx, Off: x.Off, End: end.End}
		default:
			return x, true
		}
	}
}

func (p *parser) parseArgs() ([]*exprSyntax, uint32, bool) {
	p.advance()
	var args []*exprSyntax
	for !p.at(tokRParen) {
		a, ok := p.parseExpr(precAssign)
		if !ok {
			return nil, 0, false
		}
		args = append(args, a)
		if !p.accept(tokComma) {
			break
		}
	}
	end, ok := p.expect(tokRParen)
	return args, end.End, ok
}

func (p *parser) parsePrimary() (*exprSyntax, bool) {
	tok := p.peek()
	lit := func(kind ast.ExprLitKind, text string) (*exprSyntax, bool) {
		p.advance()
		return &exprSyntax{Kind: sxLit, Lit: kind, Name: text, Off: tok.Off, End: tok.End}, true
	}
	switch tok.Kind {
	case tokInt:
		return lit(ast.ExprLitInt, strings.TrimRight(tok.Text, "lL"))
	case tokFloat:
		return lit(ast.ExprLitFloat, tok.Text)
	case tokString:
		s, err := strconv.Unquote(tok.Text)
		if err != nil {
			p.fail(tok, "bad string literal %s", tok.Text)
			return nil, false
		}
		return lit(ast.ExprLitString, s)
	case tokChar:
		return lit(ast.ExprLitChar, strings.Trim(tok.Text, "'"))
	case tokLParen:
		p.advance()
		x, ok := p.parseExpr(precAssign)
		if !ok {
			return nil, false
		}
		if _, ok := p.expect(tokRParen); !ok {
			return nil, false
		}
		return x, true
	case tokIdent:
	default:
		p.fail(tok, "expected an expression, found %s", describe(tok))
		return nil, false
	}
	switch tok.Text {
	case "this":
		p.advance()
		return &exprSyntax{Kind: sxThis, Off: tok.Off, End: tok.End}, true
	case "null":
		p.advance()
		return &exprSyntax{Kind: sxNull, Off: tok.Off, End: tok.End}, true
	case "true", "false":
		return lit(ast.ExprLitBool, tok.Text)
	case "new":
		p.advance()
		t, ok := p.parseType()
		if !ok {
			return nil, false
		}
		if !p.at(tokLParen) {
			p.fail(p.peek(), "expected constructor arguments, found %s", describe(p.peek()))
			return nil, false
		}
		args, end, ok := p.parseArgs()
		if !ok {
			return nil, false
		}
		return &exprSyntax{Kind: sxNew, Type: t, Args: args, Off: tok.Off, End: end}, true
	}
	if keywords[tok.Text] {
		p.fail(tok, "unexpected keyword %q", tok.Text)
		return nil, false
	}
	p.advance()
	if p.at(tokLParen) {
		args, end, ok := p.parseArgs()
		if !ok {
			return nil, false
		}
		return &exprSyntax{Kind: sxCall, Name: tok.Text, Args: args, Off: tok.Off, End: end}, true
	}
	return &exprSyntax{Kind: sxIdent, Name: tok.Text, Off: tok.Off, End: tok.End}, true
}

// Statements ----------------------------------------------------------------

func (p *parser) parseStmt() (*stmtSyntax, bool) {
	tok := p.peek()
	switch {
	case tok.is("return"):
		p.advance()
		s := &stmtSyntax{Kind: stReturn, Off: tok.Off, End: tok.End}
		if p.at(tokEOF) || p.at(tokSemicolon) {
			return s, true
		}
		x, ok := p.parseExpr(precAssign)
		if !ok {
			return nil, false
		}
		s.X, s.End = x, x.End
		return s, true
	case tok.is("break"):
		p.advance()
		return &stmtSyntax{Kind: stBreak, Off: tok.Off, End: tok.End}, true
	case tok.is("continue"):
		p.advance()
		return &stmtSyntax{Kind: stContinue, Off: tok.Off, End: tok.End}, true
	}
	if s, ok := p.tryVarDecl(); ok {
		return s, true
	}
	if p.err != nil {
		return nil, false
	}
	x, ok := p.parseExpr(precAssign)
	if !ok {
		return nil, false
	}
	return &stmtSyntax{Kind: stExpr, X: x, Off: x.Off, End: x.End}, true
}

// tryVarDecl parses "Type name [= init]". Annotations at the start commit to
// a declaration; otherwise the position is restored when the input does not
// look like one.
func (p *parser) tryVarDecl() (*stmtSyntax, bool) {
	save := p.pos
	committed := p.at(tokAt)
	t, ok := p.parseType()
	if ok && p.at(tokIdent) && !keywords[p.peek().Text] {
		if next := p.peekAt(1).Kind; next == tokAssign || next == tokEOF || next == tokSemicolon {
			name := p.advance()
			s := &stmtSyntax{Kind: stVar, Type: t, Name: name.Text, Off: t.Off, End: name.End}
			if p.accept(tokAssign) {
				x, ok := p.parseExpr(precAssign)
				if !ok {
					return nil, false
				}
				s.X, s.End = x, x.End
			}
			return s, true
		}
	}
	if committed {
		if p.err == nil {
			p.fail(p.peek(), "expected a variable declaration")
		}
		return nil, false
	}
	p.pos = save
	p.err = nil
	return nil, false
}

// Entry points ----------------------------------------------------------------

func parseTypeString(src string) (*typeSyntax, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	t, _ := p.parseType()
	return t, p.finish()
}

func parseTypeParamString(src string) (*typeParamSyntax, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	tp, _ := p.parseTypeParam()
	return tp, p.finish()
}

func parseExprString(src string) (*exprSyntax, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	x, _ := p.parseExpr(precAssign)
	return x, p.finish()
}

func parseStmtString(src string) (*stmtSyntax, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	s, _ := p.parseStmt()
	return s, p.finish()
}

// parseParam reads "Type name" with inline annotations.
func parseParamString(src string) (*typeSyntax, token, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, token{}, err
	}
	t, ok := p.parseType()
	var name token
	if ok {
		name, _ = p.expect(tokIdent)
	}
	return t, name, p.finish()
}

// parseAnnotationsString reads a whitespace separated annotation list.
func parseAnnotationsString(src string) ([]annoSyntax, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	annos, _ := p.annotations()
	return annos, p.finish()
}
