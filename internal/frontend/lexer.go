package frontend

import (
	"fmt"

	"fortio.org/safecast"
)

// lexer splits one source string into tokens. Positions are byte offsets
// into the string; the caller maps them into the YAML file.
type lexer struct {
	src string
	off int
}

func lex(src string) ([]token, error) {
	lx := &lexer{src: src}
	var out []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == tokEOF {
			return out, nil
		}
	}
}

// lexError is a malformed token at Off.
type lexError struct {
	Off uint32
	Msg string
}

func (e *lexError) Error() string { return e.Msg }

func offset(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("source offset overflow: %w", err))
	}
	return v
}

func (lx *lexer) peek(k int) byte {
	if lx.off+k >= len(lx.src) {
		return 0
	}
	return lx.src[lx.off+k]
}

func (lx *lexer) emit(kind tokKind, start int) token {
	return token{Kind: kind, Text: lx.src[start:lx.off], Off: offset(start), End: offset(lx.off)}
}

func (lx *lexer) next() (token, error) {
	for lx.off < len(lx.src) && isSpace(lx.src[lx.off]) {
		lx.off++
	}
	start := lx.off
	if lx.off >= len(lx.src) {
		return lx.emit(tokEOF, start), nil
	}
	ch := lx.src[lx.off]
	switch {
	case isIdentStart(ch):
		for lx.off < len(lx.src) && isIdentContinue(lx.src[lx.off]) {
			lx.off++
		}
		return lx.emit(tokIdent, start), nil
	case isDigit(ch):
		return lx.scanNumber(start), nil
	case ch == '"':
		return lx.scanQuoted(start, '"', tokString)
	case ch == '\'':
		return lx.scanQuoted(start, '\'', tokChar)
	}
	return lx.scanOperator(start)
}

func (lx *lexer) scanNumber(start int) token {
	kind := tokInt
	for lx.off < len(lx.src) && isDigit(lx.src[lx.off]) {
		lx.off++
	}
	if lx.peek(0) == '.' && isDigit(lx.peek(1)) {
		kind = tokFloat
		lx.off++
		for lx.off < len(lx.src) && isDigit(lx.src[lx.off]) {
			lx.off++
		}
	}
	switch lx.peek(0) {
	case 'L', 'l':
		lx.off++
	case 'f', 'F', 'd', 'D':
		kind = tokFloat
		lx.off++
	}
	return lx.emit(kind, start)
}

func (lx *lexer) scanQuoted(start int, quote byte, kind tokKind) (token, error) {
	lx.off++
	for lx.off < len(lx.src) {
		switch lx.src[lx.off] {
		case '\\':
			lx.off += 2
			continue
		case quote:
			lx.off++
			return lx.emit(kind, start), nil
		}
		lx.off++
	}
	return token{}, &lexError{Off: offset(start), Msg: "unterminated " + kind.String()}
}

var twoByteOps = map[string]tokKind{
	"&&": tokAndAnd, "||": tokOrOr, "==": tokEqEq, "!=": tokBangEq,
	"<=": tokLtEq, ">=": tokGtEq,
}

var oneByteOps = map[byte]tokKind{
	'(': tokLParen, ')': tokRParen, '[': tokLBracket, ']': tokRBracket,
	'<': tokLt, '>': tokGt, ',': tokComma, '.': tokDot, '?': tokQuestion,
	':': tokColon, '@': tokAt, '&': tokAmp, '=': tokAssign, '!': tokBang,
	'+': tokPlus, '-': tokMinus, '*': tokStar, '/': tokSlash, '%': tokPercent,
	';': tokSemicolon,
}

func (lx *lexer) scanOperator(start int) (token, error) {
	if lx.off+2 <= len(lx.src) {
		if kind, ok := twoByteOps[lx.src[lx.off:lx.off+2]]; ok {
			lx.off += 2
			return lx.emit(kind, start), nil
		}
	}
	if kind, ok := oneByteOps[lx.src[lx.off]]; ok {
		lx.off++
		return lx.emit(kind, start), nil
	}
	return token{}, &lexError{Off: offset(start), Msg: fmt.Sprintf("unexpected character %q", lx.src[lx.off])}
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentStart(b byte) bool {
	return b == '_' || b == '$' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentContinue(b byte) bool { return isIdentStart(b) || isDigit(b) }
