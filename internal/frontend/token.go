package frontend

// tokKind is the category of a token in a type, expression or statement
// string.
type tokKind uint8

const (
	tokInvalid tokKind = iota
	tokEOF
	tokIdent
	tokInt
	tokFloat
	tokString
	tokChar

	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokLt
	tokGt
	tokLtEq
	tokGtEq
	tokComma
	tokDot
	tokQuestion
	tokColon
	tokAt
	tokAmp
	tokAndAnd
	tokOrOr
	tokAssign
	tokEqEq
	tokBangEq
	tokBang
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokSemicolon
)

var tokNames = [...]string{
	tokInvalid:   "invalid token",
	tokEOF:       "end of input",
	tokIdent:     "identifier",
	tokInt:       "integer literal",
	tokFloat:     "float literal",
	tokString:    "string literal",
	tokChar:      "char literal",
	tokLParen:    "(",
	tokRParen:    ")",
	tokLBracket:  "[",
	tokRBracket:  "]",
	tokLt:        "<",
	tokGt:        ">",
	tokLtEq:      "<=",
	tokGtEq:      ">=",
	tokComma:     ",",
	tokDot:       ".",
	tokQuestion:  "?",
	tokColon:     ":",
	tokAt:        "@",
	tokAmp:       "&",
	tokAndAnd:    "&&",
	tokOrOr:      "||",
	tokAssign:    "=",
	tokEqEq:      "==",
	tokBangEq:    "!=",
	tokBang:      "!",
	tokPlus:      "+",
	tokMinus:     "-",
	tokStar:      "*",
	tokSlash:     "/",
	tokPercent:   "%",
	tokSemicolon: ";",
}

func (k tokKind) String() string {
	if int(k) < len(tokNames) {
		return tokNames[k]
	}
	return "token"
}

// token is one lexeme. Off and End are byte offsets into the lexed text.
type token struct {
	Kind tokKind
	Text string
	Off  uint32
	End  uint32
}

// is reports whether t is the identifier word.
func (t token) is(word string) bool {
	return t.Kind == tokIdent && t.Text == word
}

var keywords = map[string]bool{
	"this": true, "null": true, "new": true, "true": true, "false": true,
	"instanceof": true, "extends": true, "super": true,
	"return": true, "break": true, "continue": true,
}
