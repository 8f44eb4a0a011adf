package formula

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Token is a lexical unit of an expression together with its exact source
// text.
type Token struct {
	// Kind is the token's class.
	Kind TokenKind
	// Value is the semantic text of the token, e.g. the digits of a literal
	// or the glyph of an operator.
	Value string
	// Repr is the source text the token stands for. The lexer sets it equal
	// to Value; the parser grows it on its own copies as it absorbs
	// whitespace.
	Repr string
	// Pos is the 1-based rune column of the first rune of the token.
	Pos int
}

func (t Token) String() string {
	return t.Kind.String() + ":" + strconv.Quote(t.Repr) + "@" + strconv.Itoa(t.Pos)
}

// TokenKind is the class of a token.
type TokenKind int8

const (
	// TokenSpace is a maximal run of whitespace.
	TokenSpace TokenKind = iota
	// TokenLiteral is a decimal number, with or without a fractional part.
	TokenLiteral
	// TokenName is a variable or function name.
	TokenName
	// TokenParen is an open or close parenthesis.
	TokenParen
	// TokenOperator is one of the operator glyphs in Operators.
	TokenOperator
	// TokenInvalid is any other single rune. The parser rejects it.
	TokenInvalid
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=TokenKind -trimprefix=Token

// Operators contains the runes which are lexed as operators.
const Operators = "+-%*/^<>"

// Lex splits text into tokens. It never fails; runes that cannot begin any
// token become single-rune TokenInvalid tokens. The result for empty text is
// nil.
func Lex(text string) []Token {
	var toks []Token
	col := 1
	for i := 0; i < len(text); {
		r, sz := utf8.DecodeRuneInString(text[i:])
		start := i
		kind := TokenInvalid
		switch {
		case unicode.IsSpace(r):
			kind = TokenSpace
			i = scanWhile(text, i, unicode.IsSpace)
		case isDigit(r):
			kind = TokenLiteral
			i = scanNum(text, i)
		case isLetter(r):
			kind = TokenName
			i = scanWhile(text, i, isIdent)
		case r == '(' || r == ')':
			kind = TokenParen
			i += sz
		case r < utf8.RuneSelf && containsByte(Operators, byte(r)):
			kind = TokenOperator
			i += sz
		default:
			// Includes invalid UTF-8, for which sz is 1.
			i += sz
		}
		s := text[start:i]
		toks = append(toks, Token{Kind: kind, Value: s, Repr: s, Pos: col})
		col += utf8.RuneCountInString(s)
	}
	return toks
}

// scanWhile returns the index of the first rune at or after i for which ok
// is false.
func scanWhile(text string, i int, ok func(rune) bool) int {
	for i < len(text) {
		r, sz := utf8.DecodeRuneInString(text[i:])
		if !ok(r) {
			break
		}
		i += sz
	}
	return i
}

// scanNum scans digits, optionally followed by a dot and more digits. A dot
// not followed by a digit is not part of the number.
func scanNum(text string, i int) int {
	i = scanWhile(text, i, isDigit)
	if i+1 < len(text) && text[i] == '.' && isDigit(rune(text[i+1])) {
		i = scanWhile(text, i+1, isDigit)
	}
	return i
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_'
}

func isIdent(r rune) bool {
	return isLetter(r) || isDigit(r)
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
