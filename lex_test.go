package formula

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func tok(kind TokenKind, s string, pos int) Token {
	return Token{Kind: kind, Value: s, Repr: s, Pos: pos}
}

func TestLex(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		tokens []Token
	}{
		{"empty", "", nil},
		// spaces
		{"space", " \t \r\n ", []Token{tok(TokenSpace, " \t \r\n ", 1)}},
		{"nbsp", "\u00a0", []Token{tok(TokenSpace, "\u00a0", 1)}},
		// numbers
		{"zero", "0", []Token{tok(TokenLiteral, "0", 1)}},
		{"digits", "9876543210", []Token{tok(TokenLiteral, "9876543210", 1)}},
		{"spaced", "1 0", []Token{tok(TokenLiteral, "1", 1), tok(TokenSpace, " ", 2), tok(TokenLiteral, "0", 3)}},
		{"frac", "1.25", []Token{tok(TokenLiteral, "1.25", 1)}},
		{"trailingdot", "1.", []Token{tok(TokenLiteral, "1", 1), tok(TokenInvalid, ".", 2)}},
		{"leadingdot", ".5", []Token{tok(TokenInvalid, ".", 1), tok(TokenLiteral, "5", 2)}},
		{"twodots", "1.1.1", []Token{tok(TokenLiteral, "1.1", 1), tok(TokenInvalid, ".", 4), tok(TokenLiteral, "1", 5)}},
		{"exponent", "1e5", []Token{tok(TokenLiteral, "1", 1), tok(TokenName, "e5", 2)}},
		{"neg", "-1", []Token{tok(TokenOperator, "-", 1), tok(TokenLiteral, "1", 2)}},
		// names
		{"name", "x", []Token{tok(TokenName, "x", 1)}},
		{"underscore", "_a1_", []Token{tok(TokenName, "_a1_", 1)}},
		{"namedigits", "atan2", []Token{tok(TokenName, "atan2", 1)}},
		{"call", "f(x)", []Token{tok(TokenName, "f", 1), tok(TokenParen, "(", 2), tok(TokenName, "x", 3), tok(TokenParen, ")", 4)}},
		// operators
		{"ops", "+-%*/^<>", []Token{
			tok(TokenOperator, "+", 1), tok(TokenOperator, "-", 2), tok(TokenOperator, "%", 3), tok(TokenOperator, "*", 4),
			tok(TokenOperator, "/", 5), tok(TokenOperator, "^", 6), tok(TokenOperator, "<", 7), tok(TokenOperator, ">", 8),
		}},
		{"binary", "a--b", []Token{tok(TokenName, "a", 1), tok(TokenOperator, "-", 2), tok(TokenOperator, "-", 3), tok(TokenName, "b", 4)}},
		// invalid
		{"dollar", "$", []Token{tok(TokenInvalid, "$", 1)}},
		{"dollars", "$$", []Token{tok(TokenInvalid, "$", 1), tok(TokenInvalid, "$", 2)}},
		{"bracket", "[x]", []Token{tok(TokenInvalid, "[", 1), tok(TokenName, "x", 2), tok(TokenInvalid, "]", 3)}},
		{"unicode", "π+1", []Token{tok(TokenInvalid, "π", 1), tok(TokenOperator, "+", 2), tok(TokenLiteral, "1", 3)}},
		{"badutf8", "\xff1", []Token{tok(TokenInvalid, "\xff", 1), tok(TokenLiteral, "1", 2)}},
		{"columns", "ππ x", []Token{tok(TokenInvalid, "π", 1), tok(TokenInvalid, "π", 2), tok(TokenSpace, " ", 3), tok(TokenName, "x", 4)}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Lex(c.src)
			if diff := cmp.Diff(c.tokens, got); diff != "" {
				t.Errorf("lexing %q: (-want +got)\n%s", c.src, diff)
			}
		})
	}
}

func TestLexCoversSource(t *testing.T) {
	srcs := []string{
		"",
		"1 + 2",
		"  f ( x , y )  ",
		"atan2(y x)^-3 % 7 $ π",
		"\t\n1.5.5..\xfe",
	}
	for _, src := range srcs {
		s := ""
		for _, tok := range Lex(src) {
			if tok.Value != tok.Repr {
				t.Errorf("lexing %q: token %v has value %q", src, tok, tok.Value)
			}
			s += tok.Repr
		}
		if s != src {
			t.Errorf("lexing %q: tokens cover %q", src, s)
		}
	}
}

func TestTokenString(t *testing.T) {
	got := tok(TokenOperator, "+", 3).String()
	if want := `Operator:"+"@3`; got != want {
		t.Errorf("wrong token string: want %s, got %s", want, got)
	}
}
