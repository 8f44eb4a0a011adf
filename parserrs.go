package formula

import "strconv"

// ParseError is the error returned for any input that cannot be parsed.
type ParseError struct {
	// Col is the 1-based rune column of the token that caused the error.
	Col int
	// Msg describes the problem.
	Msg string
}

func (err *ParseError) Error() string {
	return errpos(err.Col, err.Msg)
}

// Pos returns the column of the error.
func (err *ParseError) Pos() int {
	return err.Col
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

func unexpectedClose(tok Token) error {
	return &ParseError{Col: tok.Pos, Msg: "unexpected close paren"}
}

func unclosed(tok Token) error {
	return &ParseError{Col: tok.Pos, Msg: "unclosed paren"}
}

func invalidToken(tok Token) error {
	return &ParseError{Col: tok.Pos, Msg: "invalid token " + strconv.Quote(tok.Value)}
}

func leadingOperator(tok Token) error {
	return &ParseError{Col: tok.Pos, Msg: "non-unary leading operator " + strconv.Quote(tok.Value)}
}

func trailingOperator(tok Token) error {
	return &ParseError{Col: tok.Pos, Msg: "trailing operator " + strconv.Quote(tok.Value)}
}

func sequentialOperator(tok Token) error {
	return &ParseError{Col: tok.Pos, Msg: "sequential operator " + strconv.Quote(tok.Value)}
}

func notSingleValue(col, n int) error {
	return &ParseError{Col: col, Msg: "expression must resolve to exactly one value, not " + strconv.Itoa(n)}
}
