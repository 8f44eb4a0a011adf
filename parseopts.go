package formula

import "github.com/ethereum/go-ethereum/log"

// ParseOption is an option for parsing.
type ParseOption interface {
	parseOption(parsectx) parsectx
}

type (
	singleopt struct{}
	legacyopt struct{}
	logopt    struct{ l log.Logger }
)

// parsectx holds general data for parsing. It is also a ParseOption.
type parsectx struct {
	// single requires the root to have exactly one child.
	single bool
	// levels is the operator precedence table.
	levels []level
	// log receives traces of each parse pass. Nil means no tracing.
	log log.Logger
}

// SingleValue makes Parse reject expressions that do not reduce to exactly
// one outermost value. By default, any number of values may be juxtaposed at
// the top level, e.g. "1 2 3", and the result evaluates to the first.
func SingleValue() ParseOption {
	return singleopt{}
}

func (singleopt) parseOption(p parsectx) parsectx {
	p.single = true
	return p
}

// LegacyPrecedence selects the precedence table in which each of * / % and
// each of < > binds at its own level, in that order, instead of sharing a
// level with left-to-right association. Under this table, 2/3*4 is 2/(3*4).
func LegacyPrecedence() ParseOption {
	return legacyopt{}
}

func (legacyopt) parseOption(p parsectx) parsectx {
	p.levels = legacyLevels
	return p
}

// Logger sets a logger to which the parser traces the item list after each
// pass, at trace level.
func Logger(l log.Logger) ParseOption {
	return logopt{l}
}

func (o logopt) parseOption(p parsectx) parsectx {
	p.log = o.l
	return p
}

// ParsingPreset combines options into one. A preset panics when it would
// change any option from the default, but it is safe to apply other options
// after a preset.
func ParsingPreset(opts ...ParseOption) ParseOption {
	var p parsectx
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	return &p
}

func (o *parsectx) parseOption(p parsectx) parsectx {
	if p.single || p.levels != nil || p.log != nil {
		panic("formula: preset applied to non-default parse config")
	}
	return *o
}
