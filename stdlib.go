package formula

import (
	"math"
	"strings"

	"golang.org/x/exp/slices"
)

// Library is a host library of named constants and functions. A FuncNode
// whose key, uppercased, names a constant evaluates to that constant, and
// one whose key names a function applies it. Library lookups take
// precedence over the symbol table.
//
// A Library is immutable and safe for concurrent use.
type Library struct {
	consts map[string]float64
	funcs  map[string]Func
}

// NewLibrary creates a library. The keys of consts must be uppercase. The
// maps are copied.
func NewLibrary(consts map[string]float64, funcs map[string]Func) *Library {
	l := Library{
		consts: make(map[string]float64, len(consts)),
		funcs:  make(map[string]Func, len(funcs)),
	}
	for k, v := range consts {
		if k != strings.ToUpper(k) {
			panic("formula: library constant " + k + " is not uppercase")
		}
		l.consts[k] = v
	}
	for k, v := range funcs {
		l.funcs[k] = v
	}
	return &l
}

// Const returns the constant named by key, compared without regard to case.
func (l *Library) Const(key string) (float64, bool) {
	if l == nil {
		return 0, false
	}
	v, ok := l.consts[strings.ToUpper(key)]
	return v, ok
}

// Func returns the function named by key, or nil if there is none.
func (l *Library) Func(key string) Func {
	if l == nil {
		return nil
	}
	return l.funcs[key]
}

// Names returns the sorted names of the library's constants and functions.
func (l *Library) Names() (consts, funcs []string) {
	if l == nil {
		return nil, nil
	}
	consts = make([]string, 0, len(l.consts))
	for k := range l.consts {
		consts = append(consts, k)
	}
	funcs = make([]string, 0, len(l.funcs))
	for k := range l.funcs {
		funcs = append(funcs, k)
	}
	slices.Sort(consts)
	slices.Sort(funcs)
	return consts, funcs
}

var stdlib = NewLibrary(
	map[string]float64{
		"E":       math.E,
		"PI":      math.Pi,
		"LN2":     math.Ln2,
		"LN10":    math.Ln10,
		"LOG2E":   math.Log2E,
		"LOG10E":  math.Log10E,
		"SQRT2":   math.Sqrt2,
		"SQRT1_2": 1 / math.Sqrt2,
		"PHI":     math.Phi,
	},
	map[string]Func{
		"abs":   Monadic(math.Abs),
		"acos":  Monadic(math.Acos),
		"acosh": Monadic(math.Acosh),
		"asin":  Monadic(math.Asin),
		"asinh": Monadic(math.Asinh),
		"atan":  Monadic(math.Atan),
		"atan2": Dyadic(math.Atan2),
		"atanh": Monadic(math.Atanh),
		"cbrt":  Monadic(math.Cbrt),
		"ceil":  Monadic(math.Ceil),
		"cos":   Monadic(math.Cos),
		"cosh":  Monadic(math.Cosh),
		"exp":   Monadic(math.Exp),
		"expm1": Monadic(math.Expm1),
		"floor": Monadic(math.Floor),
		"hypot": Dyadic(math.Hypot),
		"log":   Monadic(math.Log),
		"log10": Monadic(math.Log10),
		"log1p": Monadic(math.Log1p),
		"log2":  Monadic(math.Log2),
		"max":   Variadic(math.Max),
		"min":   Variadic(math.Min),
		"pow":   Dyadic(math.Pow),
		"round": Monadic(math.Round),
		"sign":  Monadic(sign),
		"sin":   Monadic(math.Sin),
		"sinh":  Monadic(math.Sinh),
		"sqrt":  Monadic(math.Sqrt),
		"tan":   Monadic(math.Tan),
		"tanh":  Monadic(math.Tanh),
		"trunc": Monadic(math.Trunc),
	},
)

// Stdlib returns the standard library, which provides the constants and
// common functions of package math.
func Stdlib() *Library {
	return stdlib
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	// Preserves NaN and signed zeros.
	return x
}
