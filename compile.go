package formula

import "math"

// Evaluator computes the value of a compiled expression using the bindings
// in a symbol table. Evaluators are safe for concurrent use, provided the
// functions in the symbol table are.
type Evaluator func(Symbols) float64

// CompileOption is an option for compiling.
type CompileOption interface {
	compileOption()
}

type libopt struct {
	lib *Library
}

func (libopt) compileOption() {}

// WithLibrary sets the host library used to resolve constants and functions.
// The default is Stdlib(). A nil library resolves everything through the
// symbol table.
func WithLibrary(lib *Library) CompileOption {
	return libopt{lib}
}

// Compile creates an evaluator for the tree rooted at n. Evaluation never
// fails: a name with no variable binding, or a call with no function to
// apply, evaluates to NaN, which propagates through arithmetic.
//
// A FuncNode is resolved by its key in order: the operator keys, then
// constants of the library, then functions of the library, then functions of
// the symbol table. The operators sum, product, div, mod, lessThan, and
// greaterThan fold their operands left to right; pow folds right to left; neg
// negates its first operand.
func Compile(n *Node, opts ...CompileOption) Evaluator {
	c := compiler{lib: Stdlib()}
	for _, opt := range opts {
		switch opt := opt.(type) {
		case libopt:
			c.lib = opt.lib
		default:
			panic("formula: unknown compile option")
		}
	}
	return c.compile(n)
}

type compiler struct {
	lib *Library
}

func (c *compiler) compile(n *Node) Evaluator {
	switch n.kind {
	case LiteralNode:
		v := n.value
		return func(Symbols) float64 { return v }
	case NameNode:
		key := n.key
		return func(s Symbols) float64 { return s.Var(key) }
	case ExprNode:
		if len(n.children) == 0 {
			return nan
		}
		return c.compile(n.children[0])
	case FuncNode:
		return c.call(n)
	default:
		panic("formula: invalid node kind " + n.kind.String())
	}
}

func (c *compiler) call(n *Node) Evaluator {
	args := make([]Evaluator, len(n.children))
	for i, child := range n.children {
		args[i] = c.compile(child)
	}
	if op := Operator(n.key); op != nil {
		if len(args) == 0 {
			return nan
		}
		switch n.key {
		case KeyNeg:
			x := args[0]
			return func(s Symbols) float64 { return -x(s) }
		case KeyPow:
			return foldr(args, op)
		default:
			return foldl(args, op)
		}
	}
	if v, ok := c.lib.Const(n.key); ok {
		return func(Symbols) float64 { return v }
	}
	if f := c.lib.Func(n.key); f != nil {
		return apply(f, args)
	}
	key := n.key
	return func(s Symbols) float64 {
		f := s.Func(key)
		if f == nil {
			return math.NaN()
		}
		return f(evalAll(args, s)...)
	}
}

// Operator returns the binary function an operator key folds with, or nil if
// key is not an operator key. The function for KeyNeg is subtraction, so
// that neg folded onto zero negates.
func Operator(key string) func(x, y float64) float64 {
	return operators[key]
}

var operators = map[string]func(x, y float64) float64{
	KeyPow:         math.Pow,
	KeyNeg:         func(x, y float64) float64 { return x - y },
	KeyProduct:     func(x, y float64) float64 { return x * y },
	KeyDiv:         func(x, y float64) float64 { return x / y },
	KeyMod:         math.Mod,
	KeySum:         func(x, y float64) float64 { return x + y },
	KeyLessThan:    func(x, y float64) float64 { return truth(x < y) },
	KeyGreaterThan: func(x, y float64) float64 { return truth(x > y) },
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func nan(Symbols) float64 {
	return math.NaN()
}

func foldl(args []Evaluator, op func(x, y float64) float64) Evaluator {
	if len(args) == 2 {
		x, y := args[0], args[1]
		return func(s Symbols) float64 { return op(x(s), y(s)) }
	}
	return func(s Symbols) float64 {
		r := args[0](s)
		for _, arg := range args[1:] {
			r = op(r, arg(s))
		}
		return r
	}
}

func foldr(args []Evaluator, op func(x, y float64) float64) Evaluator {
	return func(s Symbols) float64 {
		// Operands are evaluated left to right like every other fold.
		xs := evalAll(args, s)
		r := xs[len(xs)-1]
		for i := len(xs) - 2; i >= 0; i-- {
			r = op(xs[i], r)
		}
		return r
	}
}

func apply(f Func, args []Evaluator) Evaluator {
	return func(s Symbols) float64 {
		return f(evalAll(args, s)...)
	}
}

func evalAll(args []Evaluator, s Symbols) []float64 {
	xs := make([]float64, len(args))
	for i, arg := range args {
		xs[i] = arg(s)
	}
	return xs
}
