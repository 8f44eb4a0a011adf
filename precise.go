package formula

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/zephyrtronium/bigfloat"
	"golang.org/x/exp/maps"
)

// Context evaluates trees to arbitrary precision. Unlike an Evaluator, a
// Context reports failures as errors rather than producing NaN, since
// big.Float has no NaN. It is not safe to use a Context concurrently.
type Context struct {
	stack []*big.Float
	// names holds variable values as given. They are rounded to prec when
	// they are read.
	names map[string]*big.Float
	funcs map[string]Func
	prec  uint
	err   error
}

// ContextOption is an option used when creating a context.
type ContextOption func(*Context)

// SetVar sets the value of a variable in the context.
func SetVar(name string, val *big.Float) ContextOption {
	return func(ctx *Context) { ctx.Set(name, val) }
}

// SetVars sets the values of any number of variables in the context.
func SetVars(vars map[string]*big.Float) ContextOption {
	return func(ctx *Context) {
		for name, val := range vars {
			ctx.Set(name, val)
		}
	}
}

// Bind adds the bindings of a symbol table to the context. Functions from
// the table are applied in float64. NaN variables stay unbound.
func Bind(syms Symbols) ContextOption {
	return func(ctx *Context) {
		for name, b := range syms {
			switch b := b.(type) {
			case Var:
				if !math.IsNaN(float64(b)) {
					ctx.names[name] = big.NewFloat(float64(b))
				}
			case Func:
				ctx.funcs[name] = b
			}
		}
	}
}

// Prec sets the precision of calculations in bits.
func Prec(prec uint) ContextOption {
	return func(ctx *Context) { ctx.prec = prec }
}

// NewContext creates a new evaluation context. If no precision is given, the
// default is 64.
func NewContext(opts ...ContextOption) *Context {
	ctx := Context{prec: 64}
	return ctx.Clone(opts...)
}

// Eval evaluates the tree rooted at n and returns the result. If an error
// occurs, e.g. a missing variable definition or an argument to a function
// is outside the function's domain, then the result is nil and ctx.Err
// returns the error.
func (ctx *Context) Eval(n *Node) *big.Float {
	ctx.stack = ctx.stack[:0]
	ctx.err = ctx.eval(n)
	return ctx.Result()
}

// Result returns the result of the last evaluation, or nil if it failed.
// Panics if ctx has not evaluated an expression.
func (ctx *Context) Result() *big.Float {
	if ctx.err != nil {
		return nil
	}
	if len(ctx.stack) != 1 {
		panic("formula: Context.Result with " + strconv.Itoa(len(ctx.stack)) + " values")
	}
	return ctx.stack[0]
}

// Err returns the error from the last evaluation, if any.
func (ctx *Context) Err() error {
	return ctx.err
}

// Set sets the value of a variable. Returns ctx for chaining.
func (ctx *Context) Set(name string, value *big.Float) *Context {
	ctx.names[name] = new(big.Float).Copy(value)
	return ctx
}

// Lookup returns a copy of the value of a variable. If there is no such
// variable in the context, then the result is nil.
func (ctx *Context) Lookup(name string) *big.Float {
	v := ctx.names[name]
	if v == nil {
		return nil
	}
	return new(big.Float).Copy(v)
}

// Prec returns the precision to which values are computed in the context.
func (ctx *Context) Prec() uint {
	return ctx.prec
}

// Clone creates a copy of a context and applies options to it.
func (ctx *Context) Clone(opts ...ContextOption) *Context {
	n := Context{
		names: make(map[string]*big.Float, len(ctx.names)),
		funcs: make(map[string]Func, len(ctx.funcs)),
		prec:  ctx.prec,
	}
	maps.Copy(n.names, ctx.names)
	maps.Copy(n.funcs, ctx.funcs)
	for _, opt := range opts {
		opt(&n)
	}
	return &n
}

// push adds a new value at the context precision to the stack.
func (ctx *Context) push() *big.Float {
	z := new(big.Float).SetPrec(ctx.prec)
	ctx.stack = append(ctx.stack, z)
	return z
}

// eval pushes the node's value to the context's stack.
func (ctx *Context) eval(n *Node) error {
	switch n.kind {
	case LiteralNode:
		// Digit strings always parse, and big.Float exponents cannot
		// overflow from them.
		ctx.push().Parse(n.digits, 10)
	case NameNode:
		v := ctx.names[n.key]
		if v == nil {
			return &NameError{Name: n.key}
		}
		ctx.push().Set(v)
	case ExprNode:
		if len(n.children) == 0 {
			return &CallError{}
		}
		return ctx.eval(n.children[0])
	case FuncNode:
		k := len(ctx.stack)
		for _, c := range n.children {
			if err := ctx.eval(c); err != nil {
				return err
			}
		}
		args := ctx.stack[k:len(ctx.stack):len(ctx.stack)]
		r, err := ctx.call(n.key, args)
		if err != nil {
			return err
		}
		ctx.stack = append(ctx.stack[:k], r)
	default:
		panic("formula: invalid node kind " + n.kind.String())
	}
	return nil
}

// call computes a call with the given arguments. The result may be one of
// the arguments.
func (ctx *Context) call(key string, args []*big.Float) (r *big.Float, err error) {
	if op := bigops[key]; op != nil {
		if len(args) == 0 {
			return nil, &CallError{Name: key}
		}
		defer recoverNaN(key, args, &err)
		if key == KeyNeg {
			return args[0].Neg(args[0]), nil
		}
		if key == KeyPow {
			r = args[len(args)-1]
			for i := len(args) - 2; i >= 0; i-- {
				if err := op(args[i], args[i], r); err != nil {
					return nil, err
				}
				r = args[i]
			}
			return r, nil
		}
		for _, y := range args[1:] {
			if err := op(args[0], args[0], y); err != nil {
				return nil, err
			}
		}
		return args[0], nil
	}
	r = new(big.Float).SetPrec(ctx.prec)
	switch strings.ToUpper(key) {
	case "PI":
		return bigfloat.Pi(r), nil
	case "E":
		return bigfloat.Exp(r, big.NewFloat(1)), nil
	}
	if v, ok := Stdlib().Const(key); ok {
		return r.SetFloat64(v), nil
	}
	if f := bigfuncs[key]; f != nil && len(args) == 1 {
		defer recoverNaN(key, args, &err)
		return f(r, args[0]), nil
	}
	f := Stdlib().Func(key)
	if f == nil {
		f = ctx.funcs[key]
	}
	if f == nil {
		return nil, &CallError{Name: key, Args: len(args)}
	}
	xs := make([]float64, len(args))
	for i, x := range args {
		xs[i], _ = x.Float64()
	}
	v := f(xs...)
	if math.IsNaN(v) {
		if len(args) == 0 {
			return nil, &CallError{Name: key}
		}
		return nil, DomainError{X: args[0], Arg: 1, Func: key}
	}
	return r.SetFloat64(v), nil
}

// recoverNaN converts a big.ErrNaN panic into a DomainError.
func recoverNaN(key string, args []*big.Float, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(big.ErrNaN); !ok {
		panic(r)
	}
	*err = DomainError{X: args[0], Arg: 1, Func: key}
}

var bigops = map[string]func(z, x, y *big.Float) error{
	KeyPow: bigpow,
	KeyNeg: func(z, x, y *big.Float) error {
		z.Sub(x, y)
		return nil
	},
	KeyProduct: func(z, x, y *big.Float) error {
		z.Mul(x, y)
		return nil
	},
	KeyDiv: func(z, x, y *big.Float) error {
		if x.Sign() == 0 && y.Sign() == 0 || x.IsInf() && y.IsInf() {
			return DomainError{X: y, Arg: 2, Func: KeyDiv}
		}
		z.Quo(x, y)
		return nil
	},
	KeyMod: bigmod,
	KeySum: func(z, x, y *big.Float) error {
		z.Add(x, y)
		return nil
	},
	KeyLessThan: func(z, x, y *big.Float) error {
		z.SetInt64(int64(truth(x.Cmp(y) < 0)))
		return nil
	},
	KeyGreaterThan: func(z, x, y *big.Float) error {
		z.SetInt64(int64(truth(x.Cmp(y) > 0)))
		return nil
	},
}

func bigpow(z, x, y *big.Float) error {
	switch {
	case y.Sign() == 0:
		z.SetInt64(1)
		return nil
	case x.Sign() == 0:
		if y.Sign() < 0 {
			z.SetInf(false)
		} else {
			z.SetInt64(0)
		}
		return nil
	case x.Sign() > 0:
		bigfloat.Pow(z, x, y)
		return nil
	case !y.IsInt():
		return DomainError{X: x, Arg: 1, Func: KeyPow}
	}
	// Negative base with an integer exponent.
	i, _ := y.Int(nil)
	odd := i.Bit(0) == 1
	a := new(big.Float).SetPrec(z.Prec()).Neg(x)
	bigfloat.Pow(z, a, y)
	if odd {
		z.Neg(z)
	}
	return nil
}

func bigmod(z, x, y *big.Float) error {
	switch {
	case y.Sign() == 0 || x.IsInf():
		return DomainError{X: y, Arg: 2, Func: KeyMod}
	case y.IsInf():
		z.Set(x)
		return nil
	}
	q := new(big.Float).SetPrec(z.Prec()).Quo(x, y)
	i, _ := q.Int(nil)
	q.SetInt(i)
	q.Mul(q, y)
	z.Sub(x, q)
	return nil
}

// bigfuncs are library functions computed to full precision.
var bigfuncs = map[string]func(out, in *big.Float) *big.Float{
	"exp": bigfloat.Exp,
	"log": bigfloat.Log,
	"log10": func(out, in *big.Float) *big.Float {
		return logBase(out, in, 10)
	},
	"log2": func(out, in *big.Float) *big.Float {
		return logBase(out, in, 2)
	},
	"sqrt": (*big.Float).Sqrt,
	"abs":  (*big.Float).Abs,
}

func logBase(out, in *big.Float, base float64) *big.Float {
	b := new(big.Float).SetPrec(out.Prec()).SetFloat64(base)
	bigfloat.Log(out, in)
	bigfloat.Log(b, b)
	return out.Quo(out, b)
}

// NameError is an error from a lookup for a variable that is missing from the
// evaluation context.
type NameError struct {
	// Name is the name that was missing.
	Name string
}

func (err *NameError) Error() string {
	return "undefined variable: " + strconv.Quote(err.Name)
}

// CallError is an error from a call that resolves to no function. An empty
// expression is a CallError with an empty Name.
type CallError struct {
	Name string
	Args int
}

func (err *CallError) Error() string {
	if err.Name == "" {
		return "empty expression"
	}
	return "no function " + strconv.Quote(err.Name) + " of " + strconv.Itoa(err.Args) + " arguments"
}

// DomainError is an error returned when a function is called on arguments
// outside its domain. DomainError unwraps to big.ErrNaN.
type DomainError struct {
	// X is the out-of-domain argument.
	X *big.Float
	// Arg is the 1-based index of the argument.
	Arg int
	// Func is a name identifying the function.
	Func string
}

func (err DomainError) Error() string {
	r := "argument outside domain"
	if err.X != nil {
		r = err.X.String() + " outside domain"
	}
	if err.Func != "" {
		r += " of " + err.Func
	}
	if err.Arg > 0 {
		r += " (argument " + strconv.Itoa(err.Arg) + ")"
	}
	return r
}

func (err DomainError) Unwrap() error {
	return big.ErrNaN{}
}
