// Package kernel compiles formula trees to numeric kernels: flat stack
// bytecode over positional float64 arguments, with no symbol table lookups
// at evaluation time. A kernel can also be rendered as Go source or
// emitted as an LLVM IR module.
//
// Kernels resolve names the same way formula.Compile does, so for any
// bindings of the parameters both give the same result.
package kernel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zephyrtronium/formula"
)

// Kernel is a compiled formula. It is immutable and safe for concurrent use.
type Kernel struct {
	code   []byte
	consts []float64
	params []string
	funcs  []function
	// imports lists library functions in first-seen order, including pow
	// when the kernel exponentiates.
	imports []string
	// depth is the maximum operand stack depth.
	depth int
}

// function is an entry of a kernel's function table.
type function struct {
	name   string
	f      formula.Func
	extern bool
}

// Option is an option for compiling a kernel.
type Option interface {
	kernelOption(*generator)
}

type (
	libopt     struct{ lib *formula.Library }
	foreignopt map[string]formula.Func
)

// WithLibrary sets the host library used to resolve constants and functions.
// The default is formula.Stdlib().
func WithLibrary(lib *formula.Library) Option {
	return libopt{lib}
}

func (o libopt) kernelOption(g *generator) {
	g.lib = o.lib
}

// Foreign supplies functions for calls that the library does not resolve.
// Multiple Foreign options merge, later ones taking precedence.
func Foreign(funcs map[string]formula.Func) Option {
	return foreignopt(funcs)
}

func (o foreignopt) kernelOption(g *generator) {
	if g.foreign == nil {
		g.foreign = make(map[string]formula.Func, len(o))
	}
	for k, v := range o {
		g.foreign[k] = v
	}
}

// LinkError is returned by Compile when a call resolves to neither the
// library nor a foreign function.
type LinkError struct {
	Name string
}

func (err *LinkError) Error() string {
	return "kernel: no library or foreign function " + strconv.Quote(err.Name)
}

// Compile compiles the tree rooted at root, normally the result of
// formula.Parse. The kernel's parameters are the distinct variable names of
// the tree in order of first appearance.
func Compile(root *formula.Node, opts ...Option) (*Kernel, error) {
	g := newGenerator(root.Vars())
	for _, opt := range opts {
		opt.kernelOption(g)
	}
	if err := g.gen(root); err != nil {
		return nil, err
	}
	k := g.kernel()
	depth, err := verify(k)
	if err != nil {
		panic("kernel: generated invalid bytecode: " + err.Error())
	}
	k.depth = depth
	return k, nil
}

// Params returns the names of the kernel's parameters in argument order.
func (k *Kernel) Params() []string {
	return append([]string(nil), k.params...)
}

// Imports returns the library functions the kernel calls, in order of first
// use. Exponentiation counts as a use of pow.
func (k *Kernel) Imports() []string {
	return append([]string(nil), k.imports...)
}

// Externs returns the foreign functions the kernel calls, in order of first
// use.
func (k *Kernel) Externs() []string {
	var r []string
	for _, f := range k.funcs {
		if f.extern {
			r = append(r, f.name)
		}
	}
	return r
}

// Call evaluates the kernel. There must be exactly one argument per
// parameter; Call panics otherwise.
func (k *Kernel) Call(args ...float64) float64 {
	if len(args) != len(k.params) {
		panic(fmt.Sprintf("kernel: called with %d arguments, want %d", len(args), len(k.params)))
	}
	var buf [32]float64
	stack := buf[:0]
	if k.depth > len(buf) {
		stack = make([]float64, 0, k.depth)
	}
	for pc := 0; ; pc += 4 {
		in := decode(k.code, pc)
		switch in.op {
		case opConst:
			stack = append(stack, k.consts[in.imm])
		case opParam:
			stack = append(stack, args[in.imm])
		case opNeg:
			stack[len(stack)-1] = -stack[len(stack)-1]
		case opCall:
			sp := len(stack) - in.n
			r := k.funcs[in.imm].f(stack[sp:]...)
			stack = append(stack[:sp], r)
		case opReturn:
			return stack[len(stack)-1]
		default:
			y := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stack[len(stack)-1] = arith(in.op, stack[len(stack)-1], y)
		}
	}
}

// Eval evaluates the kernel with parameters bound from a symbol table. A
// parameter that is not bound to a formula.Var is NaN.
func (k *Kernel) Eval(s formula.Symbols) float64 {
	args := make([]float64, len(k.params))
	for i, name := range k.params {
		args[i] = s.Var(name)
	}
	return k.Call(args...)
}

func arith(op opcode, x, y float64) float64 {
	switch op {
	case opAdd:
		return x + y
	case opMul:
		return x * y
	case opDiv:
		return x / y
	case opMod:
		return math.Mod(x, y)
	case opLt:
		if x < y {
			return 1
		}
		return 0
	case opGt:
		if x > y {
			return 1
		}
		return 0
	case opPow:
		return math.Pow(x, y)
	}
	panic("kernel: not an arithmetic opcode: " + op.String())
}

// String disassembles the kernel.
func (k *Kernel) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "kernel(%s) depth %d\n", strings.Join(k.params, ", "), k.depth)
	for pc := 0; pc < len(k.code); pc += 4 {
		in := decode(k.code, pc)
		fmt.Fprintf(&b, "%04x\t%s", pc, in.op)
		switch in.op {
		case opConst:
			fmt.Fprintf(&b, "\t%d\t; %g", in.imm, k.consts[in.imm])
		case opParam:
			fmt.Fprintf(&b, "\t%d\t; %s", in.imm, k.params[in.imm])
		case opCall:
			fmt.Fprintf(&b, "\t%d\t; %s/%d", in.imm, k.funcs[in.imm].name, in.n)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
