package kernel

import (
	"math"
	"strconv"
	"strings"
)

// machine interprets a kernel symbolically, building values of type T.
type machine[T any] interface {
	constant(x float64) T
	param(i int) T
	neg(x T) T
	binary(op opcode, x, y T) T
	call(f *function, args []T) T
}

// replay runs the kernel's code on m.
func replay[T any](k *Kernel, m machine[T]) T {
	var stack []T
	for pc := 0; pc < len(k.code); pc += 4 {
		in := decode(k.code, pc)
		switch in.op {
		case opConst:
			stack = append(stack, m.constant(k.consts[in.imm]))
		case opParam:
			stack = append(stack, m.param(in.imm))
		case opNeg:
			stack[len(stack)-1] = m.neg(stack[len(stack)-1])
		case opCall:
			sp := len(stack) - in.n
			args := append([]T(nil), stack[sp:]...)
			stack = append(stack[:sp], m.call(&k.funcs[in.imm], args))
		case opReturn:
			return stack[len(stack)-1]
		default:
			y := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stack[len(stack)-1] = m.binary(in.op, stack[len(stack)-1], y)
		}
	}
	panic("kernel: code does not end with return")
}

// Source renders the kernel as a Go function declaration. Library functions
// print as their package math counterparts where they have one, and
// declarations of any helpers the body calls follow the function, so the
// result compiles in a file that imports math and defines the externs and any
// other library functions, provided no name is a Go keyword or shadows math.
// Arithmetic on two literals goes through a local variable so that it
// happens in float64 at run time rather than as exact constant arithmetic.
func (k *Kernel) Source() string {
	var b strings.Builder
	if len(k.imports) > 0 {
		b.WriteString("// imports: " + strings.Join(k.imports, ", ") + "\n")
	}
	if ext := k.Externs(); len(ext) > 0 {
		b.WriteString("// externs: " + strings.Join(ext, ", ") + "\n")
	}
	b.WriteString("func kernel(")
	if len(k.params) > 0 {
		b.WriteString(strings.Join(k.params, ", ") + " float64")
	}
	b.WriteString(") float64 {\n")
	s := &goSource{k: k, used: make(map[string]bool)}
	r := replay[goExpr](k, s)
	for _, l := range s.locals {
		b.WriteString("\t" + l + "\n")
	}
	b.WriteString("\treturn " + r.text + "\n}\n")
	for _, h := range goHelpers {
		if s.used[h.name] {
			b.WriteString("\n" + h.decl)
		}
	}
	return b.String()
}

// goFuncs maps library functions to package math functions of the same
// arity.
var goFuncs = map[string]struct {
	name  string
	arity int
}{
	"abs":   {"Abs", 1},
	"acos":  {"Acos", 1},
	"acosh": {"Acosh", 1},
	"asin":  {"Asin", 1},
	"asinh": {"Asinh", 1},
	"atan":  {"Atan", 1},
	"atan2": {"Atan2", 2},
	"atanh": {"Atanh", 1},
	"cbrt":  {"Cbrt", 1},
	"ceil":  {"Ceil", 1},
	"cos":   {"Cos", 1},
	"cosh":  {"Cosh", 1},
	"exp":   {"Exp", 1},
	"expm1": {"Expm1", 1},
	"floor": {"Floor", 1},
	"hypot": {"Hypot", 2},
	"log":   {"Log", 1},
	"log10": {"Log10", 1},
	"log1p": {"Log1p", 1},
	"log2":  {"Log2", 1},
	"pow":   {"Pow", 2},
	"round": {"Round", 1},
	"sin":   {"Sin", 1},
	"sinh":  {"Sinh", 1},
	"sqrt":  {"Sqrt", 1},
	"tan":   {"Tan", 1},
	"tanh":  {"Tanh", 1},
	"trunc": {"Trunc", 1},
}

// goHelpers are declarations for the functions Source calls that have no
// package math counterpart, in the order they are printed.
var goHelpers = []struct {
	name string
	decl string
}{
	{"lessThan", "func lessThan(x, y float64) float64 {\n\tif x < y {\n\t\treturn 1\n\t}\n\treturn 0\n}\n"},
	{"greaterThan", "func greaterThan(x, y float64) float64 {\n\tif x > y {\n\t\treturn 1\n\t}\n\treturn 0\n}\n"},
	{"sign", "func sign(x float64) float64 {\n\tswitch {\n\tcase x > 0:\n\t\treturn 1\n\tcase x < 0:\n\t\treturn -1\n\t}\n\treturn x\n}\n"},
}

// goExpr is a rendered Go expression. An untyped expression is a constant
// with the value v.
type goExpr struct {
	text    string
	untyped bool
	v       float64
}

type goSource struct {
	k *Kernel
	// used holds the helpers the body calls.
	used map[string]bool
	// locals are the statements declaring hoisted literals.
	locals []string
	next   int
}

func (*goSource) constant(x float64) goExpr {
	switch {
	case math.IsNaN(x):
		return goExpr{text: "math.NaN()"}
	case math.IsInf(x, 1):
		return goExpr{text: "math.Inf(1)"}
	case math.IsInf(x, -1):
		return goExpr{text: "math.Inf(-1)"}
	case x == 0 && math.Signbit(x):
		return goExpr{text: "math.Copysign(0, -1)"}
	case x < 0:
		return goExpr{text: "(" + strconv.FormatFloat(x, 'g', -1, 64) + ")", untyped: true, v: x}
	}
	return goExpr{text: strconv.FormatFloat(x, 'g', -1, 64), untyped: true, v: x}
}

func (s *goSource) param(i int) goExpr {
	return goExpr{text: s.k.params[i]}
}

func (s *goSource) neg(x goExpr) goExpr {
	if x.untyped && x.v == 0 {
		// Constants have no negative zero.
		x = s.hoist(x)
	}
	if strings.HasPrefix(x.text, "-") {
		x.text = "-(" + x.text + ")"
	} else {
		x.text = "-" + x.text
	}
	x.v = -x.v
	return x
}

func (s *goSource) binary(op opcode, x, y goExpr) goExpr {
	var glyph string
	switch op {
	case opAdd:
		glyph = " + "
	case opMul:
		glyph = " * "
	case opDiv:
		glyph = " / "
	case opMod:
		return s.math("Mod", x, y)
	case opLt:
		return s.helper("lessThan", x, y)
	case opGt:
		return s.helper("greaterThan", x, y)
	case opPow:
		return s.math("Pow", x, y)
	default:
		panic("kernel: not an arithmetic opcode: " + op.String())
	}
	if x.untyped && y.untyped {
		x = s.hoist(x)
	}
	return goExpr{text: "(" + x.text + glyph + y.text + ")"}
}

func (s *goSource) call(f *function, args []goExpr) goExpr {
	if f.extern {
		return goExpr{text: f.name + "(" + join(args) + ")"}
	}
	if gf, ok := goFuncs[f.name]; ok {
		if len(args) != gf.arity {
			return goExpr{text: "math.NaN()"}
		}
		return s.math(gf.name, args...)
	}
	switch f.name {
	case "max", "min":
		if len(args) == 0 {
			return goExpr{text: "math.NaN()"}
		}
		r := args[0]
		for _, x := range args[1:] {
			r = s.math(strings.ToUpper(f.name[:1])+f.name[1:], r, x)
		}
		return r
	case "sign":
		if len(args) != 1 {
			return goExpr{text: "math.NaN()"}
		}
		return s.helper("sign", args...)
	}
	return goExpr{text: f.name + "(" + join(args) + ")"}
}

func (s *goSource) math(name string, args ...goExpr) goExpr {
	return goExpr{text: "math." + name + "(" + join(args) + ")"}
}

func (s *goSource) helper(name string, args ...goExpr) goExpr {
	s.used[name] = true
	return goExpr{text: name + "(" + join(args) + ")"}
}

// hoist declares a local variable holding the untyped expression x and
// returns a reference to it.
func (s *goSource) hoist(x goExpr) goExpr {
	var name string
	for {
		name = "c" + strconv.Itoa(s.next)
		s.next++
		if !s.taken(name) {
			break
		}
	}
	s.locals = append(s.locals, name+" := float64("+x.text+")")
	return goExpr{text: name}
}

// taken reports whether name is a parameter or a called function.
func (s *goSource) taken(name string) bool {
	for _, p := range s.k.params {
		if p == name {
			return true
		}
	}
	for _, f := range s.k.funcs {
		if f.name == name {
			return true
		}
	}
	return false
}

func join(args []goExpr) string {
	s := make([]string, len(args))
	for i, x := range args {
		s[i] = x.text
	}
	return strings.Join(s, ", ")
}
