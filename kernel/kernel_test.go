package kernel

import (
	"errors"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"math"
	"math/big"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zephyrtronium/bigfloat"
	"golang.org/x/sync/errgroup"

	"github.com/zephyrtronium/formula"
)

func mustParse(t testing.TB, src string) *formula.Node {
	t.Helper()
	root, err := formula.Parse(src)
	require.NoError(t, err, "parsing %q", src)
	return root
}

func count(args ...float64) float64 {
	r := float64(len(args))
	for _, x := range args {
		r += x
	}
	return r
}

func TestLinkage(t *testing.T) {
	foreign := Foreign(map[string]formula.Func{
		"f":    count,
		"sqrt": formula.Monadic(func(x float64) float64 { return -1 }),
	})
	cases := []struct {
		name    string
		src     string
		params  []string
		imports []string
		externs []string
	}{
		{"empty", "", nil, nil, nil},
		{"literal", "1", nil, nil, nil},
		{"params", "x + y*x + z", []string{"x", "y", "z"}, nil, nil},
		{"imports", "sin(x) + x^2 + cos(y) + sin(y)", []string{"x", "y"}, []string{"sin", "pow", "cos"}, nil},
		{"powcall", "pow(2 a)", []string{"a"}, []string{"pow"}, nil},
		{"pow1", "pow(a)", []string{"a"}, nil, nil},
		{"const", "pi() * r^2", []string{"r"}, []string{"pow"}, nil},
		{"externs", "f(x) + f(y z) + hypot(x y)", []string{"x", "y", "z"}, []string{"hypot"}, []string{"f"}},
		{"shadowed", "sqrt(x)", []string{"x"}, []string{"sqrt"}, nil},
		{"callparams", "f(b a) + a", []string{"b", "a"}, nil, []string{"f"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			k, err := Compile(mustParse(t, c.src), foreign)
			require.NoError(t, err)
			assert.Equal(t, c.params, k.Params(), "params")
			assert.Equal(t, c.imports, k.Imports(), "imports")
			assert.Equal(t, c.externs, k.Externs(), "externs")
		})
	}
}

func TestLinkError(t *testing.T) {
	_, err := Compile(mustParse(t, "1 + g(x)"))
	var lerr *LinkError
	require.True(t, errors.As(err, &lerr), "wrong error %v", err)
	assert.Equal(t, "g", lerr.Name)
	assert.EqualError(t, err, `kernel: no library or foreign function "g"`)

	// A nil library sends even stdlib names to the foreign functions.
	_, err = Compile(mustParse(t, "sin(x)"), WithLibrary(nil))
	require.True(t, errors.As(err, &lerr), "wrong error %v", err)
	assert.Equal(t, "sin", lerr.Name)

	k, err := Compile(mustParse(t, "sin(x)"), WithLibrary(nil), Foreign(map[string]formula.Func{"sin": formula.Monadic(math.Sin)}))
	require.NoError(t, err)
	assert.Equal(t, []string{"sin"}, k.Externs())
	assert.Empty(t, k.Imports())
}

func TestForeignMerge(t *testing.T) {
	k, err := Compile(mustParse(t, "f() + g()"),
		Foreign(map[string]formula.Func{"f": formula.Niladic(func() float64 { return 1 })}),
		Foreign(map[string]formula.Func{"g": formula.Niladic(func() float64 { return 2 })}),
		Foreign(map[string]formula.Func{"f": formula.Niladic(func() float64 { return 10 })}),
	)
	require.NoError(t, err)
	assert.Equal(t, 12.0, k.Call())
}

func TestCallArgs(t *testing.T) {
	k, err := Compile(mustParse(t, "x - y"))
	require.NoError(t, err)
	assert.Equal(t, -1.0, k.Call(1, 2))
	assert.Panics(t, func() { k.Call(1) })
	assert.Panics(t, func() { k.Call(1, 2, 3) })
	assert.Equal(t, 1.0, k.Eval(formula.Symbols{"x": formula.Var(3), "y": formula.Var(2)}))
	assert.True(t, math.IsNaN(k.Eval(formula.Symbols{"x": formula.Var(3)})))
}

var corpus = []string{
	"",
	"()",
	"1",
	"1 2 3",
	"x",
	"-x",
	"--x",
	"x + y*z",
	"x - y - z",
	"x / y / z",
	"x*y/z*x",
	"x % y",
	"-x % y",
	"x^y",
	"x^y^z",
	"-x^2",
	"x < y > z",
	"x < y + z",
	"(x) (y)",
	"sin(x) + cos(y)",
	"max(x y z) - min(x y)",
	"max()",
	"atan2(y x)",
	"atan2(y)",
	"f(x y) * f()",
	"f(f(x) f(y z))",
	"pi() * x^2",
	"E(x y)",
	"sum(x y z)",
	"neg(x y)",
	"product()",
	"sqrt(x)",
	"hypot(x y)",
	"exp(log(abs(x)))",
	"round(x*10)/10",
	"sign(x) * abs(x)",
	"1000000^1000000",
	"0/0 + x",
	"((x + (y - (z * (x / (y % z))))))",
}

func TestAgreesWithCompile(t *testing.T) {
	funcs := map[string]formula.Func{"f": count}
	rng := rand.New(rand.NewSource(1))
	for _, src := range corpus {
		root := mustParse(t, src)
		k, err := Compile(root, Foreign(funcs))
		require.NoError(t, err, "compiling %q", src)
		eval := formula.Compile(root)
		for i := 0; i < 50; i++ {
			syms := formula.Symbols{
				"x": formula.Var(rng.Float64()*20 - 10),
				"y": formula.Var(rng.Float64()*20 - 10),
				"z": formula.Var(float64(rng.Intn(7) - 3)),
				"f": funcs["f"],
			}
			want, got := eval(syms), k.Eval(syms)
			if math.IsNaN(want) && math.IsNaN(got) {
				continue
			}
			if !assert.Equal(t, want, got, "%q with x=%v y=%v z=%v", src, syms["x"], syms["y"], syms["z"]) {
				t.Logf("kernel:\n%s", k)
				break
			}
		}
	}
}

func TestConcurrentCall(t *testing.T) {
	k, err := Compile(mustParse(t, "x^2 + 2*x*y + y^2"))
	require.NoError(t, err)
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		x := float64(i)
		g.Go(func() error {
			for y := 0.0; y < 100; y++ {
				want := (x + y) * (x + y)
				if r := k.Call(x, y); r != want {
					return fmt.Errorf("x=%g y=%g: want %g, got %g", x, y, want, r)
				}
			}
			return nil
		})
	}
	assert.NoError(t, g.Wait())
}

func TestPowChainPrecision(t *testing.T) {
	k, err := Compile(mustParse(t, "x^y^z"))
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 100; i++ {
		x, y, z := 0.5+rng.Float64()*1.5, rng.Float64()*2, rng.Float64()*2
		// x^(y^z) to 200 bits.
		bx := new(big.Float).SetPrec(200).SetFloat64(x)
		by := new(big.Float).SetPrec(200).SetFloat64(y)
		bz := new(big.Float).SetPrec(200).SetFloat64(z)
		e := bigfloat.Pow(new(big.Float).SetPrec(200), by, bz)
		want, _ := bigfloat.Pow(new(big.Float).SetPrec(200), bx, e).Float64()
		assert.InEpsilon(t, want, k.Call(x, y, z), 1e-12, "x=%v y=%v z=%v", x, y, z)
	}
}

func TestDeepStack(t *testing.T) {
	src := strings.Repeat("1+(", 40) + "1" + strings.Repeat(")", 40)
	k, err := Compile(mustParse(t, src))
	require.NoError(t, err)
	assert.Equal(t, 41, k.depth)
	assert.Equal(t, 41.0, k.Call())
}

func TestConstantPool(t *testing.T) {
	k, err := Compile(mustParse(t, "2 + 2*x + 2^x + 3"))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, k.consts)
}

func TestSource(t *testing.T) {
	const (
		lessThan    = "\nfunc lessThan(x, y float64) float64 {\n\tif x < y {\n\t\treturn 1\n\t}\n\treturn 0\n}\n"
		greaterThan = "\nfunc greaterThan(x, y float64) float64 {\n\tif x > y {\n\t\treturn 1\n\t}\n\treturn 0\n}\n"
		sign        = "\nfunc sign(x float64) float64 {\n\tswitch {\n\tcase x > 0:\n\t\treturn 1\n\tcase x < 0:\n\t\treturn -1\n\t}\n\treturn x\n}\n"
	)
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"literal", "1", "func kernel() float64 {\n\treturn 1\n}\n"},
		{"empty", "", "func kernel() float64 {\n\treturn math.NaN()\n}\n"},
		{"negconst", "pi() - 1", "func kernel() float64 {\n\tc0 := float64(3.141592653589793)\n\treturn (c0 + -1)\n}\n"},
		{"literals", "1/0 + 0.1*0.2 - 0", "func kernel() float64 {\n\tc0 := float64(1)\n\tc1 := float64(0.1)\n\tc2 := float64(0)\n\treturn (((c0 / 0) + (c1 * 0.2)) + -c2)\n}\n"},
		{"arith", "x + 2*y", "func kernel(x, y float64) float64 {\n\treturn (x + (2 * y))\n}\n"},
		{"negneg", "--x", "func kernel(x float64) float64 {\n\treturn -(-x)\n}\n"},
		{"compare", "x < y % 2", "func kernel(x, y float64) float64 {\n\treturn lessThan(x, math.Mod(y, 2))\n}\n" + lessThan},
		{"calls", "-sin(x)^2 + f(-1)", "// imports: sin, pow\n// externs: f\nfunc kernel(x float64) float64 {\n\treturn (-math.Pow(math.Sin(x), 2) + f(-1))\n}\n"},
		{"powchain", "a^b^c", "// imports: pow\nfunc kernel(a, b, c float64) float64 {\n\treturn math.Pow(a, math.Pow(b, c))\n}\n"},
		{"helpers", "sign(x) > max(x 1 2) + min(y)", "// imports: sign, max, min\nfunc kernel(x, y float64) float64 {\n\treturn greaterThan(sign(x), (math.Max(math.Max(x, 1), 2) + y))\n}\n" + greaterThan + sign},
		{"arity", "sin(x y) + max()", "// imports: sin, max\nfunc kernel(x, y float64) float64 {\n\treturn (math.NaN() + math.NaN())\n}\n"},
	}
	foreign := Foreign(map[string]formula.Func{"f": count})
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			k, err := Compile(mustParse(t, c.src), foreign)
			require.NoError(t, err)
			assert.Equal(t, c.want, k.Source())
		})
	}
}

func TestSourceTypeChecks(t *testing.T) {
	srcs := []string{
		"x < y % 2 > z",
		"-sin(x)^2 + f(-1) + f(x y)",
		"sign(x) + max(x 1 2) + min() + atan2(x y) + hypot(x) + abs(-0)",
		"pi() - 1/0 + 1" + strings.Repeat("0", 308) + "*10 + 2^3^2 + 7 % 0",
		"c0 * (1 + 2) + c1(3 * 4)",
	}
	foreign := Foreign(map[string]formula.Func{"f": count, "c1": count})
	for _, src := range srcs {
		k, err := Compile(mustParse(t, src), foreign)
		require.NoError(t, err)
		var b strings.Builder
		b.WriteString("package kernels\n\nimport \"math\"\n\nvar _ = math.Pi\n\n")
		for _, name := range k.Externs() {
			b.WriteString("func " + name + "(...float64) float64 { return 0 }\n\n")
		}
		b.WriteString(k.Source())
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, "kernel.go", b.String(), 0)
		require.NoError(t, err, "parsing:\n%s", b.String())
		conf := types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
		_, err = conf.Check("kernels", fset, []*ast.File{file}, nil)
		assert.NoError(t, err, "checking %q:\n%s", src, b.String())
	}
}

func TestDisassembly(t *testing.T) {
	k, err := Compile(mustParse(t, "x + max(2 x)"))
	require.NoError(t, err)
	want := "kernel(x) depth 3\n" +
		"0000\tPARAM\t0\t; x\n" +
		"0004\tCONST\t0\t; 2\n" +
		"0008\tPARAM\t0\t; x\n" +
		"000c\tCALL\t0\t; max/2\n" +
		"0010\tADD\n" +
		"0014\tRETURN\n"
	assert.Equal(t, want, k.String())
}

func TestLLVM(t *testing.T) {
	k, err := Compile(mustParse(t, "x^y + max(x y 1) - abs(f(x)) + (x < y)"), Foreign(map[string]formula.Func{"f": count}))
	require.NoError(t, err)
	m, err := k.LLVM()
	require.NoError(t, err)
	ir := m.String()
	assert.Contains(t, ir, "define double @kernel(double %x, double %y)")
	assert.Contains(t, ir, "declare double @pow(")
	assert.Contains(t, ir, "declare double @fmax(")
	assert.Contains(t, ir, "declare double @fabs(")
	assert.Contains(t, ir, "declare double @f(")
	assert.Contains(t, ir, "fcmp olt")
	assert.Contains(t, ir, "ret double")
	assert.Equal(t, 2, strings.Count(ir, "call double @fmax("))
	assert.Equal(t, 1, strings.Count(ir, "declare double @fmax("))
}

func TestLLVMSign(t *testing.T) {
	k, err := Compile(mustParse(t, "sign(x) + sign(x y)"))
	require.NoError(t, err)
	m, err := k.LLVM()
	require.NoError(t, err)
	ir := m.String()
	assert.NotContains(t, ir, "@sign")
	assert.Equal(t, 1, strings.Count(ir, "fcmp ogt double %x, 0.0"))
	assert.Equal(t, 1, strings.Count(ir, "fcmp olt double %x, 0.0"))
	assert.Equal(t, 2, strings.Count(ir, "select i1"))
	assert.Contains(t, ir, "double -1.0, double %x")
}

func TestLLVMErrors(t *testing.T) {
	foreign := Foreign(map[string]formula.Func{"f": count, "kernel": count})

	k, err := Compile(mustParse(t, "f(x) + f(x 1)"), foreign)
	require.NoError(t, err)
	_, err = k.LLVM()
	var aerr *ArityError
	require.True(t, errors.As(err, &aerr), "wrong error %v", err)
	assert.Equal(t, ArityError{Name: "f", Want: 1, Got: 2}, *aerr)

	k, err = Compile(mustParse(t, "kernel(x)"), foreign)
	require.NoError(t, err)
	_, err = k.LLVM()
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	code := func(ins ...[3]int) []byte {
		var b []byte
		for _, in := range ins {
			b = encode(b, opcode(in[0]), uint8(in[1]), uint16(in[2]))
		}
		return b
	}
	ret := [3]int{int(opReturn), 0, 0}
	cases := []struct {
		name string
		k    Kernel
		msg  string
	}{
		{"empty", Kernel{}, "does not end with return"},
		{"truncated", Kernel{code: []byte{byte(opConst), 0, 0}}, "truncated"},
		{"unknown", Kernel{code: code([3]int{200, 0, 0}, ret)}, "unknown opcode"},
		{"const", Kernel{code: code([3]int{int(opConst), 0, 1}, ret), consts: []float64{1}}, "constant index 1"},
		{"param", Kernel{code: code([3]int{int(opParam), 0, 0}, ret)}, "parameter index 0"},
		{"func", Kernel{code: code([3]int{int(opCall), 0, 0}, ret)}, "function index 0"},
		{"underflow", Kernel{code: code([3]int{int(opConst), 0, 0}, [3]int{int(opAdd), 0, 0}, ret), consts: []float64{1}}, "ADD needs 2 operands"},
		{"callunderflow", Kernel{code: code([3]int{int(opCall), 2, 0}, ret), funcs: []function{{name: "f"}}}, "CALL needs 2 operands"},
		{"noresult", Kernel{code: code(ret)}, "RETURN needs 1 operands"},
		{"leftover", Kernel{code: code([3]int{int(opConst), 0, 0}, [3]int{int(opConst), 0, 0}, ret), consts: []float64{1}}, "1 values left"},
		{"early", Kernel{code: code([3]int{int(opConst), 0, 0}, ret, ret), consts: []float64{1}}, "return before end"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := verify(&c.k)
			var verr *VerifyError
			require.True(t, errors.As(err, &verr), "wrong error %v", err)
			assert.Contains(t, verr.Message, c.msg)
		})
	}

	k, err := Compile(mustParse(t, "x + y*z"))
	require.NoError(t, err)
	depth, err := verify(k)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
}

func BenchmarkCall(b *testing.B) {
	root := mustParse(b, "x^2 + 2*x*y + sin(y)")
	k, err := Compile(root)
	require.NoError(b, err)
	b.Run("kernel", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			k.Call(2, 3)
		}
	})
	b.Run("compile", func(b *testing.B) {
		b.ReportAllocs()
		eval := formula.Compile(root)
		syms := formula.Symbols{"x": formula.Var(2), "y": formula.Var(3)}
		for i := 0; i < b.N; i++ {
			eval(syms)
		}
	})
}
