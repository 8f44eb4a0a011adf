package kernel

import (
	"fmt"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

// ArityError is returned by LLVM when a kernel calls one function with
// different numbers of arguments, which a single declaration cannot express.
type ArityError struct {
	Name      string
	Want, Got int
}

func (err *ArityError) Error() string {
	return fmt.Sprintf("kernel: %s called with %d arguments, previously %d", err.Name, err.Got, err.Want)
}

// cnames maps library functions to the C math functions that implement them
// when they have different names.
var cnames = map[string]string{
	"abs": "fabs",
	"max": "fmax",
	"min": "fmin",
}

// LLVM emits the kernel as an LLVM IR module defining
// double @kernel(double, ...) with one parameter per kernel parameter, and
// declaring every library and foreign function it calls. Library functions
// are declared under their C math library names; max and min of more than
// two arguments become chains of fmax and fmin. C has no sign, so it is
// computed inline.
func (k *Kernel) LLVM() (*ir.Module, error) {
	m := ir.NewModule()
	params := make([]*ir.Param, len(k.params))
	for i, name := range k.params {
		params[i] = ir.NewParam(name, types.Double)
	}
	fn := m.NewFunc("kernel", types.Double, params...)
	g := &llvmGen{
		m:      m,
		b:      fn.NewBlock("entry"),
		params: params,
		decls:  make(map[string]*ir.Func),
	}
	r := replay[value.Value](k, g)
	if g.err != nil {
		return nil, g.err
	}
	g.b.NewRet(r)
	return m, nil
}

type llvmGen struct {
	m      *ir.Module
	b      *ir.Block
	params []*ir.Param
	decls  map[string]*ir.Func
	// err is the first error encountered.
	err error
}

func (g *llvmGen) constant(x float64) value.Value {
	return constant.NewFloat(types.Double, x)
}

func (g *llvmGen) param(i int) value.Value {
	return g.params[i]
}

func (g *llvmGen) neg(x value.Value) value.Value {
	return g.b.NewFNeg(x)
}

func (g *llvmGen) binary(op opcode, x, y value.Value) value.Value {
	switch op {
	case opAdd:
		return g.b.NewFAdd(x, y)
	case opMul:
		return g.b.NewFMul(x, y)
	case opDiv:
		return g.b.NewFDiv(x, y)
	case opMod:
		return g.b.NewFRem(x, y)
	case opLt:
		return g.b.NewUIToFP(g.b.NewFCmp(enum.FPredOLT, x, y), types.Double)
	case opGt:
		return g.b.NewUIToFP(g.b.NewFCmp(enum.FPredOGT, x, y), types.Double)
	case opPow:
		return g.callC("pow", x, y)
	}
	panic("kernel: not an arithmetic opcode: " + op.String())
}

func (g *llvmGen) call(f *function, args []value.Value) value.Value {
	name := f.name
	if f.extern {
		return g.callC(name, args...)
	}
	if name == "sign" {
		return g.sign(args)
	}
	if c, ok := cnames[name]; ok {
		name = c
	}
	if name != "fmax" && name != "fmin" {
		return g.callC(name, args...)
	}
	if len(args) == 0 {
		return constant.NewFloat(types.Double, math.NaN())
	}
	r := args[0]
	for _, x := range args[1:] {
		r = g.callC(name, r, x)
	}
	return r
}

// sign selects 1 for positive x, -1 for negative x, and x itself otherwise,
// which keeps NaN and signed zeros.
func (g *llvmGen) sign(args []value.Value) value.Value {
	if len(args) != 1 {
		return constant.NewFloat(types.Double, math.NaN())
	}
	x, zero := args[0], constant.NewFloat(types.Double, 0)
	pos := g.b.NewFCmp(enum.FPredOGT, x, zero)
	neg := g.b.NewFCmp(enum.FPredOLT, x, zero)
	r := g.b.NewSelect(neg, constant.NewFloat(types.Double, -1), x)
	return g.b.NewSelect(pos, constant.NewFloat(types.Double, 1), r)
}

// callC calls the declaration of name, creating it on first use.
func (g *llvmGen) callC(name string, args ...value.Value) value.Value {
	decl, ok := g.decls[name]
	if !ok {
		if name == "kernel" {
			g.fail(errors.New("kernel: cannot declare a function named kernel"))
		}
		params := make([]*ir.Param, len(args))
		for i := range params {
			params[i] = ir.NewParam("", types.Double)
		}
		decl = g.m.NewFunc(name, types.Double, params...)
		g.decls[name] = decl
	} else if len(decl.Params) != len(args) {
		g.fail(&ArityError{Name: name, Want: len(decl.Params), Got: len(args)})
		return constant.NewFloat(types.Double, math.NaN())
	}
	return g.b.NewCall(decl, args...)
}

func (g *llvmGen) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}
