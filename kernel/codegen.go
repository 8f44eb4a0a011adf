package kernel

import (
	"math"

	"github.com/pkg/errors"
	"github.com/zephyrtronium/formula"
)

// generator emits bytecode for a formula tree.
type generator struct {
	lib     *formula.Library
	foreign map[string]formula.Func

	code     []byte
	consts   []float64
	constIdx map[uint64]int
	params   []string
	paramIdx map[string]int
	funcs    []function
	funcIdx  map[string]int
	imports  []string
	imported map[string]bool
}

func newGenerator(params []string) *generator {
	g := generator{
		lib:      formula.Stdlib(),
		constIdx: make(map[uint64]int),
		params:   params,
		paramIdx: make(map[string]int, len(params)),
		funcIdx:  make(map[string]int),
		imported: make(map[string]bool),
	}
	for i, name := range params {
		g.paramIdx[name] = i
	}
	return &g
}

func (g *generator) kernel() *Kernel {
	g.code = encode(g.code, opReturn, 0, 0)
	return &Kernel{
		code:    g.code,
		consts:  g.consts,
		params:  g.params,
		funcs:   g.funcs,
		imports: g.imports,
	}
}

func (g *generator) emit(op opcode, n, imm int) error {
	if n > math.MaxUint8 {
		return errors.Errorf("kernel: call with %d arguments exceeds %d", n, math.MaxUint8)
	}
	if imm > math.MaxUint16 {
		return errors.Errorf("kernel: %s operand %d exceeds %d", op, imm, math.MaxUint16)
	}
	g.code = encode(g.code, op, uint8(n), uint16(imm))
	return nil
}

func (g *generator) constant(x float64) error {
	bits := math.Float64bits(x)
	i, ok := g.constIdx[bits]
	if !ok {
		i = len(g.consts)
		g.consts = append(g.consts, x)
		g.constIdx[bits] = i
	}
	return g.emit(opConst, 0, i)
}

func (g *generator) use(name string) {
	if !g.imported[name] {
		g.imported[name] = true
		g.imports = append(g.imports, name)
	}
}

func (g *generator) function(name string, f formula.Func, extern bool) int {
	if i, ok := g.funcIdx[name]; ok {
		return i
	}
	i := len(g.funcs)
	g.funcs = append(g.funcs, function{name: name, f: f, extern: extern})
	g.funcIdx[name] = i
	if !extern {
		g.use(name)
	}
	return i
}

func (g *generator) gen(n *formula.Node) error {
	switch n.Kind() {
	case formula.LiteralNode:
		return g.constant(n.Value())
	case formula.NameNode:
		i, ok := g.paramIdx[n.Key()]
		if !ok {
			panic("kernel: name " + n.Key() + " is not a parameter")
		}
		return g.emit(opParam, 0, i)
	case formula.ExprNode:
		if n.Len() == 0 {
			return g.constant(math.NaN())
		}
		return g.gen(n.Child(0))
	case formula.FuncNode:
		return g.call(n)
	default:
		panic("kernel: invalid node kind " + n.Kind().String())
	}
}

// call emits a FuncNode, resolving its key in the same order as
// formula.Compile.
func (g *generator) call(n *formula.Node) error {
	key := n.Key()
	if formula.Operator(key) != nil {
		return g.operator(n)
	}
	if v, ok := g.lib.Const(key); ok {
		return g.constant(v)
	}
	var i int
	if f := g.lib.Func(key); f != nil {
		i = g.function(key, f, false)
	} else if f := g.foreign[key]; f != nil {
		i = g.function(key, f, true)
	} else {
		return &LinkError{Name: key}
	}
	if err := g.args(n, n.Len()); err != nil {
		return err
	}
	return g.emit(opCall, n.Len(), i)
}

func (g *generator) operator(n *formula.Node) error {
	if n.Len() == 0 {
		return g.constant(math.NaN())
	}
	switch key := n.Key(); key {
	case formula.KeyNeg:
		if err := g.gen(n.Child(0)); err != nil {
			return err
		}
		return g.emit(opNeg, 0, 0)
	case formula.KeyPow:
		// With all operands pushed, each POW combines the top two, which
		// folds from the right.
		if err := g.args(n, n.Len()); err != nil {
			return err
		}
		if n.Len() > 1 {
			g.use("pow")
		}
		for i := 1; i < n.Len(); i++ {
			if err := g.emit(opPow, 0, 0); err != nil {
				return err
			}
		}
		return nil
	default:
		op, ok := binops[key]
		if !ok {
			panic("kernel: no opcode for operator " + key)
		}
		if err := g.gen(n.Child(0)); err != nil {
			return err
		}
		for i := 1; i < n.Len(); i++ {
			if err := g.gen(n.Child(i)); err != nil {
				return err
			}
			if err := g.emit(op, 0, 0); err != nil {
				return err
			}
		}
		return nil
	}
}

// args emits the first k children of n in order.
func (g *generator) args(n *formula.Node, k int) error {
	for i := 0; i < k; i++ {
		if err := g.gen(n.Child(i)); err != nil {
			return err
		}
	}
	return nil
}
