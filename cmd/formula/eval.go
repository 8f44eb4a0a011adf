package main

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/zephyrtronium/formula"
	"github.com/zephyrtronium/formula/kernel"
)

var (
	evalCommand = cli.Command{
		Action:    evalAction,
		Name:      "eval",
		Usage:     "Evaluate formulas",
		ArgsUsage: "[formula ...]",
		Flags:     []cli.Flag{kernelFlag, precFlag},
		Description: `Each argument is evaluated and its result printed. With no arguments,
each line of standard input is a formula. With --prec, formulas are evaluated
to the given number of bits of precision, and errors such as undefined
variables are reported instead of producing NaN.`,
	}

	kernelFlag = cli.BoolFlag{
		Name:  "kernel",
		Usage: "Evaluate with compiled numeric kernels",
	}
	precFlag = cli.UintFlag{
		Name:  "prec",
		Usage: "Evaluate to this many bits of precision (0 for float64)",
	}
)

// env is the state shared by the commands.
type env struct {
	cfg   formulaConfig
	popts []formula.ParseOption
	syms  formula.Symbols
	out   io.Writer
}

func newEnv(ctx *cli.Context) (*env, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, err
	}
	syms, err := cfg.symbols(ctx.GlobalStringSlice(givenFlag.Name))
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, popts: cfg.parseOptions(), syms: syms, out: os.Stdout}, nil
}

func (e *env) parse(text string) (*formula.Node, error) {
	root, err := formula.Parse(text, e.popts...)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q", text)
	}
	return root, nil
}

// foreign returns the functions of the symbol table for kernel linking.
func (e *env) foreign() map[string]formula.Func {
	m := make(map[string]formula.Func)
	for k, b := range e.syms {
		if f, ok := b.(formula.Func); ok {
			m[k] = f
		}
	}
	return m
}

func (e *env) kernel(root *formula.Node) (*kernel.Kernel, error) {
	k, err := kernel.Compile(root, kernel.Foreign(e.foreign()))
	if err != nil {
		return nil, errors.Wrap(err, "compiling kernel")
	}
	return k, nil
}

func (e *env) format(v float64) string {
	return fmt.Sprintf(e.cfg.Output.Format, v)
}

// eval evaluates one formula.
func (e *env) eval(text string, useKernel bool) (float64, error) {
	root, err := e.parse(text)
	if err != nil {
		return 0, err
	}
	if !useKernel {
		return formula.Compile(root)(e.syms), nil
	}
	k, err := e.kernel(root)
	if err != nil {
		return 0, err
	}
	log.Debug("Compiled kernel", "params", k.Params(), "imports", k.Imports(), "externs", k.Externs())
	return k.Eval(e.syms), nil
}

// precise evaluates one formula to the configured precision.
func (e *env) precise(text string) (*big.Float, error) {
	root, err := e.parse(text)
	if err != nil {
		return nil, err
	}
	ctx := formula.NewContext(formula.Prec(e.cfg.Output.Prec), formula.Bind(e.syms))
	r := ctx.Eval(root)
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "evaluating %q", text)
	}
	return r, nil
}

func evalAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	if ctx.IsSet(precFlag.Name) {
		e.cfg.Output.Prec = ctx.Uint(precFlag.Name)
	}
	if e.cfg.Output.Prec > 0 {
		return forInputs(ctx, func(text string) error {
			r, err := e.precise(text)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, e.cfg.Output.Format+"\n", r)
			return nil
		})
	}
	useKernel := ctx.Bool(kernelFlag.Name) || ctx.GlobalBool(kernelFlag.Name)
	return forInputs(ctx, func(text string) error {
		v, err := e.eval(text, useKernel)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, e.format(v))
		return nil
	})
}

// forInputs calls f with each argument, or with each non-blank line of
// standard input if there are no arguments.
func forInputs(ctx *cli.Context, f func(string) error) error {
	if ctx.NArg() > 0 {
		for _, arg := range ctx.Args() {
			if err := f(arg); err != nil {
				return err
			}
		}
		return nil
	}
	return forLines(os.Stdin, f)
}

func forLines(r io.Reader, f func(string) error) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := f(line); err != nil {
			return err
		}
	}
	return errors.Wrap(sc.Err(), "reading input")
}
