package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/zephyrtronium/formula"
)

var (
	echoCommand = cli.Command{
		Action:    echoAction,
		Name:      "echo",
		Usage:     "Print formulas as parsed",
		ArgsUsage: "[formula ...]",
		Flags:     []cli.Flag{treeFlag},
		Category:  "INSPECTION COMMANDS",
		Description: `The echo command parses each formula and prints it back from the parse tree,
which reproduces it exactly. With --tree, it prints the structure instead.`,
	}
	valuesCommand = cli.Command{
		Action:    valuesAction,
		Name:      "values",
		Usage:     "Print the value of every subexpression",
		ArgsUsage: "[formula ...]",
		Category:  "INSPECTION COMMANDS",
	}
	kernelCommand = cli.Command{
		Action:    kernelAction,
		Name:      "kernel",
		Usage:     "Print compiled numeric kernels",
		ArgsUsage: "[formula ...]",
		Flags:     []cli.Flag{sourceFlag, llvmFlag},
		Category:  "INSPECTION COMMANDS",
		Description: `The kernel command compiles each formula to a numeric kernel and prints its
parameters, imports, externs, and bytecode, or with --source a Go rendering,
or with --llvm an LLVM IR module.`,
	}

	treeFlag = cli.BoolFlag{
		Name:  "tree",
		Usage: "Print the parse tree as an S-expression",
	}
	sourceFlag = cli.BoolFlag{
		Name:  "source",
		Usage: "Print the kernel as Go source",
	}
	llvmFlag = cli.BoolFlag{
		Name:  "llvm",
		Usage: "Print the kernel as LLVM IR",
	}
)

func echoAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	tree := ctx.Bool(treeFlag.Name)
	return forInputs(ctx, func(text string) error {
		root, err := e.parse(text)
		if err != nil {
			return err
		}
		if tree {
			fmt.Fprintln(e.out, root.Sexp())
			return nil
		}
		fmt.Fprintln(e.out, formula.Echo(root))
		return nil
	})
}

func valuesAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	return forInputs(ctx, func(text string) error {
		root, err := e.parse(text)
		if err != nil {
			return err
		}
		e.values(e.out, root)
		return nil
	})
}

// values writes a table of the value of each node of root.
func (e *env) values(w io.Writer, root *formula.Node) {
	vals := formula.Values(root)(e.syms)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Kind", "Key", "Text", "Value"})
	table.SetAutoWrapText(false)
	root.Walk(func(n *formula.Node) bool {
		table.Append([]string{
			strconv.Itoa(n.ID()),
			strings.TrimSuffix(n.Kind().String(), "Node"),
			n.Key(),
			strconv.Quote(formula.Echo(n)),
			e.format(vals[n.ID()]),
		})
		return true
	})
	table.Render()
}

func kernelAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	source, llvm := ctx.Bool(sourceFlag.Name), ctx.Bool(llvmFlag.Name)
	return forInputs(ctx, func(text string) error {
		root, err := e.parse(text)
		if err != nil {
			return err
		}
		switch {
		case source:
			return e.kernelSource(e.out, root)
		case llvm:
			return e.kernelLLVM(e.out, root)
		default:
			return e.kernelSummary(e.out, root)
		}
	})
}

func (e *env) kernelSummary(w io.Writer, root *formula.Node) error {
	k, err := e.kernel(root)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Params", "Imports", "Externs"})
	table.Append([]string{
		strings.Join(k.Params(), " "),
		strings.Join(k.Imports(), " "),
		strings.Join(k.Externs(), " "),
	})
	table.Render()
	_, err = io.WriteString(w, k.String())
	return err
}

func (e *env) kernelSource(w io.Writer, root *formula.Node) error {
	k, err := e.kernel(root)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, k.Source())
	return err
}

func (e *env) kernelLLVM(w io.Writer, root *formula.Node) error {
	k, err := e.kernel(root)
	if err != nil {
		return err
	}
	m, err := k.LLVM()
	if err != nil {
		return errors.Wrap(err, "emitting LLVM IR")
	}
	_, err = io.WriteString(w, m.String())
	return err
}
