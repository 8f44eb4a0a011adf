package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/zephyrtronium/formula"
)

var replCommand = cli.Command{
	Action:   replAction,
	Name:     "repl",
	Usage:    "Start an interactive session",
	Category: "INTERACTIVE COMMANDS",
	Description: `The repl command reads formulas interactively and prints their values.
Lines starting with a colon are commands; :help lists them.`,
}

const replHelp = `:set name formula   bind name to the value of formula
:vars               list variables
:tree formula       print the parse tree
:values formula     print the value of every subexpression
:kernel formula     print the compiled kernel
:quit               exit
`

// compiled is a cached parse and compilation of a formula.
type compiled struct {
	root *formula.Node
	eval formula.Evaluator
}

type repl struct {
	*env
	cache   *lru.ARCCache
	result  func(a ...interface{}) string
	failure func(a ...interface{}) string
}

func replAction(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	cache, err := lru.NewARC(e.cfg.Repl.CacheSize)
	if err != nil {
		return errors.Wrap(err, "creating compile cache")
	}
	fd := os.Stdout.Fd()
	color.NoColor = !e.cfg.Output.Color || !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
	r := &repl{
		env:     e,
		cache:   cache,
		result:  color.New(color.FgCyan).SprintFunc(),
		failure: color.New(color.FgRed).SprintFunc(),
	}

	histPath := e.cfg.Repl.History
	if histPath == "" {
		home, _ := os.UserHomeDir()
		histPath = filepath.Join(home, ".formula_history")
	}
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		} else {
			log.Warn("Failed to save history", "file", histPath, "err", err)
		}
	}()

	for {
		line, err := ln.Prompt(e.cfg.Repl.Prompt)
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Fprintln(e.out)
				return nil
			}
			return errors.Wrap(err, "reading input")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if r.line(line) {
			return nil
		}
	}
}

// line handles one line of input. It returns true when the session should
// end.
func (r *repl) line(line string) (quit bool) {
	cmd, arg := line, ""
	if strings.HasPrefix(strings.TrimSpace(line), ":") {
		cmd = strings.TrimSpace(line)
		if i := strings.IndexFunc(cmd, func(c rune) bool { return c == ' ' || c == '\t' }); i >= 0 {
			cmd, arg = cmd[:i], strings.TrimSpace(cmd[i:])
		}
	}
	var err error
	switch cmd {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprint(r.out, replHelp)
	case ":set":
		err = r.set(arg)
	case ":vars":
		r.vars()
	case ":tree":
		err = r.with(arg, func(c *compiled) error {
			fmt.Fprintln(r.out, c.root.Sexp())
			return nil
		})
	case ":values":
		err = r.with(arg, func(c *compiled) error {
			r.values(r.out, c.root)
			return nil
		})
	case ":kernel":
		err = r.with(arg, func(c *compiled) error {
			return r.kernelSummary(r.out, c.root)
		})
	default:
		if strings.HasPrefix(cmd, ":") {
			err = errors.Errorf("unknown command %s; type :help for a list", cmd)
			break
		}
		err = r.with(line, func(c *compiled) error {
			fmt.Fprintln(r.out, r.result(r.format(c.eval(r.syms))))
			return nil
		})
	}
	if err != nil {
		fmt.Fprintln(r.out, r.failure(err.Error()))
	}
	return false
}

// with calls f with the compiled form of text, compiling it if it is not
// in the cache.
func (r *repl) with(text string, f func(*compiled) error) error {
	if v, ok := r.cache.Get(text); ok {
		return f(v.(*compiled))
	}
	root, err := r.parse(text)
	if err != nil {
		return err
	}
	c := &compiled{root: root, eval: formula.Compile(root)}
	r.cache.Add(text, c)
	return f(c)
}

func (r *repl) set(arg string) error {
	i := strings.IndexAny(arg, " \t=")
	if i < 0 {
		return errors.New("usage: :set name formula")
	}
	name, text := arg[:i], strings.TrimLeft(arg[i:], " \t=")
	return r.with(text, func(c *compiled) error {
		v := c.eval(r.syms)
		r.syms[name] = formula.Var(v)
		fmt.Fprintf(r.out, "%s = %s\n", name, r.result(r.format(v)))
		return nil
	})
}

func (r *repl) vars() {
	names := make([]string, 0, len(r.syms))
	for k := range r.syms {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		switch b := r.syms[k].(type) {
		case formula.Var:
			fmt.Fprintf(r.out, "%s = %s\n", k, r.result(r.format(float64(b))))
		case formula.Func:
			fmt.Fprintf(r.out, "%s(...)\n", k)
		}
	}
}
