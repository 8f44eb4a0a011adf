package main

import (
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/urfave/cli.v1"
)

var verbosityFlag = cli.IntFlag{
	Name:  "verbosity",
	Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
	Value: int(log.LvlWarn),
}

// verbosity is the log level selected by the verbosity flag.
var verbosity = log.LvlWarn

// stderrTerminal reports whether stderr is an interactive terminal.
func stderrTerminal() bool {
	fd := os.Stderr.Fd()
	return (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && os.Getenv("TERM") != "dumb"
}

// setupLogging installs the root log handler. It runs before any command.
func setupLogging(ctx *cli.Context) error {
	usecolor := stderrTerminal() && !ctx.GlobalBool(nocolorFlag.Name)
	output := io.Writer(os.Stderr)
	if usecolor {
		output = colorable.NewColorableStderr()
	}
	verbosity = log.Lvl(ctx.GlobalInt(verbosityFlag.Name))
	log.Root().SetHandler(log.LvlFilterHandler(verbosity, log.StreamHandler(output, log.TerminalFormat(usecolor))))
	return nil
}
