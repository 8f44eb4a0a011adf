// Command formula evaluates and inspects arithmetic formulas.
package main

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/urfave/cli.v1"
)

var app = cli.NewApp()

func init() {
	app.Name = "formula"
	app.Usage = "evaluate and inspect arithmetic formulas"
	app.Version = "0.1.0"
	app.ArgsUsage = "[formula ...]"
	app.Flags = []cli.Flag{
		configFileFlag,
		verbosityFlag,
		givenFlag,
		fmtFlag,
		nocolorFlag,
		singleFlag,
		legacyFlag,
		kernelFlag,
	}
	app.Commands = []cli.Command{
		evalCommand,
		echoCommand,
		valuesCommand,
		kernelCommand,
		replCommand,
		dumpConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	app.Before = setupLogging
	app.Action = evalAction
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
