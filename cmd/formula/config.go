package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/ethereum/go-ethereum/log"
	"github.com/zephyrtronium/formula"
)

var (
	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "[file]",
		Category:    "MISCELLANEOUS COMMANDS",
		Description: `The dumpconfig command shows the configuration after applying the config file and flags.`,
	}

	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	givenFlag = cli.StringSliceFlag{
		Name:  "given",
		Usage: "name=value variable definition (any number of times)",
	}
	fmtFlag = cli.StringFlag{
		Name:  "fmt",
		Usage: "result formatting string",
	}
	nocolorFlag = cli.BoolFlag{
		Name:  "nocolor",
		Usage: "Disable colored output",
	}
	singleFlag = cli.BoolFlag{
		Name:  "single",
		Usage: "Reject formulas with more than one outermost value",
	}
	legacyFlag = cli.BoolFlag{
		Name:  "legacy",
		Usage: "Give each of * / % and each of < > its own precedence level",
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

type outputConfig struct {
	// Format is the fmt verb for results.
	Format string
	Color  bool
	// Prec is the precision in bits for eval. Zero evaluates in float64.
	Prec uint
}

type parseConfig struct {
	SingleValue      bool
	LegacyPrecedence bool
}

type replConfig struct {
	// History is the history file. Empty means ~/.formula_history.
	History   string `toml:",omitempty"`
	CacheSize int
	Prompt    string
}

type formulaConfig struct {
	Vars   map[string]float64
	Output outputConfig
	Parse  parseConfig
	Repl   replConfig
}

var defaultConfig = formulaConfig{
	Output: outputConfig{Format: "%g", Color: true},
	Repl:   replConfig{CacheSize: 128, Prompt: "> "},
}

func loadConfig(file string, cfg *formulaConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeConfig(file, f, cfg)
}

func decodeConfig(name string, r io.Reader, cfg *formulaConfig) error {
	err := tomlSettings.NewDecoder(bufio.NewReader(r)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(name + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies flags.
func makeConfig(ctx *cli.Context) (formulaConfig, error) {
	cfg := defaultConfig
	cfg.Vars = make(map[string]float64)
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
		log.Debug("Loaded configuration", "file", file, "vars", len(cfg.Vars))
	}
	if ctx.GlobalIsSet(fmtFlag.Name) {
		cfg.Output.Format = ctx.GlobalString(fmtFlag.Name)
	}
	if ctx.GlobalBool(nocolorFlag.Name) {
		cfg.Output.Color = false
	}
	if ctx.GlobalBool(singleFlag.Name) {
		cfg.Parse.SingleValue = true
	}
	if ctx.GlobalBool(legacyFlag.Name) {
		cfg.Parse.LegacyPrecedence = true
	}
	return cfg, nil
}

// parseOptions returns the parse options the configuration selects.
func (cfg *formulaConfig) parseOptions() []formula.ParseOption {
	var opts []formula.ParseOption
	if cfg.Parse.SingleValue {
		opts = append(opts, formula.SingleValue())
	}
	if cfg.Parse.LegacyPrecedence {
		opts = append(opts, formula.LegacyPrecedence())
	}
	if verbosity >= log.LvlTrace {
		opts = append(opts, formula.Logger(log.New("module", "parse")))
	}
	return opts
}

// symbols creates a symbol table from the configured variables and then
// the given definitions, each of which may refer to earlier ones.
func (cfg *formulaConfig) symbols(given []string) (formula.Symbols, error) {
	syms := make(formula.Symbols, len(cfg.Vars)+len(given))
	for k, v := range cfg.Vars {
		syms[k] = formula.Var(v)
	}
	opts := cfg.parseOptions()
	for _, s := range given {
		d := strings.SplitN(s, "=", 2)
		if len(d) != 2 {
			return nil, errors.Errorf(`variable definitions must be "name=value", not %q`, s)
		}
		name, text := strings.TrimSpace(d[0]), strings.TrimSpace(d[1])
		root, err := formula.Parse(text, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "setting %s", name)
		}
		v := formula.Compile(root)(syms)
		if math.IsNaN(v) {
			log.Warn("Variable is NaN", "name", name, "value", text)
		}
		syms[name] = formula.Var(v)
	}
	return syms, nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	_, err = dump.Write(out)
	return err
}
