// Command lumen is the interpreter driver: it wires configuration,
// logging, and the VM together, then either runs a script file or drops
// into a REPL. Deliberately thin — the language lives in pkg/, not here.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/lumen-lang/lumen/internal/config"
	"github.com/lumen-lang/lumen/pkg/vm"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = pflag.StringP("config", "c", "", "path to a feature-flag YAML file")
		trace      = pflag.Bool("trace", false, "enable execution tracing")
		verbose    = pflag.BoolP("verbose", "v", false, "enable host-level debug logging")
	)
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.WarnLevel)
	}

	features := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("lumen: failed to load config")
		}
		features = loaded
	}
	if *trace {
		features.TraceExecution = true
	}

	machine := vm.New(features).WithLogger(logger)
	defer machine.Close()

	args := pflag.Args()
	switch len(args) {
	case 0:
		return repl(machine)
	case 1:
		return runFile(machine, args[0])
	default:
		fmt.Fprintln(os.Stderr, "Usage: lumen [path]")
		return 64
	}
}

func runFile(machine *vm.VM, path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumen: could not read file %q: %v\n", path, err)
		return 74
	}

	switch machine.Interpret(string(source)) {
	case vm.InterpretCompileError:
		return 65
	case vm.InterpretRuntimeError:
		return 70
	default:
		return 0
	}
}

func repl(machine *vm.VM) int {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return 0
		}
		machine.Interpret(scanner.Text())
	}
}
