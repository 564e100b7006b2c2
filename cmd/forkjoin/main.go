package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	_ "github.com/mattjoyce/forkjoin/internal/builtin"
	"github.com/mattjoyce/forkjoin/internal/config"
	"github.com/mattjoyce/forkjoin/internal/task"
)

const version = "0.1.0"

func main() {
	// Child processes run their callable here and exit.
	if task.Init() {
		return
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		if hasHelpFlag(args) {
			printRunHelp()
			os.Exit(0)
		}
		os.Exit(runRun(args))
	case "history":
		if hasHelpFlag(args) {
			printHistoryHelp()
			os.Exit(0)
		}
		os.Exit(runHistory(args))
	case "inspect":
		os.Exit(runInspect(args))
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			os.Exit(0)
		}
		os.Exit(runServe(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "callables":
		printCallables()
		os.Exit(0)
	case "version":
		fmt.Printf("forkjoin version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`forkjoin - launch tasks as child processes and collect their exit codes

Usage:
  forkjoin <command> [flags]

Commands:
  run [tasks...]    Start every configured task, wait for all, print a report
  history           List recorded runs, or one run's tasks with --run
  inspect <id>      Show one task and other launches of the same work
  serve             Serve the read-only history API
  config check      Validate configuration
  config show       Print the effective configuration
  callables         List registered callables
  version           Show version information
  help              Show this help message

Use 'forkjoin <command> --help' for command-specific flags.
`)
}

func printRunHelp() {
	fmt.Print(`Usage: forkjoin run [--config path] [name=callable:arg,arg ...]

Starts the tasks from the config file followed by any tasks given on the
command line, then waits for them in launch order. Arguments are parsed as
JSON, falling back to plain strings. Exits 0 only if every task exited 0.

Example:
  forkjoin run total=sum:1,2,3,4,5,6,7,8,9,10 exit:5
`)
}

func printHistoryHelp() {
	fmt.Print(`Usage: forkjoin history [--config path] [--run id] [--limit n] [--json]
`)
}

func printServeHelp() {
	fmt.Print(`Usage: forkjoin serve [--config path] [--listen addr]
`)
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: forkjoin config <check|show> [--config path]
`)
}

func printCallables() {
	names := task.Registered()
	sort.Strings(names)
	fmt.Println(strings.Join(names, "\n"))
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// loadConfig loads path, or the discovered config when path is empty. With
// allowMissing, a failed discovery yields the defaults.
func loadConfig(path string, allowMissing bool) (*config.Config, error) {
	if path == "" {
		discovered, err := config.Discover()
		if err != nil {
			if allowMissing {
				return config.Parse(nil)
			}
			return nil, err
		}
		path = discovered
	}
	return config.Load(path)
}
