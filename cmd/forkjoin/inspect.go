package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/forkjoin/internal/inspect"
	"github.com/mattjoyce/forkjoin/internal/journal"
	"github.com/mattjoyce/forkjoin/internal/storage"
)

func runInspect(args []string) int {
	// Flags may follow the task id: 'forkjoin inspect <id> --json'.
	var configPath string
	var jsonOut bool

	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file")
	fs.BoolVar(&jsonOut, "json", false, "Output report in JSON")

	var taskID string
	var remainingArgs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || arg == "-config":
			remainingArgs = append(remainingArgs, arg)
			if i+1 < len(args) {
				i++
				remainingArgs = append(remainingArgs, args[i])
			}
		case !strings.HasPrefix(arg, "-") && taskID == "":
			taskID = arg
		default:
			remainingArgs = append(remainingArgs, arg)
		}
	}

	if err := fs.Parse(remainingArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if taskID == "" {
		fmt.Fprintf(os.Stderr, "Usage: forkjoin inspect <task_id> [--config PATH] [--json]\n")
		return 1
	}

	cfg, err := loadConfig(configPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer db.Close()
	j := journal.New(db)

	var report string
	if jsonOut {
		report, err = inspect.BuildJSONReport(ctx, j, taskID)
	} else {
		report, err = inspect.BuildReport(ctx, j, taskID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		return 1
	}

	fmt.Print(report)
	if jsonOut {
		fmt.Println()
	}
	return 0
}
