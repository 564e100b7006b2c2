package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/forkjoin/internal/journal"
	"github.com/mattjoyce/forkjoin/internal/storage"
)

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	runID := fs.String("run", "", "Show the tasks of one run")
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if _, err := os.Stat(cfg.State.Path); err != nil {
		fmt.Fprintf(os.Stderr, "No journal at %s\n", cfg.State.Path)
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

	if *runID == "" {
		runs, err := j.ListRuns(ctx, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
			return 1
		}
		if *jsonOut {
			return printJSON(runs)
		}
		fmt.Print(renderRuns(runs))
		return 0
	}

	if _, err := j.GetRun(ctx, *runID); err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Run not found: %s\n", *runID)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load run: %v\n", err)
		}
		return 1
	}
	recs, err := j.ListTasks(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list tasks: %v\n", err)
		return 1
	}
	if *jsonOut {
		return printJSON(recs)
	}
	fmt.Print(renderTaskRecords(recs))
	return 0
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
		return 1
	}
	return 0
}
