package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/forkjoin/internal/config"
	"github.com/mattjoyce/forkjoin/internal/dispatch"
	"github.com/mattjoyce/forkjoin/internal/journal"
	"github.com/mattjoyce/forkjoin/internal/lock"
	"github.com/mattjoyce/forkjoin/internal/log"
	"github.com/mattjoyce/forkjoin/internal/storage"
	"github.com/mattjoyce/forkjoin/internal/task"
)

// plannedTask is a resolved task ready to start.
type plannedTask struct {
	name     string
	callable task.Callable
	args     []any
}

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	noJournal := fs.Bool("no-journal", false, "Do not record the run in the journal")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath, fs.NArg() > 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	adhoc, err := parseTaskArgs(fs.Args(), len(cfg.Tasks))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid task: %v\n", err)
		return 1
	}
	cfg.Tasks = append(cfg.Tasks, adhoc...)

	plan, err := resolveTasks(cfg.Tasks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if len(plan) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks to run")
		return 1
	}

	log.SetupWriter(cfg.Service.LogLevel, os.Stderr)
	logger := log.WithComponent("main")

	dispLock, err := lock.Acquire(cfg.Lock.Path)
	if err != nil {
		logger.Error("failed to acquire dispatcher lock (another run may be active)", "path", cfg.Lock.Path, "error", err)
		return 1
	}
	defer dispLock.Release()

	ctx := context.Background()
	opts := []dispatch.Option{dispatch.WithLogger(log.WithComponent("dispatch"))}
	if !*noJournal {
		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.State.Path, "error", err)
			return 1
		}
		defer db.Close()
		opts = append(opts, dispatch.WithRecorder(journal.New(db)))
	}

	m := dispatch.New(opts...)
	logger.Info("run starting", "run_id", m.RunID(), "tasks", len(plan))

	names := make(map[string]string, len(plan))
	code := 0
	for _, p := range plan {
		t, err := m.Start(ctx, p.callable, p.args...)
		if err != nil {
			// Tasks already launched are still collected below.
			logger.Error("failed to start task", "name", p.name, "error", err)
			code = 1
			break
		}
		names[t.ID()] = p.name
	}

	if err := m.WaitForAll(ctx); err != nil {
		logger.Error("failed to collect tasks", "error", err)
		code = 1
	}

	fmt.Print(renderReport(m.RunID(), m.Tasks(), names))

	if len(m.Failed()) > 0 {
		code = 1
	}
	return code
}

// resolveTasks maps configured callables onto registered handles.
func resolveTasks(confs []config.TaskConf) ([]plannedTask, error) {
	plan := make([]plannedTask, 0, len(confs))
	seen := make(map[string]bool, len(confs))
	for _, tc := range confs {
		if seen[tc.Name] {
			return nil, fmt.Errorf("duplicate task name %q", tc.Name)
		}
		seen[tc.Name] = true

		c, ok := task.Lookup(tc.Callable)
		if !ok {
			return nil, fmt.Errorf("task %q: unknown callable %q (see 'forkjoin callables')", tc.Name, tc.Callable)
		}
		plan = append(plan, plannedTask{name: tc.Name, callable: c, args: tc.Args})
	}
	return plan, nil
}

// parseTaskArgs parses command-line tasks of the form
// [name=]callable[:arg,arg...]. Each argument is decoded as JSON when
// possible and kept as a string otherwise. Unnamed tasks are numbered after
// the offset configured tasks.
func parseTaskArgs(specs []string, offset int) ([]config.TaskConf, error) {
	out := make([]config.TaskConf, 0, len(specs))
	for i, s := range specs {
		var tc config.TaskConf

		rest := s
		if name, after, ok := strings.Cut(s, "="); ok && !strings.Contains(name, ":") {
			tc.Name = name
			rest = after
		}

		callable, rawArgs, hasArgs := strings.Cut(rest, ":")
		if callable == "" {
			return nil, fmt.Errorf("%q: callable is required", s)
		}
		tc.Callable = callable
		if tc.Name == "" {
			tc.Name = fmt.Sprintf("%s-%d", callable, offset+i+1)
		}

		if hasArgs && rawArgs != "" {
			for _, raw := range strings.Split(rawArgs, ",") {
				tc.Args = append(tc.Args, parseArg(raw))
			}
		}
		out = append(out, tc)
	}
	return out, nil
}

func parseArg(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
