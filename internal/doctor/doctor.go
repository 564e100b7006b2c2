// Package doctor validates forkjoin configuration against the callables
// registered in the running binary.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/forkjoin/internal/config"
	"github.com/mattjoyce/forkjoin/internal/storage"
	"github.com/mattjoyce/forkjoin/internal/task"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// LookupFunc resolves a callable name, normally task.Lookup.
type LookupFunc func(name string) (task.Callable, bool)

// Doctor validates configuration against registered callables.
type Doctor struct {
	cfg        *config.Config
	lookup     LookupFunc
	fsValidate func(path, setting string) error
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config, lookup LookupFunc) *Doctor {
	return &Doctor{cfg: cfg, lookup: lookup, fsValidate: storage.ValidateLocalFilesystem}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateStatePaths(r)
	d.validateTasks(r)
	d.validateAPIConfig(r)
	d.warnNoTasks(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateStatePaths checks the journal and lock locations.
func (d *Doctor) validateStatePaths(r *Result) {
	if d.cfg.State.Path == "" {
		d.addError(r, "state", "state.path", "state.path is required")
	}
	if d.cfg.Lock.Path == "" {
		d.addError(r, "state", "lock.path", "lock.path is required")
	}
	if d.cfg.State.Path != "" && filepath.Clean(d.cfg.State.Path) == filepath.Clean(d.cfg.Lock.Path) {
		d.addError(r, "state", "lock.path", "lock.path must differ from state.path")
	}

	for _, p := range []struct{ field, path string }{
		{"state.path", d.cfg.State.Path},
		{"lock.path", d.cfg.Lock.Path},
	} {
		if p.path == "" {
			continue
		}
		if err := d.fsValidate(p.path, p.field); err != nil {
			d.addError(r, "storage", p.field, err.Error())
		}
	}
}

// validateTasks checks that every task names a registered callable and that
// its arguments can be handed to a child process.
func (d *Doctor) validateTasks(r *Result) {
	for i, tc := range d.cfg.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if tc.Callable == "" {
			d.addError(r, "tasks", field+".callable", "callable is required")
			continue
		}
		if _, ok := d.lookup(tc.Callable); !ok {
			d.addError(r, "tasks", field+".callable",
				fmt.Sprintf("task %q: unknown callable %q", tc.Name, tc.Callable))
		}
		for j, arg := range tc.Args {
			if _, err := json.Marshal(arg); err != nil {
				d.addError(r, "tasks", fmt.Sprintf("%s.args[%d]", field, j),
					fmt.Sprintf("argument is not JSON-encodable: %v", err))
			}
		}
	}
}

// validateAPIConfig checks the history API listen address.
func (d *Doctor) validateAPIConfig(r *Result) {
	if d.cfg.API.Listen == "" {
		return
	}
	host, _, err := net.SplitHostPort(d.cfg.API.Listen)
	if err != nil {
		d.addError(r, "api", "api.listen", fmt.Sprintf("invalid listen address %q: %v", d.cfg.API.Listen, err))
		return
	}
	if !isLoopback(host) && len(d.cfg.API.Tokens) == 0 {
		d.addWarning(r, "api", "api.listen",
			fmt.Sprintf("history API listens on %q without authentication", d.cfg.API.Listen))
	}
}

func (d *Doctor) warnNoTasks(r *Result) {
	if len(d.cfg.Tasks) == 0 {
		d.addWarning(r, "tasks", "tasks", "no tasks configured; `forkjoin run` needs tasks on the command line")
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
