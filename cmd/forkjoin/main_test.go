package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"golang.org/x/sys/unix"

	"github.com/mattjoyce/forkjoin/internal/config"
	"github.com/mattjoyce/forkjoin/internal/journal"
	"github.com/mattjoyce/forkjoin/internal/task"
)

var _ = task.MustRegister("cmd-test-kill-self", func(task.Args) (int, error) {
	_ = unix.Kill(os.Getpid(), unix.SIGKILL)
	time.Sleep(time.Minute)
	return 0, nil
})

func TestMain(m *testing.M) {
	if task.Init() {
		return
	}
	os.Exit(m.Run())
}

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	outCh := make(chan []byte, 1)
	errCh := make(chan []byte, 1)
	go func() { b, _ := io.ReadAll(stdoutR); outCh <- b }()
	go func() { b, _ := io.ReadAll(stderrR); errCh <- b }()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes := <-outCh
	stderrBytes := <-errCh

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeConfig(t *testing.T, body string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	statePath := filepath.Join(dir, "state", "journal.db")
	configPath := filepath.Join(dir, "forkjoin.yaml")
	content := "state:\n  path: " + statePath + "\n" + body
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath, statePath
}

var runIDPattern = regexp.MustCompile(`forkjoin run ([0-9a-f-]{36})`)

func TestRunReportsEveryTaskAndFailsOnNonZero(t *testing.T) {
	configPath, _ := writeConfig(t, `
tasks:
  - name: total
    callable: sum
    args: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10]
  - name: five
    callable: exit
    args: [5]
`)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runRun([]string{"--config", configPath, "killed=cmd-test-kill-self"})
	})
	if code != 1 {
		t.Fatalf("runRun() code = %d, want 1; stderr: %s", code, stderr)
	}

	for _, want := range []string{"total", "exited(55)", "five", "exited(5)", "killed", "signaled(SIGKILL)", "0 ok, 3 failed"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("report missing %q:\n%s", want, stdout)
		}
	}

	m := runIDPattern.FindStringSubmatch(stdout)
	if m == nil {
		t.Fatalf("report missing run id:\n%s", stdout)
	}
	runID := m[1]

	code, stdout, stderr = captureOutputWithExitCode(t, func() int {
		return runHistory([]string{"--config", configPath, "--run", runID, "--json"})
	})
	if code != 0 {
		t.Fatalf("runHistory() code = %d, stderr: %s", code, stderr)
	}

	var recs []journal.TaskRecord
	if err := json.Unmarshal([]byte(stdout), &recs); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, stdout)
	}
	if len(recs) != 3 {
		t.Fatalf("history tasks = %d, want 3", len(recs))
	}
	wantCodes := []int{55, 5, 1}
	for i, r := range recs {
		if r.ExitCode == nil || *r.ExitCode != wantCodes[i] {
			t.Fatalf("task %d exit code = %v, want %d", i, r.ExitCode, wantCodes[i])
		}
	}

	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runHistory([]string{"--config", configPath})
	})
	if code != 0 || !strings.Contains(stdout, runID) {
		t.Fatalf("runHistory() list code = %d, output:\n%s", code, stdout)
	}

	code, stdout, stderr = captureOutputWithExitCode(t, func() int {
		return runInspect([]string{recs[1].ID, "--config", configPath})
	})
	if code != 0 {
		t.Fatalf("runInspect() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Status      : exited(5)") {
		t.Fatalf("inspect output unexpected:\n%s", stdout)
	}
}

func TestRunSucceedsWhenAllTasksExitZero(t *testing.T) {
	configPath, statePath := writeConfig(t, "")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runRun([]string{"--config", configPath, "exit:0", "sleep:\"5ms\""})
	})
	if code != 0 {
		t.Fatalf("runRun() code = %d, stderr: %s\n%s", code, stderr, stdout)
	}
	if !strings.Contains(stdout, "2 ok, 0 failed") {
		t.Fatalf("unexpected summary:\n%s", stdout)
	}

	lockPath := filepath.Join(filepath.Dir(statePath), "forkjoin.lock")
	if _, err := os.Stat(lockPath); err != nil {
		t.Fatalf("lock file not created: %v", err)
	}
}

func TestRunNoJournal(t *testing.T) {
	configPath, statePath := writeConfig(t, "")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runRun([]string{"--config", configPath, "--no-journal", "exit:0"})
	})
	if code != 0 {
		t.Fatalf("runRun() code = %d, stderr: %s", code, stderr)
	}
	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Fatalf("journal should not exist, stat err = %v", err)
	}
}

func TestRunKeepsChildLogsOffStdout(t *testing.T) {
	configPath, _ := writeConfig(t, "")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runRun([]string{"--config", configPath, "--no-journal",
			"a=fail:oops", "b=sum:1,2,3", "c=exit:300"})
	})
	if code == 0 {
		t.Fatalf("runRun() code = 0, want non-zero")
	}
	if !strings.HasPrefix(stdout, "forkjoin run ") {
		t.Fatalf("stdout should start with the report:\n%s", stdout)
	}
	for _, unwanted := range []string{`"level"`, `"msg"`, "task failed"} {
		if strings.Contains(stdout, unwanted) {
			t.Fatalf("stdout contains log output %q:\n%s", unwanted, stdout)
		}
	}
	if !strings.Contains(stderr, "task failed") {
		t.Fatalf("stderr missing child log, got:\n%s", stderr)
	}
}

func TestRunRejectsUnknownCallable(t *testing.T) {
	configPath, _ := writeConfig(t, "")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runRun([]string{"--config", configPath, "nope:1"})
	})
	if code != 1 {
		t.Fatalf("runRun() code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "unknown callable") {
		t.Fatalf("stderr missing unknown callable: %s", stderr)
	}
}

func TestRunWithoutTasks(t *testing.T) {
	configPath, _ := writeConfig(t, "")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runRun([]string{"--config", configPath})
	})
	if code != 1 || !strings.Contains(stderr, "No tasks") {
		t.Fatalf("runRun() code = %d, stderr: %s", code, stderr)
	}
}

func TestParseTaskArgs(t *testing.T) {
	got, err := parseTaskArgs([]string{"total=sum:1,2,3", "exit:5", "sleep:\"1s\"", "shell:echo hi", "exit"}, 2)
	if err != nil {
		t.Fatalf("parseTaskArgs() error = %v", err)
	}

	want := []config.TaskConf{
		{Name: "total", Callable: "sum", Args: []any{float64(1), float64(2), float64(3)}},
		{Name: "exit-4", Callable: "exit", Args: []any{float64(5)}},
		{Name: "sleep-5", Callable: "sleep", Args: []any{"1s"}},
		{Name: "shell-6", Callable: "shell", Args: []any{"echo hi"}},
		{Name: "exit-7", Callable: "exit"},
	}
	if len(got) != len(want) {
		t.Fatalf("parseTaskArgs() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i].Name || got[i].Callable != want[i].Callable {
			t.Fatalf("task %d = %+v, want %+v", i, got[i], want[i])
		}
		if len(got[i].Args) != len(want[i].Args) {
			t.Fatalf("task %d args = %v, want %v", i, got[i].Args, want[i].Args)
		}
		for j := range want[i].Args {
			if got[i].Args[j] != want[i].Args[j] {
				t.Fatalf("task %d arg %d = %#v, want %#v", i, j, got[i].Args[j], want[i].Args[j])
			}
		}
	}

	if _, err := parseTaskArgs([]string{"=:1"}, 0); err == nil {
		t.Fatal("expected error for missing callable")
	}
}

func TestResolveTasksRejectsDuplicates(t *testing.T) {
	_, err := resolveTasks([]config.TaskConf{
		{Name: "a", Callable: "exit"},
		{Name: "a", Callable: "sum"},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("resolveTasks() error = %v, want duplicate", err)
	}
}

func TestRenderReportShowsUncollectedTasks(t *testing.T) {
	c, ok := task.Lookup("exit")
	if !ok {
		t.Fatal("exit callable not registered")
	}
	tk, err := task.New(c, 0)
	if err != nil {
		t.Fatal(err)
	}

	out := renderReport("run-x", []*task.Task{tk}, map[string]string{tk.ID(): "idle"})
	for _, want := range []string{"forkjoin run run-x", "idle", "pending", "1 not collected"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefgh", 5, "abcd~"},
		{"ééééé", 4, "ééé~"},
		{"ééééé", 5, "ééééé"},
		{"日本語のタスク", 1, "日"},
	}
	for _, tc := range cases {
		got := truncate(tc.in, tc.n)
		if got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) produced invalid UTF-8", tc.in, tc.n)
		}
	}
}

func TestRenderReportWithNonASCIIName(t *testing.T) {
	c, ok := task.Lookup("exit")
	if !ok {
		t.Fatal("exit callable not registered")
	}
	tk, err := task.New(c, 0)
	if err != nil {
		t.Fatal(err)
	}

	name := strings.Repeat("é", 40)
	out := renderReport("run-y", []*task.Task{tk}, map[string]string{tk.ID(): name})
	if !utf8.ValidString(out) {
		t.Fatalf("report is not valid UTF-8:\n%s", out)
	}
	if !strings.Contains(out, strings.Repeat("é", reportColumns[0]-2)+"~") {
		t.Fatalf("report missing truncated name:\n%s", out)
	}
}

func TestConfigCheck(t *testing.T) {
	good, _ := writeConfig(t, "tasks:\n  - callable: sum\n    args: [1]\n")
	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"check", "--config", good})
	})
	if code != 0 || !strings.Contains(stdout, "Configuration valid.") {
		t.Fatalf("config check code = %d, stdout: %s, stderr: %s", code, stdout, stderr)
	}

	bad, _ := writeConfig(t, "tasks:\n  - callable: missing\n")
	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"check", "--config", bad})
	})
	if code != 1 || !strings.Contains(stdout, `unknown callable "missing"`) {
		t.Fatalf("config check code = %d, stdout: %s", code, stdout)
	}
}

func TestConfigCheckStrictWarnings(t *testing.T) {
	noTasks, _ := writeConfig(t, "")
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"check", "--config", noTasks, "--strict", "--json"})
	})
	if code != 2 {
		t.Fatalf("config check --strict code = %d, want 2; stdout: %s", code, stdout)
	}

	var res struct {
		Valid    bool `json:"valid"`
		Warnings []struct {
			Category string `json:"category"`
		} `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if !res.Valid || len(res.Warnings) != 1 || res.Warnings[0].Category != "tasks" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestConfigShow(t *testing.T) {
	configPath, statePath := writeConfig(t, "api:\n  tokens:\n    - token: hunter2\n")
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"show", "--config", configPath})
	})
	if code != 0 {
		t.Fatalf("config show code = %d", code)
	}
	if !strings.Contains(stdout, statePath) || !strings.Contains(stdout, "forkjoin.lock") {
		t.Fatalf("config show missing paths:\n%s", stdout)
	}
	if strings.Contains(stdout, "hunter2") || !strings.Contains(stdout, "<redacted>") {
		t.Fatalf("config show leaked token:\n%s", stdout)
	}
}

func TestConfigNounUnknownAction(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"frobnicate"})
	})
	if code != 1 || !strings.Contains(stderr, "Unknown config action") {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}
}
