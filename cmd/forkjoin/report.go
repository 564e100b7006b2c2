package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/forkjoin/internal/journal"
	"github.com/mattjoyce/forkjoin/internal/task"
)

// theme keeps report colors in one place.
type theme struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	OK      lipgloss.Style
	Failed  lipgloss.Style
	Pending lipgloss.Style
	Dim     lipgloss.Style
}

func newTheme() theme {
	return theme{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
		OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Pending: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

var reportColumns = []int{20, 12, 8, 20, 6, 10}

// row renders cells left aligned in fixed-width columns. The last cell is
// left unbounded.
func row(cells []string, styles []lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		st := lipgloss.NewStyle()
		if i < len(styles) {
			st = styles[i]
		}
		if i == len(cells)-1 {
			parts[i] = st.Render(c)
			continue
		}
		parts[i] = st.Width(reportColumns[i]).Render(truncate(c, reportColumns[i]-1))
	}
	return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:max(n, 0)])
	}
	return string(r[:n-1]) + "~"
}

// renderReport formats the outcome of a run. names maps task ids to the
// configured task names.
func renderReport(runID string, tasks []*task.Task, names map[string]string) string {
	th := newTheme()
	var b strings.Builder

	b.WriteString(th.Title.Render("forkjoin run " + runID))
	b.WriteString("\n")
	b.WriteString(row([]string{"NAME", "CALLABLE", "PID", "STATUS", "EXIT", "DURATION"}, repeat(th.Header, 6)))
	b.WriteString("\n")

	ok, failed, pending := 0, 0, 0
	for _, t := range tasks {
		name := names[t.ID()]
		if name == "" {
			name = t.ID()
		}
		pid, _ := t.ProcessID()

		status, exit, duration := "pending", "-", "-"
		style := th.Pending
		if st, collected := t.Status(); collected {
			code, _ := t.ExitCode()
			status = st.String()
			exit = strconv.Itoa(code)
			duration = t.CollectedAt().Sub(t.StartedAt()).Round(time.Millisecond).String()
			if code == 0 {
				style = th.OK
				ok++
			} else {
				style = th.Failed
				failed++
			}
		} else {
			pending++
		}

		b.WriteString(row(
			[]string{name, t.Callable().Name(), strconv.Itoa(pid), status, exit, duration},
			[]lipgloss.Style{lipgloss.NewStyle(), th.Dim, th.Dim, style, style, th.Dim},
		))
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("%d ok, %d failed", ok, failed)
	if pending > 0 {
		summary += fmt.Sprintf(", %d not collected", pending)
	}
	if failed > 0 || pending > 0 {
		b.WriteString(th.Failed.Render(summary))
	} else {
		b.WriteString(th.OK.Render(summary))
	}
	b.WriteString("\n")
	return b.String()
}

// renderRuns formats journal run summaries.
func renderRuns(runs []journal.Run) string {
	th := newTheme()
	var b strings.Builder

	b.WriteString(th.Header.Render(fmt.Sprintf("%-36s  %-8s  %-20s  %5s  %6s", "RUN", "PID", "STARTED", "TASKS", "FAILED")))
	b.WriteString("\n")
	for _, r := range runs {
		line := fmt.Sprintf("%-36s  %-8d  %-20s  %5d  %6d",
			r.ID, r.DispatcherPID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Tasks, r.Failed)
		if r.Failed > 0 || r.Collected < r.Tasks {
			line = th.Failed.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(runs) == 0 {
		b.WriteString(th.Dim.Render("no runs recorded"))
		b.WriteString("\n")
	}
	return b.String()
}

// renderTaskRecords formats the journaled tasks of one run.
func renderTaskRecords(recs []*journal.TaskRecord) string {
	th := newTheme()
	var b strings.Builder

	b.WriteString(row([]string{"SEQ", "CALLABLE", "PID", "STATUS", "EXIT", "ARGS"}, repeat(th.Header, 6)))
	b.WriteString("\n")
	for _, r := range recs {
		status, exit := "pending", "-"
		style := th.Pending
		if r.Collected() {
			exit = strconv.Itoa(*r.ExitCode)
			status = "exited"
			if r.Signal != nil {
				status = "signaled(" + *r.Signal + ")"
			}
			style = th.OK
			if *r.ExitCode != 0 {
				style = th.Failed
			}
		}
		b.WriteString(row(
			[]string{strconv.Itoa(r.Seq), r.Callable, strconv.Itoa(r.PID), status, exit, string(r.Arguments)},
			[]lipgloss.Style{th.Dim, lipgloss.NewStyle(), th.Dim, style, style, th.Dim},
		))
		b.WriteString("\n")
	}
	return b.String()
}

func repeat(st lipgloss.Style, n int) []lipgloss.Style {
	out := make([]lipgloss.Style, n)
	for i := range out {
		out[i] = st
	}
	return out
}
