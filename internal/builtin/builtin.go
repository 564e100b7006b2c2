// Package builtin registers the stock callables available to `forkjoin run`.
package builtin

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mattjoyce/forkjoin/internal/task"
)

var (
	// Sum exits with the sum of its integer arguments modulo 256.
	Sum = task.MustRegister("sum", sum)

	// Exit exits with its first argument.
	Exit = task.MustRegister("exit", exit)

	// Sleep waits for a duration ("250ms", "2s") then exits with the optional
	// second argument.
	Sleep = task.MustRegister("sleep", sleep)

	// Fail always fails with its first argument as the error message.
	Fail = task.MustRegister("fail", fail)

	// Shell runs its first argument with /bin/sh -c and exits with the
	// command's exit code.
	Shell = task.MustRegister("shell", shell)
)

func sum(args task.Args) (int, error) {
	nums, err := args.Ints()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, n := range nums {
		total += n
	}
	return total % 256, nil
}

func exit(args task.Args) (int, error) {
	if args.Len() == 0 {
		return 0, nil
	}
	return args.Int(0)
}

func sleep(args task.Args) (int, error) {
	raw, err := args.String(0)
	if err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	time.Sleep(d)

	if args.Len() > 1 {
		return args.Int(1)
	}
	return 0, nil
}

func fail(args task.Args) (int, error) {
	msg := "failed"
	if args.Len() > 0 {
		if s, err := args.String(0); err == nil && s != "" {
			msg = s
		}
	}
	return 0, errors.New(msg)
}

func shell(args task.Args) (int, error) {
	script, err := args.String(0)
	if err != nil {
		return 0, err
	}

	cmd := exec.Command("/bin/sh", "-c", script)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		// Killed by a signal.
		return task.FailureExitCode, nil
	}
	return 0, fmt.Errorf("run shell: %w", err)
}
