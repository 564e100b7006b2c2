package task

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/mattjoyce/forkjoin/internal/log"
	"github.com/mattjoyce/forkjoin/internal/procwait"
)

var (
	sumMod256 = MustRegister("test-sum-mod-256", func(args Args) (int, error) {
		nums, err := args.Ints()
		if err != nil {
			return 0, err
		}
		total := 0
		for _, n := range nums {
			total += n
		}
		return total % 256, nil
	})

	exitWith = MustRegister("test-exit-with", func(args Args) (int, error) {
		return args.Int(0)
	})

	failing = MustRegister("test-failing", func(Args) (int, error) {
		return 0, errors.New("boom")
	})

	panicking = MustRegister("test-panicking", func(Args) (int, error) {
		panic("kaboom")
	})

	selfKill = MustRegister("test-self-kill", func(Args) (int, error) {
		_ = unix.Kill(os.Getpid(), unix.SIGKILL)
		time.Sleep(time.Minute)
		return 0, nil
	})

	sleeper = MustRegister("test-sleeper", func(Args) (int, error) {
		time.Sleep(time.Minute)
		return 0, nil
	})

	childEnv = MustRegister("test-child-env", func(Args) (int, error) {
		if os.Getenv(envTaskID) == "" {
			return 2, nil
		}
		// TestMain sets up the parent at ERROR.
		if os.Getenv(envLogLevel) != "ERROR" {
			return 4, nil
		}
		if os.Getenv(envParentPID) == "" {
			return 3, nil
		}
		return 0, nil
	})
)

func TestMain(m *testing.M) {
	if Init() {
		return
	}
	log.Setup("ERROR")
	os.Exit(m.Run())
}

func mustExecute(t *testing.T, c Callable, args ...any) *Task {
	t.Helper()

	tk, err := New(c, args...)
	require.NoError(t, err)
	require.NoError(t, tk.Execute())
	return tk
}

func TestNewTaskIsUnset(t *testing.T) {
	tk, err := New(exitWith, 0)
	require.NoError(t, err)

	_, ok := tk.ProcessID()
	assert.False(t, ok)
	_, ok = tk.ExitCode()
	assert.False(t, ok)
	_, ok = tk.Status()
	assert.False(t, ok)
	assert.NotEmpty(t, tk.ID())
	assert.Equal(t, "test-exit-with", tk.Callable().Name())
}

func TestNewRejectsInvalidCallable(t *testing.T) {
	_, err := New(Callable{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	unregistered := Callable{name: "never-registered", fn: func(Args) (int, error) { return 0, nil }}
	_, err = New(unregistered)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewRejectsUnencodableArgument(t *testing.T) {
	_, err := New(exitWith, make(chan int))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRegisterValidation(t *testing.T) {
	_, err := Register("", func(Args) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Register("test-nil-func", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Register("test-exit-with", func(Args) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrInvalidArgument)

	c, ok := Lookup("test-exit-with")
	require.True(t, ok)
	assert.Equal(t, exitWith.Name(), c.Name())
	assert.Contains(t, Registered(), "test-sum-mod-256")
}

func TestArgumentsAreCopied(t *testing.T) {
	in := []any{1, 2, 3}
	tk, err := New(sumMod256, in...)
	require.NoError(t, err)

	in[0] = 99
	got := tk.Arguments()
	assert.Equal(t, []any{1, 2, 3}, got)

	got[1] = 42
	assert.Equal(t, []any{1, 2, 3}, tk.Arguments())
	assert.Equal(t, []string{"1", "2", "3"}, tk.EncodedArguments())
}

func TestExecuteIsSingleShot(t *testing.T) {
	tk := mustExecute(t, exitWith, 0)

	err := tk.Execute()
	assert.ErrorIs(t, err, ErrAlreadyExecuted)

	pid, ok := tk.ProcessID()
	require.True(t, ok)
	assert.Greater(t, pid, 0)

	owner, ok := tk.OwnerPID()
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), owner)
	assert.False(t, tk.StartedAt().IsZero())

	_, err = tk.Collect()
	require.NoError(t, err)
}

func TestCollectBeforeExecute(t *testing.T) {
	tk, err := New(exitWith, 0)
	require.NoError(t, err)

	_, err = tk.Collect()
	assert.ErrorIs(t, err, ErrTaskNotStarted)
}

func TestCollectReturnsExitValue(t *testing.T) {
	for _, n := range []int{0, 1, 5, 42, 255} {
		tk := mustExecute(t, exitWith, n)

		code, err := tk.Collect()
		require.NoError(t, err)
		assert.Equal(t, n, code)

		st, ok := tk.Status()
		require.True(t, ok)
		assert.True(t, st.Exited())
		assert.Equal(t, n, st.ExitStatus())
	}
}

func TestCollectTruncatesOutOfRangeValue(t *testing.T) {
	tk := mustExecute(t, exitWith, 256+7)

	code, err := tk.Collect()
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestCollectIsIdempotent(t *testing.T) {
	tk := mustExecute(t, exitWith, 5)

	first, err := tk.Collect()
	require.NoError(t, err)
	firstStatus, _ := tk.Status()
	collectedAt := tk.CollectedAt()

	for i := 0; i < 3; i++ {
		code, err := tk.Collect()
		require.NoError(t, err)
		assert.Equal(t, first, code)

		st, ok := tk.Status()
		require.True(t, ok)
		assert.Equal(t, firstStatus.Raw(), st.Raw())
		assert.Equal(t, collectedAt, tk.CollectedAt())
	}
}

func TestSumScenario(t *testing.T) {
	tk := mustExecute(t, sumMod256, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	code, err := tk.Collect()
	require.NoError(t, err)
	assert.Equal(t, 55, code)
	assert.Equal(t, []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, tk.Arguments())
}

func TestFailuresBecomeExitOne(t *testing.T) {
	for _, c := range []Callable{failing, panicking} {
		tk := mustExecute(t, c)

		code, err := tk.Collect()
		require.NoError(t, err, c.Name())
		assert.Equal(t, FailureExitCode, code, c.Name())

		st, _ := tk.Status()
		assert.True(t, st.Exited(), c.Name())
	}
}

func TestBadArgumentTypeFailsInChild(t *testing.T) {
	tk := mustExecute(t, sumMod256, "not-a-number")

	code, err := tk.Collect()
	require.NoError(t, err)
	assert.Equal(t, FailureExitCode, code)
}

func TestSignaledTask(t *testing.T) {
	tk := mustExecute(t, selfKill)

	code, err := tk.Collect()
	require.NoError(t, err)
	assert.Equal(t, FailureExitCode, code)

	st, ok := tk.Status()
	require.True(t, ok)
	assert.True(t, st.Signaled())
	assert.False(t, st.Exited())
	assert.Equal(t, unix.SIGKILL, st.Signal())
}

func TestExternallyKilledTask(t *testing.T) {
	tk := mustExecute(t, sleeper)

	pid, _ := tk.ProcessID()
	require.NoError(t, unix.Kill(pid, unix.SIGTERM))

	code, err := tk.Collect()
	require.NoError(t, err)
	assert.Equal(t, FailureExitCode, code)

	st, _ := tk.Status()
	assert.True(t, st.Signaled())
	assert.Equal(t, unix.SIGTERM, st.Signal())
}

func TestCollectFromOtherProcess(t *testing.T) {
	tk := mustExecute(t, exitWith, 3)

	realPID := currentPID
	currentPID = func() int { return realPID() + 1 }
	_, err := tk.Collect()
	currentPID = realPID
	assert.ErrorIs(t, err, ErrNotOwner)

	_, ok := tk.ExitCode()
	assert.False(t, ok, "a rejected collect must not record an outcome")

	code, err := tk.Collect()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestConcurrentCollect(t *testing.T) {
	tk := mustExecute(t, exitWith, 9)

	var wg sync.WaitGroup
	codes := make([]int, 4)
	errs := make([]error, 4)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], errs[i] = tk.Collect()
		}(i)
	}
	wg.Wait()

	for i := range codes {
		require.NoError(t, errs[i])
		assert.Equal(t, 9, codes[i])
	}
}

func TestChildEnvironment(t *testing.T) {
	assert.Empty(t, os.Getenv(envTaskID))

	tk := mustExecute(t, childEnv)
	code, err := tk.Collect()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestCollectAfterExternalReap(t *testing.T) {
	tk := mustExecute(t, exitWith, 0)
	pid, _ := tk.ProcessID()

	// Someone else in this process reaps the child first.
	_, err := procwait.Wait(pid)
	require.NoError(t, err)

	_, err = tk.Collect()
	assert.ErrorIs(t, err, ErrProcessNotFound)

	_, ok := tk.ExitCode()
	assert.False(t, ok)
}

func TestExecuteSpawnFailure(t *testing.T) {
	// A single argv string above the kernel's per-argument limit makes exec fail.
	tk, err := New(exitWith, strings.Repeat("x", 512*1024))
	require.NoError(t, err)

	err = tk.Execute()
	require.ErrorIs(t, err, ErrSpawnFailure)

	_, ok := tk.ProcessID()
	assert.False(t, ok)

	_, err = tk.Collect()
	assert.ErrorIs(t, err, ErrTaskNotStarted)
}
