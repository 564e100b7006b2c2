package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/mattjoyce/forkjoin/internal/storage"
)

// ErrLocked is returned when another dispatcher holds the lock.
var ErrLocked = errors.New("dispatcher lock held by another process")

// DispatcherLock makes one process the dispatcher for a state directory.
// It is a PID file guarded by flock(2); the lock lives as long as the file
// descriptor stays open.
type DispatcherLock struct {
	path string
	pid  int
	f    *os.File
}

// Acquire takes an exclusive non-blocking lock at lockPath and writes the
// current PID into the file. When the lock is held elsewhere the returned
// error wraps ErrLocked and names the holder's pid if it can be read.
func Acquire(lockPath string) (*DispatcherLock, error) {
	if err := storage.ValidateLocalFilesystem(lockPath, "lock.path"); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if holder, herr := HolderPID(lockPath); herr == nil {
				return nil, fmt.Errorf("%w (pid %d)", ErrLocked, holder)
			}
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	pid := os.Getpid()
	if err := writePID(f, pid); err != nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		return nil, err
	}

	return &DispatcherLock{path: lockPath, pid: pid, f: f}, nil
}

func writePID(f *os.File, pid int) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync lock file: %w", err)
	}
	return nil
}

// HolderPID reads the pid recorded in the lock file.
func HolderPID(lockPath string) (int, error) {
	b, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, fmt.Errorf("read lock file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse lock file pid: %w", err)
	}
	return pid, nil
}

func (l *DispatcherLock) Path() string { return l.path }

// PID returns the dispatcher pid written into the lock file.
func (l *DispatcherLock) PID() int { return l.pid }

func (l *DispatcherLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
