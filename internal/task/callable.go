package task

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/docker/docker/pkg/reexec"
)

// initializerPrefix namespaces task initializers among reexec registrations.
const initializerPrefix = "forkjoin-task:"

// Func is the body of a task. It runs in the child process. The returned
// value becomes the exit status; a non-nil error becomes FailureExitCode.
type Func func(args Args) (int, error)

// Callable is a handle to a registered Func. The zero value is invalid.
type Callable struct {
	name string
	fn   Func
}

// Name returns the registration name.
func (c Callable) Name() string { return c.name }

// IsZero reports whether c is the zero handle.
func (c Callable) IsZero() bool { return c.name == "" && c.fn == nil }

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Callable)
)

// Register binds fn to name in this binary. It must be called during package
// initialisation so that child processes see the same registration.
func Register(name string, fn Func) (Callable, error) {
	if name == "" {
		return Callable{}, fmt.Errorf("%w: callable name is empty", ErrInvalidArgument)
	}
	if fn == nil {
		return Callable{}, fmt.Errorf("%w: callable %q has nil func", ErrInvalidArgument, name)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return Callable{}, fmt.Errorf("%w: callable %q already registered", ErrInvalidArgument, name)
	}

	c := Callable{name: name, fn: fn}
	registry[name] = c
	reexec.Register(initializerName(name), func() { runChild(c) })
	return c, nil
}

// MustRegister is like Register but panics on error.
func MustRegister(name string, fn Func) Callable {
	c, err := Register(name, fn)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the callable registered under name.
func Lookup(name string) (Callable, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[name]
	return c, ok
}

// Registered returns the names of all registered callables.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func initializerName(name string) string {
	return initializerPrefix + name
}

func (c Callable) registered() bool {
	if c.name == "" || c.fn == nil {
		return false
	}
	_, ok := Lookup(c.name)
	return ok
}

// Args are the arguments of a task as seen by its Func.
type Args []json.RawMessage

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

// Decode unmarshals argument i into v.
func (a Args) Decode(i int, v any) error {
	if i < 0 || i >= len(a) {
		return fmt.Errorf("argument %d out of range (have %d)", i, len(a))
	}
	if err := json.Unmarshal(a[i], v); err != nil {
		return fmt.Errorf("decode argument %d: %w", i, err)
	}
	return nil
}

// Int decodes argument i as an integer.
func (a Args) Int(i int) (int, error) {
	var n int
	if err := a.Decode(i, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// String decodes argument i as a string.
func (a Args) String(i int) (string, error) {
	var s string
	if err := a.Decode(i, &s); err != nil {
		return "", err
	}
	return s, nil
}

// Ints decodes every argument as an integer.
func (a Args) Ints() ([]int, error) {
	out := make([]int, len(a))
	for i := range a {
		n, err := a.Int(i)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func encodeArgs(args []any) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrInvalidArgument, i, err)
		}
		out[i] = string(b)
	}
	return out, nil
}

func decodeArgs(argv []string) (Args, error) {
	out := make(Args, len(argv))
	for i, s := range argv {
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("argument %d is not valid JSON", i)
		}
		out[i] = json.RawMessage(s)
	}
	return out, nil
}
