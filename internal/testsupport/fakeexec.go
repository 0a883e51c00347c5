package testsupport

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Call records one process invocation seen by FakeExecutor.
type Call struct {
	Binary string
	Args   []string
}

// HandlerFunc scripts the behaviour of a fake process.
type HandlerFunc func(ctx context.Context, call Call, stdout, stderr io.Writer) error

// FakeExecutor satisfies ffmpeg.Executor without spawning processes.
type FakeExecutor struct {
	mu     sync.Mutex
	calls  []Call
	Handle HandlerFunc
}

// Run implements ffmpeg.Executor.
func (f *FakeExecutor) Run(ctx context.Context, binary string, args []string, stdout, stderr io.Writer) error {
	call := Call{Binary: binary, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	handle := f.Handle
	f.mu.Unlock()
	if handle == nil {
		return nil
	}
	return handle(ctx, call, stdout, stderr)
}

// Calls returns a snapshot of the recorded invocations.
func (f *FakeExecutor) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// LastArg returns the final argument, which is the output path for ffmpeg
// render and export invocations.
func (c Call) LastArg() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// ArgAfter returns the value following flag, or "" when absent.
func (c Call) ArgAfter(flag string) string {
	idx := slices.Index(c.Args, flag)
	if idx < 0 || idx+1 >= len(c.Args) {
		return ""
	}
	return c.Args[idx+1]
}

// HasArg reports whether value appears anywhere in the arguments.
func (c Call) HasArg(value string) bool {
	return slices.Contains(c.Args, value)
}

// WriteOutput returns a handler that writes content to the invocation's
// output path, mimicking a successful render.
func WriteOutput(content string) HandlerFunc {
	return func(_ context.Context, call Call, _, _ io.Writer) error {
		out := call.LastArg()
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		return os.WriteFile(out, []byte(content), 0o644)
	}
}
