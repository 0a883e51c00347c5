package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"scenecut/internal/logging"
	"scenecut/internal/services"
)

const stderrTailBytes = 4096

// Invocation describes one tool run.
type Invocation struct {
	// Operation names the call in diagnostics (e.g. "render proxy").
	Operation string
	Args      []string
	Timeout   time.Duration
	// Stdout receives the tool's stdout; nil discards it.
	Stdout io.Writer
	// Stderr optionally observes stderr in addition to the captured tail.
	Stderr io.Writer
	// FailKind tags non-zero exits. TimeoutKind tags deadline expiry and
	// defaults to TranscodeTimeout.
	FailKind    services.Kind
	TimeoutKind services.Kind
}

// Runner executes one external tool (ffmpeg, ffprobe or uvx).
type Runner struct {
	binary string
	exec   Executor
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor swaps the process executor, primarily for tests.
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger attaches a logger for command tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner constructs a runner for binary.
func NewRunner(binary string, opts ...Option) *Runner {
	r := &Runner{
		binary: strings.TrimSpace(binary),
		exec:   CommandExecutor{},
		logger: logging.NewNop(),
	}
	if r.binary == "" {
		r.binary = "ffmpeg"
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binary returns the executable this runner invokes.
func (r *Runner) Binary() string { return r.binary }

// Run executes the invocation. It returns the captured stderr tail alongside
// any error so callers that parse diagnostics (e.g. the banner of `ffmpeg -i`)
// can use it even when the tool exits non-zero.
func (r *Runner) Run(ctx context.Context, inv Invocation) (string, error) {
	runCtx := ctx
	cancel := func() {}
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancel()

	stdout := inv.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	tail := newTailBuffer(stderrTailBytes)
	var stderr io.Writer = tail
	if inv.Stderr != nil {
		stderr = io.MultiWriter(tail, inv.Stderr)
	}

	logging.WithContext(ctx, r.logger).Debug("running external tool",
		logging.String("binary", r.binary),
		logging.String("operation", inv.Operation),
		logging.String("command", r.binary+" "+strings.Join(inv.Args, " ")),
	)

	started := time.Now()
	err := r.exec.Run(runCtx, r.binary, inv.Args, stdout, stderr)
	diagnostic := tail.String()
	if err == nil {
		return diagnostic, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return diagnostic, fmt.Errorf("%s: %w", inv.Operation, ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		kind := inv.TimeoutKind
		if kind == "" {
			kind = services.KindTranscodeTimeout
		}
		detail := fmt.Sprintf("exceeded %s", inv.Timeout)
		return diagnostic, services.NewError(kind, inv.Operation, detail, context.DeadlineExceeded)
	}

	kind := inv.FailKind
	if kind == "" {
		kind = services.KindTranscodeFailed
	}
	logging.WithContext(ctx, r.logger).Debug("external tool failed",
		logging.String("operation", inv.Operation),
		logging.Duration("elapsed", time.Since(started)),
		logging.Error(err),
	)
	return diagnostic, services.NewError(kind, inv.Operation, LastLines(diagnostic, 3), err)
}

// LastLines returns at most n trailing non-empty lines of text joined by " | ".
func LastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	out := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			out = append(out, line)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return strings.Join(out, " | ")
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
