package ffmpeg

import (
	"context"
	"io"
	"os/exec"
)

// Executor starts a process and waits for it. Implementations must honour ctx
// cancellation.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, stdout, stderr io.Writer) error
}

// CommandExecutor runs real processes via os/exec. A non-empty Env replaces
// the inherited environment.
type CommandExecutor struct {
	Env []string
}

// Run implements Executor.
func (e CommandExecutor) Run(ctx context.Context, binary string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if len(e.Env) > 0 {
		cmd.Env = e.Env
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}
