package encoding

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes an external process with an argument list.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) (stderr string, err error)
}

// ExecRunner runs processes with os/exec and captures stderr.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}
