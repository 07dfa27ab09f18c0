package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Runner abstracts external tool invocation so tests can substitute
// fakes for the downloader and transcoder.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandLog, error)
}

// execRunner spawns real child processes via os/exec.
type execRunner struct{}

// Run executes one command, capturing output and exit code.
func (execRunner) Run(ctx context.Context, name string, args ...string) (CommandLog, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	log := CommandLog{
		Command: name,
		Args:    args,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if err != nil {
		log.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.ExitCode = exitErr.ExitCode()
		}
		return log, err
	}
	return log, nil
}
