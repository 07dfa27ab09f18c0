// Command skill is a thin launcher for environments that invoke the
// transcriber with a fixed positional interface. It locates the main
// binary, forwards its arguments and stdio, and propagates the exit
// code, reporting 130 when the child is interrupted.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
)

const binaryName = "bili-transcribe"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	binary, err := locateBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	cmd := exec.Command(binary, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// The child receives the terminal's SIGINT directly; the launcher
	// only waits and reports, so interrupts are not forwarded twice.
	signal.Ignore(os.Interrupt, syscall.SIGTERM)

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot start %s: %v\n", binary, err)
		return 1
	}
	err = cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 130
		}
		return exitErr.ExitCode()
	}
	return 1
}

// locateBinary prefers a sibling of the launcher, then falls back to
// PATH.
func locateBinary() (string, error) {
	self, err := os.Executable()
	if err == nil {
		sibling := filepath.Join(filepath.Dir(self), binaryName)
		if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	if path, lookErr := exec.LookPath(binaryName); lookErr == nil {
		return path, nil
	}
	return "", fmt.Errorf("cannot locate %s next to the launcher or in PATH", binaryName)
}
