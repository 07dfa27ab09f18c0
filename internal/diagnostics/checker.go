// Package diagnostics probes every external capability the pipeline
// needs before any stage runs, and can attempt OS-appropriate
// remediation for the ones that are missing.
package diagnostics

import (
	"context"
	"os/exec"
	"time"

	"bili-transcribe/internal/domain"
)

const importProbeTimeout = 30 * time.Second

// Capability IDs reported by the gate.
const (
	CapabilityBBDown  = "tool_bbdown"
	CapabilityFFmpeg  = "tool_ffmpeg"
	CapabilityWhisper = "lib_whisper"
)

// resolver locates external executables.
type resolver interface {
	Resolve(name string) (string, bool)
}

// Checker validates external tools and the transcription library.
type Checker struct {
	resolver      resolver
	runProbe      func(ctx context.Context, name string, args ...string) error
	whisperPython string
}

// NewChecker builds a checker using the given executable resolver.
func NewChecker(r resolver) *Checker {
	return &Checker{
		resolver: r,
		runProbe: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// NewCheckerForTests builds a checker with an injectable probe runner.
func NewCheckerForTests(r resolver, runProbe func(ctx context.Context, name string, args ...string) error) *Checker {
	c := NewChecker(r)
	if runProbe != nil {
		c.runProbe = runProbe
	}
	return c
}

// Run executes all capability probes and returns a combined report.
// Probe order carries no meaning; the report names every failure, not
// just the first, so the operator can fix them in one pass.
func (c *Checker) Run(ctx context.Context) domain.DependencyReport {
	items := []domain.DependencyItem{
		c.checkExecutable(CapabilityBBDown, "BBDown",
			"Install BBDown: https://github.com/nilaoda/BBDown (dotnet tool install --global BBDown)"),
		c.checkExecutable(CapabilityFFmpeg, "ffmpeg",
			"Install ffmpeg: brew install ffmpeg or apt install ffmpeg"),
		c.checkWhisperImport(ctx),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DependencyStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DependencyReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkExecutable verifies a required CLI tool can be located.
func (c *Checker) checkExecutable(id, name, hint string) domain.DependencyItem {
	path, ok := c.resolver.Resolve(name)
	if !ok {
		return domain.DependencyItem{
			ID:      id,
			Name:    name,
			Status:  domain.DependencyStatusFail,
			Message: "not found on PATH or in known install locations",
			Hint:    hint,
		}
	}

	return domain.DependencyItem{
		ID:      id,
		Name:    name,
		Status:  domain.DependencyStatusPass,
		Message: "found at " + path,
	}
}

// checkWhisperImport verifies the transcription library is importable
// by an available python runtime.
func (c *Checker) checkWhisperImport(ctx context.Context) domain.DependencyItem {
	item := domain.DependencyItem{
		ID:   CapabilityWhisper,
		Name: "whisper",
		Hint: "Install whisper: pip install openai-whisper",
	}

	probeCtx, cancel := context.WithTimeout(ctx, importProbeTimeout)
	defer cancel()

	for _, python := range []string{"python3", "python"} {
		if err := c.runProbe(probeCtx, python, "-c", "import whisper"); err == nil {
			c.whisperPython = python
			item.Status = domain.DependencyStatusPass
			item.Message = "importable via " + python
			return item
		}
	}

	item.Status = domain.DependencyStatusFail
	item.Message = "python whisper library is not importable"
	return item
}

// WhisperPython reports the interpreter whose import probe passed. It
// falls back to python3 when no probe has run yet.
func (c *Checker) WhisperPython() string {
	if c.whisperPython == "" {
		return "python3"
	}
	return c.whisperPython
}
