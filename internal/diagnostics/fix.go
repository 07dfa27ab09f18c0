package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	goruntime "runtime"
	"strings"
	"time"
)

const installCommandTimeout = 45 * time.Minute

// installOption is one package-manager route to a missing capability.
type installOption struct {
	manager  string
	commands [][]string
}

// Fix attempts an OS-appropriate installation for one failed
// capability and returns an error when no route succeeded.
func Fix(ctx context.Context, capabilityID string) error {
	switch strings.TrimSpace(capabilityID) {
	case CapabilityFFmpeg:
		return runFirstSuccessfulInstall(ctx, ffmpegInstallOptions())
	case CapabilityWhisper:
		return runFirstSuccessfulInstall(ctx, whisperInstallOptions())
	case CapabilityBBDown:
		return runFirstSuccessfulInstall(ctx, bbdownInstallOptions())
	default:
		return fmt.Errorf("unsupported capability id: %s", capabilityID)
	}
}

func ffmpegInstallOptions() []installOption {
	switch goruntime.GOOS {
	case "darwin":
		return []installOption{
			{manager: "brew", commands: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	default:
		return []installOption{
			{manager: "apt-get", commands: [][]string{
				{"apt-get", "update"},
				{"apt-get", "install", "-y", "ffmpeg"},
			}},
			{manager: "dnf", commands: [][]string{{"dnf", "install", "-y", "ffmpeg"}}},
			{manager: "pacman", commands: [][]string{{"pacman", "-Sy", "--noconfirm", "ffmpeg"}}},
			{manager: "brew", commands: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	}
}

func whisperInstallOptions() []installOption {
	return []installOption{
		{manager: "pip3", commands: [][]string{{"pip3", "install", "--user", "openai-whisper"}}},
		{manager: "pip", commands: [][]string{{"pip", "install", "--user", "openai-whisper"}}},
	}
}

func bbdownInstallOptions() []installOption {
	return []installOption{
		{manager: "dotnet", commands: [][]string{{"dotnet", "tool", "install", "--global", "BBDown"}}},
		{manager: "brew", commands: [][]string{{"brew", "install", "bbdown"}}},
	}
}

// runFirstSuccessfulInstall tries each available package manager in
// order and stops at the first route whose commands all succeed.
func runFirstSuccessfulInstall(ctx context.Context, options []installOption) error {
	failures := make([]string, 0, len(options))
	sawManager := false

	for _, option := range options {
		if !commandAvailable(option.manager) {
			continue
		}
		sawManager = true
		if err := runInstallCommands(ctx, option.commands); err == nil {
			return nil
		} else {
			failures = append(failures, fmt.Sprintf("%s: %v", option.manager, err))
		}
	}

	if !sawManager {
		return fmt.Errorf("no supported package manager found for %s", goruntime.GOOS)
	}
	return errors.New(strings.Join(failures, " | "))
}

func runInstallCommands(ctx context.Context, commands [][]string) error {
	for _, command := range commands {
		if err := runInstallCommand(ctx, command[0], command[1:]...); err != nil {
			return err
		}
	}
	return nil
}

func runInstallCommand(ctx context.Context, name string, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, installCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(runCtx, name, args...).CombinedOutput()
	if err == nil {
		return nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", name, installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return fmt.Errorf("%s failed: %w (%s)", name, err, trimmed)
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
