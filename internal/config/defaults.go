package config

import (
	"os"
	"path/filepath"
	"strings"

	"bili-transcribe/internal/domain"
)

// DefaultSettings returns baseline local configuration for first run.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		Model:     domain.DefaultModelSize,
		Language:  "zh",
		OutputDir: filepath.Join(homeDir, "Documents", "BiliTranscripts"),
	}
}

// Normalize trims user inputs and applies defaults for empty fields.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	settings.Model = strings.TrimSpace(settings.Model)
	settings.Language = strings.TrimSpace(settings.Language)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)

	if settings.Model == "" {
		settings.Model = defaults.Model
	}
	if settings.Language == "" {
		settings.Language = defaults.Language
	}
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	}
	return settings
}

// ExpandPath resolves a leading tilde against the user home directory.
func ExpandPath(path string) string {
	p := strings.TrimSpace(path)
	if p == "~" || strings.HasPrefix(p, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, strings.TrimPrefix(strings.TrimPrefix(p, "~"), "/"))
		}
	}
	return p
}
