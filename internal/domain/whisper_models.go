package domain

import "strings"

// WhisperModelOption describes one supported whisper model size.
type WhisperModelOption struct {
	ID          string `json:"id"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
}

// DefaultModelSize is the safe fallback for unrecognized model names.
const DefaultModelSize = "small"

// WhisperModelCatalog lists the supported model sizes, smallest first.
var WhisperModelCatalog = []WhisperModelOption{
	{ID: "tiny", SizeLabel: "~39 MB", Description: "Fastest, lowest accuracy."},
	{ID: "base", SizeLabel: "~74 MB", Description: "Fast with acceptable accuracy."},
	{ID: "small", SizeLabel: "~244 MB", Description: "Balanced speed and accuracy."},
	{ID: "medium", SizeLabel: "~769 MB", Description: "High accuracy, slower."},
	{ID: "large", SizeLabel: "~1.5 GB", Description: "Best accuracy, slowest."},
}

// KnownModelSize reports whether name is one of the supported sizes.
func KnownModelSize(name string) bool {
	id := strings.ToLower(strings.TrimSpace(name))
	for _, model := range WhisperModelCatalog {
		if model.ID == id {
			return true
		}
	}
	return false
}

// NormalizeModelSize maps a user-supplied model name to a supported
// size, falling back to the default instead of failing the run.
func NormalizeModelSize(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	if KnownModelSize(id) {
		return id
	}
	return DefaultModelSize
}
