// Package transcript renders one transcription result into the four
// output artifacts: plain text, structured JSON, SRT subtitles, and a
// markdown report.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bili-transcribe/internal/domain"
)

// fallbackTitle heads the markdown report when no real title is known.
const fallbackTitle = "Video Transcript"

// PartialError reports artifact kinds whose write failed. The
// remaining artifacts were still attempted and appear in the set.
type PartialError struct {
	Failed []domain.ArtifactKind
}

// Error lists the failed artifact kinds.
func (e *PartialError) Error() string {
	kinds := make([]string, len(e.Failed))
	for i, kind := range e.Failed {
		kinds[i] = string(kind)
	}
	return "failed to write artifacts: " + strings.Join(kinds, ", ")
}

// Writer emits the output artifact set for one run.
type Writer struct {
	logger    *slog.Logger
	mkdirAll  func(string, os.FileMode) error
	writeFile func(string, []byte, os.FileMode) error
}

// NewWriter builds a writer using real filesystem operations.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		logger:    logger,
		mkdirAll:  os.MkdirAll,
		writeFile: os.WriteFile,
	}
}

// NewWriterForTests builds a writer with injectable filesystem hooks.
func NewWriterForTests(
	logger *slog.Logger,
	mkdirAll func(string, os.FileMode) error,
	writeFile func(string, []byte, os.FileMode) error,
) *Writer {
	w := NewWriter(logger)
	if mkdirAll != nil {
		w.mkdirAll = mkdirAll
	}
	if writeFile != nil {
		w.writeFile = writeFile
	}
	return w
}

// Write renders all four artifacts under outputDir, named after the
// identifier. Artifacts are written independently: one failure is
// logged and recorded, and the rest are still attempted. The partial
// set is returned together with a PartialError when anything failed.
func (w *Writer) Write(result *domain.TranscriptionResult, bvid string, meta domain.VideoMetadata, outputDir string) (domain.ArtifactSet, error) {
	if err := w.mkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	base := filepath.Join(outputDir, bvid)
	renderers := map[domain.ArtifactKind]func() []byte{
		domain.ArtifactText:     func() []byte { return renderText(result, meta) },
		domain.ArtifactJSON:     func() []byte { return renderJSON(result) },
		domain.ArtifactSRT:      func() []byte { return renderSRT(result) },
		domain.ArtifactMarkdown: func() []byte { return renderMarkdown(result, meta) },
	}

	set := domain.ArtifactSet{}
	var failed []domain.ArtifactKind
	for _, kind := range domain.ArtifactKinds {
		path := base + "." + string(kind)
		if err := w.writeFile(path, renderers[kind](), 0o644); err != nil {
			w.logger.Warn("artifact write failed", "kind", kind, "path", path, "error", err)
			failed = append(failed, kind)
			continue
		}
		set[kind] = path
	}

	if len(failed) > 0 {
		return set, &PartialError{Failed: failed}
	}
	return set, nil
}

// renderText emits the metadata header block followed by the raw
// aggregate text.
func renderText(result *domain.TranscriptionResult, meta domain.VideoMetadata) []byte {
	var buf bytes.Buffer
	if meta != (domain.VideoMetadata{}) {
		fmt.Fprintf(&buf, "Title: %s\n", meta.Title)
		fmt.Fprintf(&buf, "Uploader: %s\n", meta.Uploader)
		fmt.Fprintf(&buf, "BV: %s\n", meta.BVID)
		buf.WriteString(strings.Repeat("=", 50) + "\n\n")
	}
	buf.WriteString(result.Text)
	return buf.Bytes()
}

// renderJSON serializes the full result with stable field names.
// HTML escaping is disabled so non-ASCII text stays literal.
func renderJSON(result *domain.TranscriptionResult) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return buf.Bytes()
}

// renderSRT emits one numbered block per segment in input order.
func renderSRT(result *domain.TranscriptionResult) []byte {
	var buf bytes.Buffer
	for i, seg := range result.Segments {
		fmt.Fprintf(&buf, "%d\n", i+1)
		fmt.Fprintf(&buf, "%s --> %s\n", FormatTimestamp(seg.Start), FormatTimestamp(seg.End))
		fmt.Fprintf(&buf, "%s\n\n", strings.TrimSpace(seg.Text))
	}
	return buf.Bytes()
}

// renderMarkdown emits the formatted report: heading, metadata bullet
// list, then one timestamped line per segment.
func renderMarkdown(result *domain.TranscriptionResult, meta domain.VideoMetadata) []byte {
	title := strings.TrimSpace(meta.Title)
	if title == "" || title == "unknown" {
		title = fallbackTitle
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "- **Uploader**: %s\n", meta.Uploader)
	fmt.Fprintf(&buf, "- **BV**: %s\n", meta.BVID)
	fmt.Fprintf(&buf, "- **Duration**: %s\n\n", FormatDuration(result.Duration))

	buf.WriteString("## Transcript\n\n")
	for _, seg := range result.Segments {
		fmt.Fprintf(&buf, "**[%s]** %s\n\n", FormatDuration(seg.Start), strings.TrimSpace(seg.Text))
	}
	return buf.Bytes()
}
