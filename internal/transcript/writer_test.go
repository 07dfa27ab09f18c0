package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bili-transcribe/internal/domain"
)

func sampleResult() *domain.TranscriptionResult {
	return &domain.TranscriptionResult{
		Text:     "大家好 欢迎收看",
		Language: "zh",
		Duration: 5.5,
		Segments: []domain.Segment{
			{Start: 0, End: 2.5, Text: " 大家好 "},
			{Start: 2.5, End: 5.5, Text: "欢迎收看"},
		},
	}
}

func sampleMeta() domain.VideoMetadata {
	return domain.VideoMetadata{BVID: "BV1xx411c7mD", Title: "unknown", Uploader: "unknown"}
}

// TestWriteProducesAllArtifacts checks all four files land on disk
// with identifier-derived names.
func TestWriteProducesAllArtifacts(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "out")
	writer := NewWriter(nil)

	set, err := writer.Write(sampleResult(), "BV1xx411c7mD", sampleMeta(), outputDir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(set) != 4 {
		t.Fatalf("artifact count = %d, want 4", len(set))
	}
	for _, kind := range domain.ArtifactKinds {
		path, ok := set[kind]
		if !ok {
			t.Fatalf("missing artifact kind %q", kind)
		}
		if path != filepath.Join(outputDir, "BV1xx411c7mD."+string(kind)) {
			t.Fatalf("artifact path = %q", path)
		}
		if _, statErr := os.Stat(path); statErr != nil {
			t.Fatalf("artifact %q not on disk: %v", kind, statErr)
		}
	}
}

// TestWriteTextHeader checks the metadata header precedes the raw text.
func TestWriteTextHeader(t *testing.T) {
	outputDir := t.TempDir()
	writer := NewWriter(nil)

	set, err := writer.Write(sampleResult(), "BV1xx411c7mD", sampleMeta(), outputDir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(set[domain.ArtifactText])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "Title: unknown\nUploader: unknown\nBV: BV1xx411c7mD\n") {
		t.Fatalf("text header missing:\n%s", text)
	}
	if !strings.Contains(text, strings.Repeat("=", 50)+"\n\n大家好 欢迎收看") {
		t.Fatalf("text body missing:\n%s", text)
	}
}

// TestWriteJSONKeepsNonASCIILiteral checks no HTML or unicode escaping.
func TestWriteJSONKeepsNonASCIILiteral(t *testing.T) {
	outputDir := t.TempDir()
	writer := NewWriter(nil)

	set, err := writer.Write(sampleResult(), "BV1xx411c7mD", sampleMeta(), outputDir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(set[domain.ArtifactJSON])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "大家好") {
		t.Fatalf("json should keep non-ASCII literal:\n%s", data)
	}
	if strings.Contains(string(data), `\u`) {
		t.Fatalf("json contains escaped unicode:\n%s", data)
	}
}

// TestWriteJSONKeepsZeroValuedFields checks the artifact keeps its
// field names even when language and duration are unset.
func TestWriteJSONKeepsZeroValuedFields(t *testing.T) {
	outputDir := t.TempDir()
	writer := NewWriter(nil)

	result := &domain.TranscriptionResult{Text: "", Segments: []domain.Segment{}}
	set, err := writer.Write(result, "BV1xx411c7mD", sampleMeta(), outputDir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(set[domain.ArtifactJSON])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, key := range []string{`"language"`, `"duration"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("json missing %s:\n%s", key, data)
		}
	}
}

// TestWriteSRTBlocks checks numbered blocks with timestamp ranges and
// trimmed text.
func TestWriteSRTBlocks(t *testing.T) {
	outputDir := t.TempDir()
	writer := NewWriter(nil)

	set, err := writer.Write(sampleResult(), "BV1xx411c7mD", sampleMeta(), outputDir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(set[domain.ArtifactSRT])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	want := "1\n00:00:00,000 --> 00:00:02,500\n大家好\n\n" +
		"2\n00:00:02,500 --> 00:00:05,500\n欢迎收看\n\n"
	if string(data) != want {
		t.Fatalf("srt = %q, want %q", data, want)
	}
}

// TestWriteMarkdownReport checks the heading fallback and per-segment
// timestamped lines.
func TestWriteMarkdownReport(t *testing.T) {
	outputDir := t.TempDir()
	writer := NewWriter(nil)

	set, err := writer.Write(sampleResult(), "BV1xx411c7mD", sampleMeta(), outputDir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(set[domain.ArtifactMarkdown])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	md := string(data)

	if !strings.HasPrefix(md, "# Video Transcript\n") {
		t.Fatalf("markdown should use the fallback title:\n%s", md)
	}
	for _, want := range []string{
		"- **BV**: BV1xx411c7mD\n",
		"- **Duration**: 0:05\n",
		"## Transcript\n",
		"**[0:00]** 大家好\n",
		"**[0:02]** 欢迎收看\n",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

// TestWritePartialFailureKeepsOthers checks one failing artifact does
// not stop the rest and is reported precisely.
func TestWritePartialFailureKeepsOthers(t *testing.T) {
	outputDir := t.TempDir()
	writer := NewWriterForTests(nil, os.MkdirAll, func(path string, data []byte, mode os.FileMode) error {
		if strings.HasSuffix(path, ".srt") {
			return errors.New("disk full")
		}
		return os.WriteFile(path, data, mode)
	})

	set, err := writer.Write(sampleResult(), "BV1xx411c7mD", sampleMeta(), outputDir)
	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("Write() error = %v, want PartialError", err)
	}
	if len(partial.Failed) != 1 || partial.Failed[0] != domain.ArtifactSRT {
		t.Fatalf("failed kinds = %v, want [srt]", partial.Failed)
	}
	if len(set) != 3 {
		t.Fatalf("artifact count = %d, want 3", len(set))
	}
	if _, ok := set[domain.ArtifactSRT]; ok {
		t.Fatal("failed artifact should not appear in the set")
	}
}

// TestWriteOutputDirFailure checks a directory failure aborts the run.
func TestWriteOutputDirFailure(t *testing.T) {
	writer := NewWriterForTests(nil, func(string, os.FileMode) error {
		return errors.New("permission denied")
	}, nil)

	set, err := writer.Write(sampleResult(), "BV1xx411c7mD", sampleMeta(), "/blocked")
	if err == nil {
		t.Fatal("Write() error = nil, want failure")
	}
	if set != nil {
		t.Fatalf("artifact set = %v, want nil", set)
	}
}
