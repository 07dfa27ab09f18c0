// Package whisper adapts the openai-whisper python library to the
// pipeline's transcription contract. The library is driven through a
// short inline python program that prints one JSON document on stdout.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"bili-transcribe/internal/domain"
)

// ErrModelLoad marks failures while loading the named model, so
// operators can tell a bad install from bad input.
var ErrModelLoad = errors.New("whisper model load failed")

// ErrTranscription marks failures during transcription itself.
var ErrTranscription = errors.New("whisper transcription failed")

// transcribeProgram loads the model, transcribes with half-precision
// disabled for portability, and reports the failing phase on stderr
// paths. Empty language means engine auto-detection.
const transcribeProgram = `
import json, sys

audio, model_name, lang = sys.argv[1], sys.argv[2], (sys.argv[3] or None)
try:
    import whisper
    model = whisper.load_model(model_name)
except Exception as exc:
    print(json.dumps({"phase": "load", "error": str(exc)}))
    sys.exit(3)
try:
    result = model.transcribe(audio, language=lang, fp16=False, verbose=False)
except Exception as exc:
    print(json.dumps({"phase": "transcribe", "error": str(exc)}))
    sys.exit(4)
segments = [
    {"start": float(s["start"]), "end": float(s["end"]), "text": s["text"]}
    for s in result.get("segments", [])
]
out = {"text": result.get("text", ""), "segments": segments, "language": result.get("language", "")}
print(json.dumps(out, ensure_ascii=False))
`

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// failurePayload is printed by the python program before a nonzero exit.
type failurePayload struct {
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// Engine invokes the transcription library through a python runtime.
type Engine struct {
	python       string
	pythonSource func() string
	runner       commandRunner
}

// New builds an engine using the given python executable path. An
// empty path falls back to "python3" on PATH.
func New(pythonPath string) *Engine {
	if strings.TrimSpace(pythonPath) == "" {
		pythonPath = "python3"
	}
	return &Engine{python: pythonPath, runner: execRunner{}}
}

// NewFromProbe builds an engine whose interpreter is resolved at
// transcribe time. The source is typically the dependency checker,
// which runs its import probes after the engine is constructed.
func NewFromProbe(source func() string) *Engine {
	e := New("")
	e.pythonSource = source
	return e
}

// NewForTests builds an engine with an injected runner.
func NewForTests(pythonPath string, runner commandRunner) *Engine {
	e := New(pythonPath)
	if runner != nil {
		e.runner = runner
	}
	return e
}

// Transcribe runs the engine on one audio file and parses the result.
// The model name must already be normalized to a supported size.
func (e *Engine) Transcribe(ctx context.Context, audioPath, model, language string) (domain.TranscriptionResult, error) {
	lang := language
	if strings.EqualFold(strings.TrimSpace(lang), "auto") {
		lang = ""
	}

	python := e.python
	if e.pythonSource != nil {
		if probed := strings.TrimSpace(e.pythonSource()); probed != "" {
			python = probed
		}
	}

	stdout, stderr, runErr := e.runner.Run(ctx, python, "-c", transcribeProgram, audioPath, model, lang)
	if runErr != nil {
		if ctx.Err() != nil {
			return domain.TranscriptionResult{}, ctx.Err()
		}
		return domain.TranscriptionResult{}, e.mapFailure(stdout, stderr, runErr)
	}

	var result domain.TranscriptionResult
	if err := json.Unmarshal([]byte(lastJSONLine(stdout)), &result); err != nil {
		return domain.TranscriptionResult{}, fmt.Errorf("%w: unparseable engine output: %v", ErrTranscription, err)
	}

	if result.Duration == 0 && len(result.Segments) > 0 {
		result.Duration = result.Segments[len(result.Segments)-1].End
	}
	return result, nil
}

// mapFailure attributes a nonzero exit to the load or transcribe phase
// using the failure payload the program printed, if any.
func (e *Engine) mapFailure(stdout, stderr string, runErr error) error {
	var payload failurePayload
	if err := json.Unmarshal([]byte(lastJSONLine(stdout)), &payload); err == nil && payload.Error != "" {
		if payload.Phase == "load" {
			return fmt.Errorf("%w: %s", ErrModelLoad, payload.Error)
		}
		return fmt.Errorf("%w: %s", ErrTranscription, payload.Error)
	}

	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = runErr.Error()
	}
	return fmt.Errorf("%w: %s", ErrTranscription, detail)
}

// lastJSONLine returns the last non-empty stdout line that looks like
// a JSON object; the engine may emit warnings before its payload.
func lastJSONLine(out string) string {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") {
			return line
		}
	}
	return strings.TrimSpace(out)
}
