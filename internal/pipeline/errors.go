package pipeline

import (
	"errors"
	"fmt"

	"bili-transcribe/internal/domain"
)

// Kind categorizes a pipeline failure for operators and for the
// machine-readable terminal result.
type Kind string

const (
	KindIdentifierNotFound    Kind = "IdentifierNotFound"
	KindMissingDependencies   Kind = "MissingDependencies"
	KindMissingInputFile      Kind = "MissingInputFile"
	KindDownloadProduceNoFile Kind = "DownloadProduceNoFile"
	KindAudioExtractionFailed Kind = "AudioExtractionFailed"
	KindModelLoadFailed       Kind = "ModelLoadFailed"
	KindTranscriptionFailed   Kind = "TranscriptionFailed"
	KindPartialWriteFailure   Kind = "PartialWriteFailure"
	KindInterrupted           Kind = "Interrupted"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Error is a categorized, stage-aware failure with optional command
// context from the external tool that caused it.
type Error struct {
	Kind       Kind         `json:"kind"`
	Stage      domain.Stage `json:"stage"`
	Message    string       `json:"message"`
	CommandLog CommandLog   `json:"commandLog,omitempty"`
	Err        error        `json:"-"`
}

// Error formats pipeline failures for logs and terminal output.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s (cmd=%s exit=%d)", e.Stage, e.Message, e.CommandLog.Command, e.CommandLog.ExitCode)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf extracts the failure category from any error, or "".
func KindOf(err error) Kind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return ""
}
