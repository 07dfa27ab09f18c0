package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bili-transcribe/internal/domain"
	"bili-transcribe/internal/pipeline"
)

// fakeStore serves fixed settings.
type fakeStore struct {
	settings domain.Settings
	err      error
}

func (f fakeStore) Load() (domain.Settings, error) { return f.settings, f.err }
func (f fakeStore) Save(domain.Settings) error     { return nil }

// fakePipeline captures the request and returns a canned outcome.
type fakePipeline struct {
	request pipeline.Request
	result  pipeline.Result
	err     error
}

func (f *fakePipeline) Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	f.request = req
	return f.result, f.err
}

func newTestApp(t *testing.T, pipe *fakePipeline, settings domain.Settings) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := NewForTests(&stdout, &stderr, fakeStore{settings: settings}, t.TempDir(),
		func(deps pipeline.Deps) pipelineRunner { return pipe })
	return app, &stdout, &stderr
}

func testSettings() domain.Settings {
	return domain.Settings{Model: "small", Language: "zh", OutputDir: "/srv/transcripts"}
}

func successResult() pipeline.Result {
	return pipeline.Result{
		BVID:      "BV1xx411c7mD",
		OutputDir: "/srv/transcripts",
		Segments:  12,
		Files: domain.ArtifactSet{
			domain.ArtifactText: "/srv/transcripts/BV1xx411c7mD.txt",
			domain.ArtifactJSON: "/srv/transcripts/BV1xx411c7mD.json",
		},
	}
}

// TestRunSuccessExitCode checks the zero exit and human summary.
func TestRunSuccessExitCode(t *testing.T) {
	pipe := &fakePipeline{result: successResult()}
	app, stdout, _ := newTestApp(t, pipe, testSettings())

	code := app.Run(context.Background(), Options{Input: "BV1xx411c7mD"})
	require.Equal(t, ExitOK, code)
	assert.Contains(t, stdout.String(), "transcribed BV1xx411c7mD (12 segments)")
	assert.Contains(t, stdout.String(), "/srv/transcripts/BV1xx411c7mD.txt")
}

// TestRunMissingInputFails checks the argument requirement.
func TestRunMissingInputFails(t *testing.T) {
	pipe := &fakePipeline{}
	app, _, stderr := newTestApp(t, pipe, testSettings())

	code := app.Run(context.Background(), Options{})
	require.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr.String(), "required")
	assert.Empty(t, pipe.request.Input)
}

// TestRunFlagPrecedenceOverSettings checks explicit flags beat stored
// configuration and empty flags fall through to it.
func TestRunFlagPrecedenceOverSettings(t *testing.T) {
	pipe := &fakePipeline{result: successResult()}
	app, _, _ := newTestApp(t, pipe, testSettings())

	app.Run(context.Background(), Options{
		Input: "BV1xx411c7mD",
		Model: "large",
	})

	assert.Equal(t, "large", pipe.request.Model)
	assert.Equal(t, "zh", pipe.request.Language)
	assert.Equal(t, "/srv/transcripts", pipe.request.OutputDir)
}

// TestRunMachineModeTerminalJSON checks the stdout contract in machine
// mode.
func TestRunMachineModeTerminalJSON(t *testing.T) {
	pipe := &fakePipeline{result: successResult()}
	app, stdout, _ := newTestApp(t, pipe, testSettings())

	code := app.Run(context.Background(), Options{Input: "BV1xx411c7mD", Machine: true})
	require.Equal(t, ExitOK, code)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded), "stdout: %s", stdout.String())
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "BV1xx411c7mD", decoded["bvid"])
	assert.Equal(t, "/srv/transcripts", decoded["output_dir"])
	files := decoded["files"].(map[string]any)
	assert.Equal(t, "/srv/transcripts/BV1xx411c7mD.txt", files["txt"])
	assert.NotContains(t, decoded, "error")
}

// TestRunMachineModeFailureJSON checks error fields and exit code.
func TestRunMachineModeFailureJSON(t *testing.T) {
	pipe := &fakePipeline{err: &pipeline.Error{
		Kind:    pipeline.KindDownloadProduceNoFile,
		Stage:   domain.StageDownload,
		Message: "downloader produced no playable video file",
	}}
	app, stdout, _ := newTestApp(t, pipe, testSettings())

	code := app.Run(context.Background(), Options{Input: "BV1xx411c7mD", Machine: true})
	require.Equal(t, ExitFailure, code)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, "DownloadProduceNoFile", decoded["error_type"])
	assert.Contains(t, decoded["error"], "no playable video")
}

// TestRunInterruptedExitCode checks the 130 convention.
func TestRunInterruptedExitCode(t *testing.T) {
	pipe := &fakePipeline{err: &pipeline.Error{
		Kind:    pipeline.KindInterrupted,
		Stage:   domain.StageTranscribe,
		Message: "interrupted during transcribe",
		Err:     context.Canceled,
	}}
	app, _, _ := newTestApp(t, pipe, testSettings())

	code := app.Run(context.Background(), Options{Input: "BV1xx411c7mD"})
	require.Equal(t, ExitInterrupted, code)
}

// TestRunPartialWriteKeepsFilesAndFails checks a partial persist is a
// nonzero exit that still lists what landed.
func TestRunPartialWriteKeepsFilesAndFails(t *testing.T) {
	pipe := &fakePipeline{
		result: successResult(),
		err: &pipeline.Error{
			Kind:    pipeline.KindPartialWriteFailure,
			Stage:   domain.StagePersist,
			Message: "failed to write artifacts: srt, md",
		},
	}
	app, stdout, stderr := newTestApp(t, pipe, testSettings())

	code := app.Run(context.Background(), Options{Input: "BV1xx411c7mD"})
	require.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr.String(), "failed to write artifacts")
	assert.Contains(t, stdout.String(), "partial output:")
	assert.Contains(t, stdout.String(), "/srv/transcripts/BV1xx411c7mD.txt")
}

// TestRunSettingsLoadFailureUsesDefaults checks a broken config file
// does not block a run.
func TestRunSettingsLoadFailureUsesDefaults(t *testing.T) {
	pipe := &fakePipeline{result: successResult()}
	var stdout, stderr bytes.Buffer
	app := NewForTests(&stdout, &stderr, fakeStore{err: errors.New("yaml: bad")}, t.TempDir(),
		func(deps pipeline.Deps) pipelineRunner { return pipe })

	code := app.Run(context.Background(), Options{Input: "BV1xx411c7mD"})
	require.Equal(t, ExitOK, code)
	assert.Equal(t, domain.DefaultModelSize, pipe.request.Model)
}
