// Package bootstrap wires the application together: configuration,
// logging, dependency diagnostics, the pipeline, and its collaborators.
package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"bili-transcribe/internal/config"
	"bili-transcribe/internal/diagnostics"
	"bili-transcribe/internal/domain"
	"bili-transcribe/internal/ident"
	"bili-transcribe/internal/lookup"
	"bili-transcribe/internal/pipeline"
	"bili-transcribe/internal/progress"
	"bili-transcribe/internal/transcript"
	"bili-transcribe/internal/whisper"
)

// Exit codes for the process.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// Options carries the command-line selections for one invocation.
type Options struct {
	Input        string
	Model        string
	Language     string
	OutputDir    string
	KeepVideo    bool
	SkipDownload bool
	Machine      bool
	FixDeps      bool
}

// terminalResult is the machine-readable summary printed to stdout
// when machine mode is on.
type terminalResult struct {
	Success   bool              `json:"success"`
	BVID      string            `json:"bvid,omitempty"`
	OutputDir string            `json:"output_dir,omitempty"`
	Files     map[string]string `json:"files,omitempty"`
	Segments  int               `json:"segments,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorType string            `json:"error_type,omitempty"`
}

// App owns the process-level wiring and translates pipeline outcomes
// into exit codes and terminal output.
type App struct {
	stdout  io.Writer
	stderr  io.Writer
	store   config.Store
	workDir string
	fix     func(ctx context.Context, capabilityID string) error
	newPipe func(deps pipeline.Deps) pipelineRunner
}

type pipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// New builds the app with real collaborators.
func New() *App {
	return &App{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		store:   config.NewYAMLStore(defaultConfigPath()),
		workDir: filepath.Join(os.TempDir(), "bili-transcribe"),
		fix:     diagnostics.Fix,
		newPipe: func(deps pipeline.Deps) pipelineRunner { return pipeline.New(deps) },
	}
}

// NewForTests builds the app with injectable streams, store and
// pipeline factory.
func NewForTests(stdout, stderr io.Writer, store config.Store, workDir string, newPipe func(deps pipeline.Deps) pipelineRunner) *App {
	app := New()
	app.stdout = stdout
	app.stderr = stderr
	if store != nil {
		app.store = store
	}
	if workDir != "" {
		app.workDir = workDir
	}
	if newPipe != nil {
		app.newPipe = newPipe
	}
	app.fix = func(ctx context.Context, capabilityID string) error { return nil }
	return app
}

// Run executes one invocation end to end and returns the process exit
// code.
func (a *App) Run(ctx context.Context, opts Options) int {
	logger := a.newLogger()

	settings := a.loadSettings(logger)
	req := a.mergeRequest(opts, settings)

	resolver := lookup.NewResolver()
	checker := diagnostics.NewChecker(resolver)

	if opts.FixDeps {
		a.fixDependencies(ctx, logger, checker)
		if opts.Input == "" {
			report := checker.Run(ctx)
			a.printDependencyReport(report)
			if report.HasFailures {
				return ExitFailure
			}
			return ExitOK
		}
	}

	if opts.Input == "" {
		fmt.Fprintln(a.stderr, "error: a video URL or BV identifier is required")
		return ExitFailure
	}

	recorder := progress.NewRecorder(64)
	pipe := a.newPipe(pipeline.Deps{
		Extractor: ident.NewExtractor(logger),
		Checker:   checker,
		Engine:    whisper.NewFromProbe(checker.WhisperPython),
		Writer:    transcript.NewWriter(logger),
		Resolver:  resolver,
		Sink:      a.buildSink(opts.Machine, recorder),
		Logger:    logger,
		WorkDir:   a.workDir,
	})

	result, runErr := pipe.Run(ctx, req)
	return a.report(opts.Machine, result, runErr)
}

// newLogger builds the process logger with a unique run identifier so
// interleaved log lines from concurrent invocations stay attributable.
func (a *App) newLogger() *slog.Logger {
	handler := slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler).With("run", uuid.NewString())
}

func (a *App) loadSettings(logger *slog.Logger) domain.Settings {
	settings, err := a.store.Load()
	if err != nil {
		logger.Warn("could not load settings, using defaults", "error", err)
		return config.DefaultSettings()
	}
	return settings
}

// mergeRequest overlays the command-line options on stored settings;
// an explicit flag always wins.
func (a *App) mergeRequest(opts Options, settings domain.Settings) pipeline.Request {
	req := pipeline.Request{
		Input:        opts.Input,
		Model:        settings.Model,
		Language:     settings.Language,
		OutputDir:    settings.OutputDir,
		KeepVideo:    opts.KeepVideo,
		SkipDownload: opts.SkipDownload,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Language != "" {
		req.Language = opts.Language
	}
	if opts.OutputDir != "" {
		req.OutputDir = opts.OutputDir
	}
	req.OutputDir = config.ExpandPath(req.OutputDir)
	return req
}

// buildSink routes human progress and event JSON so machine mode keeps
// stdout clean for the terminal result object.
func (a *App) buildSink(machine bool, recorder *progress.Recorder) progress.Sink {
	if machine {
		return progress.MultiSink{
			progress.NewConsoleSink(a.stderr),
			progress.NewJSONSink(a.stderr),
			recorder,
		}
	}
	return progress.MultiSink{
		progress.NewConsoleSink(a.stdout),
		recorder,
	}
}

func (a *App) fixDependencies(ctx context.Context, logger *slog.Logger, checker *diagnostics.Checker) {
	report := checker.Run(ctx)
	for _, item := range report.Items {
		if item.Status != domain.DependencyStatusFail {
			continue
		}
		logger.Info("attempting dependency install", "capability", item.ID)
		if err := a.fix(ctx, item.ID); err != nil {
			logger.Warn("dependency install failed", "capability", item.ID, "error", err)
		}
	}
}

func (a *App) printDependencyReport(report domain.DependencyReport) {
	for _, item := range report.Items {
		mark := "ok"
		if item.Status == domain.DependencyStatusFail {
			mark = "missing"
		}
		fmt.Fprintf(a.stdout, "%-24s %s  %s\n", item.Name, mark, item.Message)
		if item.Status == domain.DependencyStatusFail && item.Hint != "" {
			fmt.Fprintf(a.stdout, "%-24s hint: %s\n", "", item.Hint)
		}
	}
}

// report prints the terminal summary and maps the outcome to an exit
// code. Partial writes still surface whatever files were produced.
func (a *App) report(machine bool, result pipeline.Result, runErr error) int {
	if machine {
		a.printMachineResult(result, runErr)
	} else {
		a.printHumanResult(result, runErr)
	}

	if runErr == nil {
		return ExitOK
	}
	if pipeline.KindOf(runErr) == pipeline.KindInterrupted || errors.Is(runErr, context.Canceled) {
		return ExitInterrupted
	}
	return ExitFailure
}

func (a *App) printMachineResult(result pipeline.Result, runErr error) {
	out := terminalResult{
		Success:   runErr == nil,
		BVID:      result.BVID,
		OutputDir: result.OutputDir,
		Segments:  result.Segments,
	}
	if len(result.Files) > 0 {
		out.Files = make(map[string]string, len(result.Files))
		for kind, path := range result.Files {
			out.Files[string(kind)] = path
		}
	}
	if runErr != nil {
		out.Error = runErr.Error()
		out.ErrorType = string(pipeline.KindOf(runErr))
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(a.stderr, "error: cannot encode result: %v\n", err)
	}
}

func (a *App) printHumanResult(result pipeline.Result, runErr error) {
	if runErr != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", runErr)
		if len(result.Files) == 0 {
			return
		}
		fmt.Fprintln(a.stdout, "partial output:")
	} else {
		fmt.Fprintf(a.stdout, "transcribed %s (%d segments)\n", result.BVID, result.Segments)
	}
	for _, kind := range domain.ArtifactKinds {
		if path, ok := result.Files[kind]; ok {
			fmt.Fprintf(a.stdout, "  %s\n", path)
		}
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".bili-transcribe", "config.yaml")
	}
	return filepath.Join(home, ".bili-transcribe", "config.yaml")
}
