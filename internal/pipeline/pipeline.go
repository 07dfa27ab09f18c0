// Package pipeline drives one video through the full
// identify/gate/download/extract/transcribe/persist sequence, emitting
// one running and one terminal progress event per stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bili-transcribe/internal/domain"
	"bili-transcribe/internal/progress"
	"bili-transcribe/internal/transcript"
	"bili-transcribe/internal/whisper"
)

// identifierExtractor resolves free-form input to a BV identifier.
type identifierExtractor interface {
	Extract(ctx context.Context, input string) (string, error)
}

// dependencyChecker probes the external capabilities the stages need.
type dependencyChecker interface {
	Run(ctx context.Context) domain.DependencyReport
}

// transcriptionEngine turns an audio file into a transcription result.
type transcriptionEngine interface {
	Transcribe(ctx context.Context, audioPath, model, language string) (domain.TranscriptionResult, error)
}

// transcriptWriter persists a transcription result as output artifacts.
type transcriptWriter interface {
	Write(result *domain.TranscriptionResult, bvid string, meta domain.VideoMetadata, outputDir string) (domain.ArtifactSet, error)
}

// executableResolver locates external tool binaries.
type executableResolver interface {
	Resolve(name string) (string, bool)
}

// Request is one transcription job.
type Request struct {
	Input        string
	Model        string
	Language     string
	OutputDir    string
	KeepVideo    bool
	SkipDownload bool
}

// Result describes a finished run.
type Result struct {
	BVID      string
	OutputDir string
	Files     domain.ArtifactSet
	Segments  int
	Language  string
}

// Deps wires the pipeline's collaborators. Runner and Stat are
// optional and default to the real implementations.
type Deps struct {
	Extractor identifierExtractor
	Checker   dependencyChecker
	Engine    transcriptionEngine
	Writer    transcriptWriter
	Resolver  executableResolver
	Sink      progress.Sink
	Logger    *slog.Logger
	WorkDir   string
	Runner    Runner
	Stat      func(string) (os.FileInfo, error)
	Cleaner   *Cleaner
}

// Pipeline orchestrates the stages for one request at a time.
type Pipeline struct {
	extractor identifierExtractor
	checker   dependencyChecker
	engine    transcriptionEngine
	writer    transcriptWriter
	resolver  executableResolver
	sink      progress.Sink
	logger    *slog.Logger
	workDir   string
	runner    Runner
	stat      func(string) (os.FileInfo, error)
	cleaner   *Cleaner
}

// New builds a pipeline from its collaborators.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Runner == nil {
		deps.Runner = execRunner{}
	}
	if deps.Stat == nil {
		deps.Stat = os.Stat
	}
	if deps.Cleaner == nil {
		deps.Cleaner = NewCleaner(deps.WorkDir, deps.Logger)
	}
	return &Pipeline{
		extractor: deps.Extractor,
		checker:   deps.Checker,
		engine:    deps.Engine,
		writer:    deps.Writer,
		resolver:  deps.Resolver,
		sink:      deps.Sink,
		logger:    deps.Logger,
		workDir:   deps.WorkDir,
		runner:    deps.Runner,
		stat:      deps.Stat,
		cleaner:   deps.Cleaner,
	}
}

// runState tracks per-run progress so the stage order invariant is
// enforced at emit time rather than trusted by convention.
type runState struct {
	pipeline *Pipeline
	request  Request
	current  domain.Stage
	bvid     string
}

// Run executes every stage for the request. Cleanup always runs, even
// when an earlier stage failed, and the returned error is always a
// *Error carrying the failure kind and stage.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	state := &runState{pipeline: p, request: req}
	result, runErr := state.run(ctx)
	state.cleanup()
	return result, runErr
}

func (s *runState) run(ctx context.Context) (Result, error) {
	bvid, err := s.identify(ctx)
	if err != nil {
		return Result{}, err
	}
	s.bvid = bvid

	if err := s.gate(ctx); err != nil {
		return Result{}, err
	}

	videoPath, err := s.download(ctx)
	if err != nil {
		return Result{}, err
	}

	audioPath, err := s.extractAudio(ctx, videoPath)
	if err != nil {
		return Result{}, err
	}

	transcription, err := s.transcribe(ctx, audioPath)
	if err != nil {
		return Result{}, err
	}

	return s.persist(ctx, &transcription)
}

func (s *runState) identify(ctx context.Context) (string, error) {
	s.begin(domain.StageIdentify, "resolving video identifier")
	bvid, err := s.pipeline.extractor.Extract(ctx, s.request.Input)
	if err != nil {
		return "", s.fail(ctx, domain.StageIdentify, KindIdentifierNotFound,
			fmt.Sprintf("no BV identifier in %q", s.request.Input), CommandLog{}, err)
	}
	s.complete(domain.StageIdentify, "identifier "+bvid, map[string]any{"bvid": bvid})
	return bvid, nil
}

func (s *runState) gate(ctx context.Context) error {
	p := s.pipeline
	s.begin(domain.StageGate, "checking external dependencies")

	report := p.checker.Run(ctx)
	var missing, hints []string
	for _, item := range report.Items {
		p.logger.Info("dependency probe",
			"capability", item.ID, "status", string(item.Status), "detail", item.Message, "hint", item.Hint)
		if item.Status != domain.DependencyStatusFail {
			continue
		}
		missing = append(missing, item.Name)
		if item.Hint != "" {
			hints = append(hints, item.Hint)
		}
	}
	if report.HasFailures {
		// The aggregate failure names every missing capability and its
		// install guidance, not just the first miss.
		msg := "missing dependencies: " + strings.Join(missing, ", ")
		if len(hints) > 0 {
			msg += ". " + strings.Join(hints, ". ")
		}
		return s.fail(ctx, domain.StageGate, KindMissingDependencies, msg, CommandLog{}, nil)
	}
	s.complete(domain.StageGate, "all dependencies available", map[string]any{"checked": len(report.Items)})
	return nil
}

func (s *runState) download(ctx context.Context) (string, error) {
	p := s.pipeline

	if s.request.SkipDownload {
		s.begin(domain.StageDownload, "reusing existing download")
		path, ok := findVideoArtifact(p.workDir, s.bvid, p.stat)
		if !ok {
			return "", s.fail(ctx, domain.StageDownload, KindMissingInputFile,
				fmt.Sprintf("no existing video for %s in %s", s.bvid, p.workDir), CommandLog{}, nil)
		}
		s.emit(domain.StageDownload, domain.StageSkipped, "found "+filepath.Base(path), map[string]any{"path": path})
		return path, nil
	}

	s.begin(domain.StageDownload, "downloading video")
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return "", s.fail(ctx, domain.StageDownload, KindDownloadProduceNoFile,
			fmt.Sprintf("cannot create work directory %s: %v", p.workDir, err), CommandLog{}, err)
	}
	bin := s.resolvedOrBare("BBDown")
	log, runErr := p.runner.Run(ctx, bin,
		"--work-dir", p.workDir, "--file-pattern", s.bvid, "-p", "1", s.bvid)
	if runErr != nil {
		p.logger.Warn("downloader exited with error", "exitCode", log.ExitCode, "error", runErr)
	}

	// The downloader's exit code is unreliable; the produced file is
	// the source of truth.
	path, ok := findVideoArtifact(p.workDir, s.bvid, p.stat)
	if !ok {
		return "", s.fail(ctx, domain.StageDownload, KindDownloadProduceNoFile,
			"downloader produced no playable video file", log, runErr)
	}
	if !sniffVideo(path) {
		p.logger.Warn("downloaded file does not sniff as video, continuing", "path", path)
	}
	s.complete(domain.StageDownload, "downloaded "+filepath.Base(path), map[string]any{"path": path})
	return path, nil
}

func (s *runState) extractAudio(ctx context.Context, videoPath string) (string, error) {
	p := s.pipeline
	s.begin(domain.StageExtractAudio, "extracting audio track")

	audioPath := filepath.Join(p.workDir, s.bvid+".mp3")
	bin := s.resolvedOrBare("ffmpeg")
	log, runErr := p.runner.Run(ctx, bin,
		"-i", videoPath, "-vn", "-acodec", "libmp3lame", "-q:a", "2", "-y", audioPath)

	info, statErr := p.stat(audioPath)
	if runErr != nil || statErr != nil || info.Size() == 0 {
		// A failed encode can leave a truncated file behind; a stale
		// artifact must not feed the transcriber.
		if statErr == nil {
			if err := os.Remove(audioPath); err != nil {
				p.logger.Warn("could not remove stale audio artifact", "path", audioPath, "error", err)
			}
		}
		return "", s.fail(ctx, domain.StageExtractAudio, KindAudioExtractionFailed,
			"transcoder produced no usable audio file", log, runErr)
	}
	s.complete(domain.StageExtractAudio, "extracted "+filepath.Base(audioPath), map[string]any{"path": audioPath})
	return audioPath, nil
}

func (s *runState) transcribe(ctx context.Context, audioPath string) (domain.TranscriptionResult, error) {
	p := s.pipeline
	model := domain.NormalizeModelSize(s.request.Model)
	s.begin(domain.StageTranscribe, "transcribing with model "+model)

	result, err := p.engine.Transcribe(ctx, audioPath, model, s.request.Language)
	if err != nil {
		kind := KindTranscriptionFailed
		if errors.Is(err, whisper.ErrModelLoad) {
			kind = KindModelLoadFailed
		}
		return domain.TranscriptionResult{}, s.fail(ctx, domain.StageTranscribe, kind, err.Error(), CommandLog{}, err)
	}
	s.complete(domain.StageTranscribe, fmt.Sprintf("%d segments", len(result.Segments)),
		map[string]any{"segments": len(result.Segments), "language": result.Language})
	return result, nil
}

func (s *runState) persist(ctx context.Context, result *domain.TranscriptionResult) (Result, error) {
	p := s.pipeline
	s.begin(domain.StagePersist, "writing transcript artifacts")

	// The other stages observe cancellation through their subprocess or
	// engine call; persist has none, so it checks on entry.
	if ctx.Err() != nil {
		return Result{}, s.fail(ctx, domain.StagePersist, KindInterrupted, "interrupted", CommandLog{}, ctx.Err())
	}

	meta := domain.VideoMetadata{BVID: s.bvid, Title: "unknown", Uploader: "unknown"}
	files, writeErr := p.writer.Write(result, s.bvid, meta, s.request.OutputDir)

	out := Result{
		BVID:      s.bvid,
		OutputDir: s.request.OutputDir,
		Files:     files,
		Segments:  len(result.Segments),
		Language:  result.Language,
	}

	if writeErr == nil {
		s.complete(domain.StagePersist, fmt.Sprintf("wrote %d files to %s", len(files), s.request.OutputDir),
			map[string]any{"written": len(files)})
		return out, nil
	}

	// A partial write is not fatal to the stage: whatever was written
	// stays on disk and the run still reports which formats failed.
	var partial *transcript.PartialError
	if errors.As(writeErr, &partial) && len(files) > 0 {
		failed := make([]string, 0, len(partial.Failed))
		for _, kind := range partial.Failed {
			failed = append(failed, string(kind))
		}
		s.complete(domain.StagePersist, fmt.Sprintf("wrote %d of %d files", len(files), len(domain.ArtifactKinds)),
			map[string]any{"written": len(files), "failed": failed})
		return out, &Error{
			Kind:    KindPartialWriteFailure,
			Stage:   domain.StagePersist,
			Message: writeErr.Error(),
			Err:     writeErr,
		}
	}

	return out, s.fail(ctx, domain.StagePersist, KindPartialWriteFailure, writeErr.Error(), CommandLog{}, writeErr)
}

func (s *runState) cleanup() {
	s.begin(domain.StageCleanup, "removing intermediate files")
	s.pipeline.cleaner.Run(s.request.KeepVideo, s.bvid)
	s.complete(domain.StageCleanup, "done", nil)
}

// fail emits the stage's terminal failed event and wraps the cause.
// An interrupt observed anywhere overrides the stage-specific kind.
func (s *runState) fail(ctx context.Context, stage domain.Stage, kind Kind, msg string, log CommandLog, cause error) error {
	if ctx.Err() != nil {
		kind = KindInterrupted
		msg = "interrupted during " + string(stage)
		cause = ctx.Err()
	}
	s.emit(stage, domain.StageFailed, msg, map[string]any{"errorType": string(kind)})
	return &Error{Kind: kind, Stage: stage, Message: msg, CommandLog: log, Err: cause}
}

func (s *runState) begin(stage domain.Stage, msg string) {
	if !domain.ValidTransition(s.current, stage) {
		s.pipeline.logger.Error("stage order violation", "from", string(s.current), "to", string(stage))
	}
	s.current = stage
	s.emit(stage, domain.StageRunning, msg, nil)
}

func (s *runState) complete(stage domain.Stage, msg string, data map[string]any) {
	s.emit(stage, domain.StageCompleted, msg, data)
}

func (s *runState) emit(stage domain.Stage, status domain.StageStatus, msg string, data map[string]any) {
	if s.pipeline.sink == nil {
		return
	}
	s.pipeline.sink.Emit(progress.Event{Stage: stage, Status: status, Message: msg, Data: data})
}

// resolvedOrBare returns the resolved absolute path for a tool, or the
// bare name so exec can still try PATH as a last resort.
func (s *runState) resolvedOrBare(name string) string {
	if s.pipeline.resolver == nil {
		return name
	}
	if path, ok := s.pipeline.resolver.Resolve(name); ok {
		return path
	}
	return name
}
