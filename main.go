// Command bili-transcribe downloads a Bilibili video, extracts its
// audio track and produces transcript files in four formats.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bili-transcribe/internal/bootstrap"
	"bili-transcribe/internal/domain"
)

// modelUsage lists the supported model sizes for the flag help text.
func modelUsage() string {
	ids := make([]string, len(domain.WhisperModelCatalog))
	for i, option := range domain.WhisperModelCatalog {
		ids[i] = option.ID
	}
	return "whisper model size (" + strings.Join(ids, ", ") + ")"
}

func main() {
	fs := flag.NewFlagSet("bili-transcribe", flag.ExitOnError)
	model := fs.String("model", "", modelUsage())
	language := fs.String("language", "", "transcription language code, or auto")
	outputDir := fs.String("output-dir", "", "directory for transcript files")
	keepVideo := fs.Bool("keep-video", false, "keep the downloaded video after the run")
	skipDownload := fs.Bool("skip-download", false, "reuse an already downloaded video")
	machine := fs.Bool("machine", false, "emit machine-readable JSON output")
	fixDeps := fs.Bool("fix-deps", false, "attempt to install missing dependencies")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] <url-or-BV-id>\n", fs.Name())
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	opts := bootstrap.Options{
		Input:        fs.Arg(0),
		Model:        *model,
		Language:     *language,
		OutputDir:    *outputDir,
		KeepVideo:    *keepVideo,
		SkipDownload: *skipDownload,
		Machine:      *machine,
		FixDeps:      *fixDeps,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := bootstrap.New().Run(ctx, opts)
	stop()
	os.Exit(code)
}
