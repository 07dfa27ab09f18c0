package domain

// Stage identifies one discrete pipeline step with its own outcome.
type Stage string

const (
	StageIdentify     Stage = "identify"
	StageGate         Stage = "gate"
	StageDownload     Stage = "download"
	StageExtractAudio Stage = "extract-audio"
	StageTranscribe   Stage = "transcribe"
	StagePersist      Stage = "persist"
	StageCleanup      Stage = "cleanup"
)

// StageStatus is the outcome reported on stage entry and exit.
type StageStatus string

const (
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// ValidTransition enforces the strictly linear stage order. Cleanup is
// reachable from every stage because it always runs on the way out,
// whatever happened upstream.
func ValidTransition(from, to Stage) bool {
	if to == StageCleanup {
		return true
	}

	switch from {
	case "":
		return to == StageIdentify
	case StageIdentify:
		return to == StageGate
	case StageGate:
		return to == StageDownload
	case StageDownload:
		return to == StageExtractAudio
	case StageExtractAudio:
		return to == StageTranscribe
	case StageTranscribe:
		return to == StagePersist
	case StagePersist:
		return to == StageCleanup
	default:
		return false
	}
}
