package domain

// Segment is one time-bounded span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the central artifact of a run: the aggregate
// text plus the ordered segments it was assembled from. It is produced
// once by the transcribe stage and read-only afterwards.
type TranscriptionResult struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
}

// VideoMetadata carries report-header fields for one video. There is no
// metadata-fetch stage, so title and uploader hold placeholder values.
type VideoMetadata struct {
	BVID     string `json:"bvid"`
	Title    string `json:"title"`
	Uploader string `json:"uploader"`
}

// ArtifactKind names one transcript output format.
type ArtifactKind string

const (
	ArtifactText     ArtifactKind = "txt"
	ArtifactJSON     ArtifactKind = "json"
	ArtifactSRT      ArtifactKind = "srt"
	ArtifactMarkdown ArtifactKind = "md"
)

// ArtifactKinds lists every output format in write order.
var ArtifactKinds = []ArtifactKind{ArtifactText, ArtifactJSON, ArtifactSRT, ArtifactMarkdown}

// ArtifactSet maps artifact kinds to produced file paths. A kind is
// absent when its write failed.
type ArtifactSet map[ArtifactKind]string

// Settings contains user-selectable runtime configuration.
type Settings struct {
	Model     string `yaml:"model"`
	Language  string `yaml:"language"`
	OutputDir string `yaml:"output_dir"`
}
