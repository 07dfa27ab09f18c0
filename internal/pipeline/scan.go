package pipeline

import (
	"io"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
)

// videoExtensions are the container formats the downloader is known to
// produce; the actual extension of a finished download is not known in
// advance.
var videoExtensions = []string{".mp4", ".flv", ".mkv"}

type videoCandidate struct {
	path    string
	size    int64
	isVideo bool
}

// findVideoArtifact scans dir for the identifier-derived video file
// across every recognized container extension.
func findVideoArtifact(dir, bvid string, stat func(string) (os.FileInfo, error)) (string, bool) {
	var candidates []videoCandidate
	for _, ext := range videoExtensions {
		path := filepath.Join(dir, bvid+ext)
		info, err := stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		candidates = append(candidates, videoCandidate{
			path:    path,
			size:    info.Size(),
			isVideo: sniffVideo(path),
		})
	}

	if len(candidates) == 0 {
		return "", false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if betterCandidate(c, best) {
			best = c
		}
	}
	return best.path, true
}

// betterCandidate prefers the largest file, which guards against
// partial leftovers from retried downloads. Recognized video content
// breaks size ties.
func betterCandidate(a, b videoCandidate) bool {
	if a.size != b.size {
		return a.size > b.size
	}
	return a.isVideo && !b.isVideo
}

// sniffVideo checks the file header against known video signatures.
// Read failures count as "not video" rather than aborting the scan.
func sniffVideo(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && n == 0 {
		return false
	}
	return filetype.IsVideo(head[:n])
}
