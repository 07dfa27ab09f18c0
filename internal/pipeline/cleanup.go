package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Cleaner removes transient artifacts from the work directory after a
// run. It is best-effort on every exit path: internal errors are
// logged and discarded, never re-raised, and running it twice with
// nothing left to delete is a no-op.
type Cleaner struct {
	workDir string
	logger  *slog.Logger
	stat    func(string) (os.FileInfo, error)
	remove  func(string) error
}

// NewCleaner builds a cleaner for the given work directory.
func NewCleaner(workDir string, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		workDir: workDir,
		logger:  logger,
		stat:    os.Stat,
		remove:  os.Remove,
	}
}

// NewCleanerForTests builds a cleaner with injectable filesystem hooks.
func NewCleanerForTests(workDir string, logger *slog.Logger, stat func(string) (os.FileInfo, error), remove func(string) error) *Cleaner {
	c := NewCleaner(workDir, logger)
	if stat != nil {
		c.stat = stat
	}
	if remove != nil {
		c.remove = remove
	}
	return c
}

// Run deletes the deterministic audio artifact and, unless retainVideo
// is set, every identifier-derived video file.
func (c *Cleaner) Run(retainVideo bool, bvid string) {
	if bvid == "" {
		return
	}

	c.removeIfPresent(filepath.Join(c.workDir, bvid+".mp3"))

	if retainVideo {
		return
	}
	for _, ext := range videoExtensions {
		c.removeIfPresent(filepath.Join(c.workDir, bvid+ext))
	}
}

func (c *Cleaner) removeIfPresent(path string) {
	if _, err := c.stat(path); err != nil {
		return
	}
	if err := c.remove(path); err != nil {
		c.logger.Warn("cleanup could not remove file", "path", path, "error", err)
	}
}
