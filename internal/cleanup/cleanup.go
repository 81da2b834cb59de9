// Package cleanup removes dated capture artifacts past the retention window.
package cleanup

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

// Sweeper deletes raw captures, analysis photos, and published videos whose
// filename date is older than the retention cutoff. Files that do not carry
// a parseable date are left alone.
type Sweeper struct {
	rawDir   string
	videoDir string
	keepDays int
}

func NewSweeper(rawDir, videoDir string, keepDays int) *Sweeper {
	if keepDays <= 0 {
		keepDays = 7
	}
	return &Sweeper{rawDir: rawDir, videoDir: videoDir, keepDays: keepDays}
}

// Run deletes everything past retention and returns how many files went.
func (s *Sweeper) Run() int {
	cutoff := time.Now().AddDate(0, 0, -s.keepDays)
	log.Info().Int("keepDays", s.keepDays).Msg("Starting retention cleanup")

	removed := 0
	removed += sweep(s.rawDir, "sunrise_raw_", ".h264", cutoff)
	removed += sweep(s.rawDir, "analysis_photo_", ".jpg", cutoff)
	removed += sweep(s.videoDir, "sunrise_", ".mp4", cutoff)

	log.Info().Int("removed", removed).Msg("Retention cleanup completed")
	return removed
}

func sweep(dir, prefix, ext string, cutoff time.Time) int {
	pattern := filepath.Join(dir, prefix+"*"+ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		log.Warn().Err(err).Str("pattern", pattern).Msg("Cleanup glob failed")
		return 0
	}

	removed := 0
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), ext)
		dateStr := strings.TrimPrefix(name, prefix)
		fileDate, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			continue
		}
		if !fileDate.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove old file")
			continue
		}
		log.Info().Str("path", path).Msg("Removed old file")
		removed++
	}
	return removed
}
