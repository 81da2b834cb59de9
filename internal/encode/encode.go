// Package encode turns the raw capture into the short publishable timelapse
// with ffmpeg.
package encode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Encoder shells out to ffmpeg/ffprobe.
type Encoder struct {
	FFmpegBinary  string
	FFprobeBinary string
	CRF           int
	Preset        string
	log           zerolog.Logger
}

func NewEncoder(crf int, preset string, logger zerolog.Logger) *Encoder {
	return &Encoder{
		FFmpegBinary:  "ffmpeg",
		FFprobeBinary: "ffprobe",
		CRF:           crf,
		Preset:        preset,
		log:           logger,
	}
}

// speedupArgs builds the ffmpeg invocation compressing captureDuration of
// footage into targetDuration via a setpts factor, web-optimized.
func speedupArgs(inPath, outPath string, factor float64, crf int, preset string) []string {
	return []string{
		"-y",
		"-i", inPath,
		"-filter:v", fmt.Sprintf("setpts=PTS/%.4f", factor),
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outPath,
	}
}

// Timelapse speeds inPath up so captureDuration of footage plays back in
// targetDuration, writing the mp4 to outPath.
func (e *Encoder) Timelapse(ctx context.Context, inPath, outPath string, captureDuration, targetDuration time.Duration) error {
	if targetDuration <= 0 {
		return fmt.Errorf("target duration must be positive")
	}
	factor := captureDuration.Seconds() / targetDuration.Seconds()

	e.log.Info().
		Str("input", inPath).
		Str("output", outPath).
		Float64("speedup", factor).
		Msg("Encoding timelapse")

	runCtx, cancel := context.WithTimeout(ctx, time.Hour)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.FFmpegBinary, speedupArgs(inPath, outPath, factor, e.CRF, e.Preset)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(out))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("encoded video was not created: %w", err)
	}

	duration, err := e.probeDuration(runCtx, outPath)
	if err != nil {
		e.log.Warn().Err(err).Msg("Could not verify encoded duration")
	} else {
		e.log.Info().
			Int64("bytes", info.Size()).
			Float64("durationSec", duration).
			Msg("Timelapse encoded")
	}
	return nil
}

func (e *Encoder) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.FFprobeBinary,
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

// tail keeps error output readable; ffmpeg is chatty.
func tail(out []byte) string {
	const keep = 512
	if len(out) <= keep {
		return string(out)
	}
	return "…" + string(out[len(out)-keep:])
}
