// Package capture records raw sunrise footage and analysis photos with the
// Raspberry Pi libcamera tools.
package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const minPhotoBytes = 10 * 1024

// Options mirror the libcamera flags we set for a capture run.
type Options struct {
	Width     int
	Height    int
	Framerate int
	EV        float64
	Duration  time.Duration
}

// Recorder shells out to libcamera-vid / libcamera-still. The binaries are
// configurable so tests can point at a stub.
type Recorder struct {
	VideoBinary string
	StillBinary string
	log         zerolog.Logger
}

func NewRecorder(logger zerolog.Logger) *Recorder {
	return &Recorder{
		VideoBinary: "libcamera-vid",
		StillBinary: "libcamera-still",
		log:         logger,
	}
}

// videoArgs builds the libcamera-vid invocation for a continuous capture.
func videoArgs(opts Options, outPath string) []string {
	return []string{
		"--width", strconv.Itoa(opts.Width),
		"--height", strconv.Itoa(opts.Height),
		"--framerate", strconv.Itoa(opts.Framerate),
		"--timeout", strconv.FormatInt(opts.Duration.Milliseconds(), 10),
		"--ev", strconv.FormatFloat(opts.EV, 'f', -1, 64),
		"--nopreview",
		"-o", outPath,
	}
}

// stillArgs builds the libcamera-still invocation for the analysis photo.
// The timeout doubles as the auto-exposure settling delay.
func stillArgs(width, height int, ev float64, quality int, timeoutMS int, outPath string) []string {
	return []string{
		"--width", strconv.Itoa(width),
		"--height", strconv.Itoa(height),
		"--ev", strconv.FormatFloat(ev, 'f', -1, 64),
		"--quality", strconv.Itoa(quality),
		"--timeout", strconv.Itoa(timeoutMS),
		"--nopreview",
		"-o", outPath,
	}
}

// RecordVideo captures raw footage to outPath for opts.Duration. The command
// gets a grace period past the nominal duration before it is killed.
func (r *Recorder) RecordVideo(ctx context.Context, opts Options, outPath string) error {
	runCtx, cancel := context.WithTimeout(ctx, opts.Duration+5*time.Minute)
	defer cancel()

	args := videoArgs(opts, outPath)
	r.log.Info().
		Str("output", outPath).
		Dur("duration", opts.Duration).
		Int("framerate", opts.Framerate).
		Msg("Starting video capture")

	cmd := exec.CommandContext(runCtx, r.VideoBinary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("video capture failed: %w: %s", err, out)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("capture produced no output file: %w", err)
	}
	r.log.Info().Int64("bytes", info.Size()).Msg("Video capture finished")
	return nil
}

// TakePhoto captures a single frame for weather analysis. Suspiciously small
// files are treated as camera failures.
func (r *Recorder) TakePhoto(ctx context.Context, width, height int, ev float64, quality, timeoutMS int, outPath string) error {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.StillBinary, stillArgs(width, height, ev, quality, timeoutMS, outPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("photo capture failed: %w: %s", err, out)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("photo was not created: %w", err)
	}
	if info.Size() < minPhotoBytes {
		return fmt.Errorf("photo is only %d bytes, camera likely failed", info.Size())
	}
	r.log.Info().Str("photo", outPath).Int64("bytes", info.Size()).Msg("Analysis photo taken")
	return nil
}
