package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sunlapse/sunlapse/internal/bluesky"
	"github.com/sunlapse/sunlapse/internal/caption"
	"github.com/sunlapse/sunlapse/internal/capture"
	"github.com/sunlapse/sunlapse/internal/cleanup"
	"github.com/sunlapse/sunlapse/internal/config"
	"github.com/sunlapse/sunlapse/internal/encode"
	"github.com/sunlapse/sunlapse/internal/history"
	"github.com/sunlapse/sunlapse/internal/pipeline"
	"github.com/sunlapse/sunlapse/internal/sunrise"
)

const configPath = "files/config.yaml"

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
		return
	}
	if cfg.Bluesky.Handle == "" || cfg.Bluesky.Password == "" {
		log.Fatal().Msg("Bluesky credentials are not configured")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
	log.Info().Msg("Sunrise timelapse run completed")
}

func run(ctx context.Context, cfg *config.Config) error {
	for _, dir := range []string{cfg.Paths.BaseDir, cfg.Paths.VideoDir, cfg.Paths.RawDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	calc, err := sunrise.NewCalculator(cfg.Location.Latitude, cfg.Location.Longitude, cfg.Location.Timezone)
	if err != nil {
		return err
	}

	today := time.Now()
	day := today.Format("2006-01-02")
	sunriseAt := calc.Sunrise(today)

	rawPath := filepath.Join(cfg.Paths.RawDir, "sunrise_raw_"+day+".h264")
	photoPath := filepath.Join(cfg.Paths.RawDir, "analysis_photo_"+day+".jpg")
	videoPath := filepath.Join(cfg.Paths.VideoDir, "sunrise_"+day+".mp4")

	recorder := capture.NewRecorder(log.Logger)
	encoder := encode.NewEncoder(cfg.Video.CRF, cfg.Video.Preset, log.Logger)

	if cfg.PublishOnly {
		if cfg.Video.InputOverride == "" {
			return errors.New("publish_only requires video.input_override")
		}
		videoPath = cfg.Video.InputOverride
		log.Info().Str("video", videoPath).Msg("Publish-only mode, skipping capture")
	} else {
		captureDuration := time.Duration(cfg.Capture.DurationMinutes) * time.Minute
		start, _ := calc.CaptureWindow(today, time.Duration(cfg.Capture.LeadMinutes)*time.Minute, captureDuration)
		log.Info().
			Time("sunrise", sunriseAt).
			Time("captureStart", start).
			Int("durationMinutes", cfg.Capture.DurationMinutes).
			Msg("Capture window computed")

		if err := sunrise.WaitUntil(ctx, start); err != nil {
			return err
		}
		if err := recorder.RecordVideo(ctx, capture.Options{
			Width:     cfg.Capture.Width,
			Height:    cfg.Capture.Height,
			Framerate: cfg.Capture.Framerate,
			EV:        cfg.Capture.EV,
			Duration:  captureDuration,
		}, rawPath); err != nil {
			return err
		}
		if err := encoder.Timelapse(ctx, rawPath, videoPath, captureDuration,
			time.Duration(cfg.Video.OutputDurationSeconds)*time.Second); err != nil {
			return err
		}
		if err := recorder.TakePhoto(ctx, cfg.Capture.Width, cfg.Capture.Height, cfg.Capture.EV,
			cfg.Capture.PhotoQuality, cfg.Capture.PhotoTimeoutMS, photoPath); err != nil {
			// The photo only feeds the caption; the publish goes ahead.
			log.Warn().Err(err).Msg("Analysis photo failed, caption will fall back")
		}
	}

	generator := caption.NewGenerator(cfg.Caption.APIKey, cfg.Caption.Model, cfg.Location.Name, cfg.Caption.Fallback, log.Logger)
	text := caption.WithSuffix(generator.Describe(ctx, photoPath), sunriseAt)
	altText := cfg.Location.Name + " sunrise timelapse"

	client := bluesky.NewClient(bluesky.ClientConfig{
		Server:          cfg.Bluesky.Server,
		VideoServer:     cfg.Bluesky.VideoServer,
		PLCDirectory:    cfg.Bluesky.PLCDirectory,
		MaxVideoBytes:   cfg.Bluesky.MaxVideoMB * 1024 * 1024,
		PollInterval:    time.Duration(cfg.Bluesky.PollIntervalSec) * time.Second,
		MaxPollAttempts: cfg.Bluesky.MaxPollAttempts,
	}, log.Logger)

	publisher := pipeline.NewPublisher(client, pipeline.Credentials{
		Identifier: cfg.Bluesky.Handle,
		Password:   cfg.Bluesky.Password,
	}, log.Logger)

	result, pubErr := publisher.Publish(ctx, videoPath, text, altText, nil)
	recordOutcome(cfg, day, videoPath, text, result, pubErr)

	if cfg.Cleanup.AutoCleanup {
		cleanup.NewSweeper(cfg.Paths.RawDir, cfg.Paths.VideoDir, cfg.Cleanup.KeepDays).Run()
	}

	if pubErr != nil {
		return pubErr
	}
	log.Info().Str("uri", result.URI).Str("link", result.WebURL).Msg("Posted to Bluesky")
	return nil
}

// recordOutcome writes the attempt to the local ledger. Ledger trouble is
// logged, never fatal: the post already happened (or already failed).
func recordOutcome(cfg *config.Config, day, videoPath, text string, result *pipeline.Result, pubErr error) {
	db, err := history.OpenDB(cfg.Paths.DBPath)
	if err != nil {
		log.Warn().Err(err).Msg("Could not open publish ledger")
		return
	}
	defer db.Close()

	entry := &history.Entry{
		Date:      day,
		VideoPath: videoPath,
		Caption:   text,
		CreatedAt: time.Now().Unix(),
	}
	if info, err := os.Stat(videoPath); err == nil {
		entry.SizeBytes = info.Size()
	}
	if pubErr != nil {
		entry.Outcome = history.OutcomeFailed
		entry.Error = pubErr.Error()
	} else {
		entry.Outcome = history.OutcomePublished
		entry.JobID = result.JobID
		entry.BlobCID = result.Blob.Ref.Link
		entry.PostURI = result.URI
	}

	if err := history.NewRepository(db).Record(entry); err != nil {
		log.Warn().Err(err).Msg("Could not record publish in ledger")
	}
}
