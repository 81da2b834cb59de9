// Package pipeline drives one publish attempt end to end: session, upload,
// transcode wait, post. All state is attempt-scoped; running two attempts
// means building two Publishers.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sunlapse/sunlapse/internal/bluesky"
)

// Credentials identify the publishing account.
type Credentials struct {
	Identifier string
	Password   string
}

// Result describes a successful publish.
type Result struct {
	AttemptID string
	JobID     string
	Blob      *bluesky.BlobRef
	URI       string
	CID       string
	WebURL    string
}

// Publisher owns the sequential publication chain. It holds no mutable state
// between attempts beyond the injected client.
type Publisher struct {
	client *bluesky.Client
	creds  Credentials
	log    zerolog.Logger
}

func NewPublisher(client *bluesky.Client, creds Credentials, logger zerolog.Logger) *Publisher {
	return &Publisher{client: client, creds: creds, log: logger}
}

// Publish posts the video at videoPath with the given caption. The chain is
// strictly ordered; the first failing stage aborts the attempt and its typed
// error is returned as the cause.
func (p *Publisher) Publish(ctx context.Context, videoPath, caption, altText string, aspect *bluesky.AspectRatio) (*Result, error) {
	attemptID := uuid.NewString()
	log := p.log.With().Str("attemptId", attemptID).Logger()

	video, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read video %s: %w", videoPath, err)
	}
	log.Info().Str("video", videoPath).Int("bytes", len(video)).Msg("Starting publish attempt")

	session, err := p.client.CreateSession(ctx, p.creds.Identifier, p.creds.Password)
	if err != nil {
		return nil, err
	}

	job, err := p.client.UploadVideo(ctx, session, video, filepath.Base(videoPath))
	if err != nil {
		return nil, err
	}

	if !job.Done() {
		job, err = p.client.WaitForJob(ctx, session, job.JobID)
		if err != nil {
			return nil, err
		}
	}
	if job.Blob == nil {
		return nil, &bluesky.ProcessingFailedError{JobID: job.JobID, Message: "job completed without a blob reference"}
	}

	record := bluesky.ComposePost(caption, job.Blob, altText, aspect)
	post, err := p.client.CreatePost(ctx, session, record)
	if err != nil {
		return nil, err
	}

	result := &Result{
		AttemptID: attemptID,
		JobID:     job.JobID,
		Blob:      job.Blob,
		URI:       post.URI,
		CID:       post.CID,
		WebURL:    post.WebURL(session.Handle),
	}
	log.Info().Str("uri", result.URI).Str("link", result.WebURL).Msg("Publish attempt succeeded")
	return result, nil
}
