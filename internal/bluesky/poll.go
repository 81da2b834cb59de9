package bluesky

import (
	"context"
	"errors"
	"net/url"

	"github.com/goccy/go-json"
)

var errNoJobID = errors.New("response carries no jobId")

// WaitForJob polls the transcoding job until it reaches a terminal state or
// the attempt bound runs out. The scoped token is re-issued mid-loop when its
// remaining lifetime drops below two poll intervals, so a slow job never
// trips over an expired credential.
func (c *Client) WaitForJob(ctx context.Context, session *Session, jobID string) (*UploadJob, error) {
	token, err := c.serviceAuthForPDS(ctx, session, MethodUploadBlob)
	if err != nil {
		return nil, err
	}

	unknownSeen := false

	for attempt := 1; attempt <= c.cfg.MaxPollAttempts; attempt++ {
		if !token.Fresh(2 * c.cfg.PollInterval) {
			token, err = c.serviceAuthForPDS(ctx, session, MethodUploadBlob)
			if err != nil {
				return nil, err
			}
		}

		job, err := c.getJobStatus(ctx, token, jobID)
		if err != nil {
			// Transient status-check failures count against the same
			// attempt budget as non-terminal states.
			c.log.Warn().Err(err).Str("jobId", jobID).Int("attempt", attempt).Msg("Job status check failed")
		} else {
			c.log.Info().
				Str("jobId", jobID).
				Str("state", job.State).
				Int("attempt", attempt).
				Int("maxAttempts", c.cfg.MaxPollAttempts).
				Msg("Job status")

			switch {
			case job.State == JobStateCompleted:
				return job, nil
			case job.State == JobStateFailed:
				return nil, &ProcessingFailedError{JobID: jobID, Message: job.Message}
			case isKnownProcessingState(job.State):
				unknownSeen = false
			default:
				// One unknown observation is tolerated in case the service
				// grew a new intermediate state; two in a row is protocol
				// drift we refuse to sit on.
				if unknownSeen {
					return nil, &UnknownStateError{JobID: jobID, State: job.State}
				}
				unknownSeen = true
				c.log.Warn().Str("jobId", jobID).Str("state", job.State).Msg("Unknown job state, retrying once")
			}
		}

		if attempt < c.cfg.MaxPollAttempts {
			if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
				return nil, err
			}
		}
	}

	return nil, &PollTimeoutError{JobID: jobID, Attempts: c.cfg.MaxPollAttempts}
}

func (c *Client) getJobStatus(ctx context.Context, token *ScopedToken, jobID string) (*UploadJob, error) {
	query := url.Values{}
	query.Set("jobId", jobID)

	resp, err := c.transport.RoundTrip(ctx, &Request{
		Method: "GET",
		URL:    c.cfg.VideoServer + "/xrpc/app.bsky.video.getJobStatus?" + query.Encode(),
		Header: map[string]string{"Authorization": "Bearer " + token.Token},
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != 200 {
		return nil, &UploadError{Status: resp.Status, Body: string(resp.Body)}
	}

	var payload struct {
		JobStatus struct {
			JobID   string   `json:"jobId"`
			State   string   `json:"state"`
			Blob    *BlobRef `json:"blob"`
			Error   string   `json:"error"`
			Message string   `json:"message"`
		} `json:"jobStatus"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, err
	}

	message := payload.JobStatus.Error
	if message == "" {
		message = payload.JobStatus.Message
	}

	return &UploadJob{
		JobID:   jobID,
		State:   payload.JobStatus.State,
		Blob:    payload.JobStatus.Blob,
		Message: message,
	}, nil
}
