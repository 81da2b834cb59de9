package bluesky

import (
	"context"
	"net/url"

	"github.com/goccy/go-json"
)

// UploadVideo submits the video bytes to the transcoding service and returns
// the job tracking them. A 409 is the idempotent-conflict path: the bytes
// were seen before and the existing job is handed back, already completed or
// mid-flight. Only other non-200 statuses are failures.
func (c *Client) UploadVideo(ctx context.Context, session *Session, video []byte, filename string) (*UploadJob, error) {
	if int64(len(video)) > c.cfg.MaxVideoBytes {
		return nil, &SizeExceededError{Size: int64(len(video)), Limit: c.cfg.MaxVideoBytes}
	}

	token, err := c.serviceAuthForPDS(ctx, session, MethodUploadBlob)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("did", session.DID)
	query.Set("name", filename)

	c.log.Info().Int("bytes", len(video)).Str("filename", filename).Msg("Uploading video")

	resp, err := c.transport.RoundTrip(ctx, &Request{
		Method:  "POST",
		URL:     c.cfg.VideoServer + "/xrpc/app.bsky.video.uploadVideo?" + query.Encode(),
		Header:  map[string]string{"Authorization": "Bearer " + token.Token, "Content-Type": "video/mp4"},
		Body:    video,
		Timeout: c.cfg.UploadTimeout,
	})
	if err != nil {
		return nil, &UploadError{Body: err.Error()}
	}

	switch resp.Status {
	case 200:
		job, err := decodeUploadResponse(resp.Body)
		if err != nil {
			return nil, &UploadError{Status: resp.Status, Body: err.Error()}
		}
		c.log.Info().Str("jobId", job.JobID).Str("state", job.State).Msg("Upload accepted")
		return job, nil

	case 409:
		job, err := decodeUploadResponse(resp.Body)
		if err != nil {
			return nil, &UploadError{Status: resp.Status, Body: err.Error()}
		}
		c.log.Info().Str("jobId", job.JobID).Str("state", job.State).Msg("Video was already uploaded, reusing existing job")
		if job.State == JobStateCompleted {
			// The blob is not in the conflict response; one status query
			// fetches it without entering the poll loop.
			return c.getJobStatus(ctx, token, job.JobID)
		}
		return job, nil

	default:
		return nil, &UploadError{Status: resp.Status, Body: string(resp.Body)}
	}
}

func decodeUploadResponse(body []byte) (*UploadJob, error) {
	var payload struct {
		JobID string `json:"jobId"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.JobID == "" {
		return nil, errNoJobID
	}
	state := payload.State
	if state == "" {
		state = JobStateCreated
	}
	return &UploadJob{JobID: payload.JobID, State: state}, nil
}
