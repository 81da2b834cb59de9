package bluesky

import "fmt"

// AuthError means createSession was rejected or returned a body we could not
// use. Credential failures are not transient, so callers must not retry.
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("bluesky login failed: status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("bluesky login failed: %s", e.Reason)
}

// ResolutionError means the PLC directory document for a DID was unreachable,
// malformed, or did not carry an atproto PDS service entry.
type ResolutionError struct {
	DID    string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve PDS for %s: %s", e.DID, e.Reason)
}

// TokenError means getServiceAuth did not hand back a usable scoped token.
type TokenError struct {
	Audience string
	Method   string
	Status   int
	Reason   string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("service auth for %s (%s) failed: status %d: %s", e.Method, e.Audience, e.Status, e.Reason)
}

// SizeExceededError is returned before any network call when the video is
// larger than the configured upload ceiling.
type SizeExceededError struct {
	Size  int64
	Limit int64
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("video is %d bytes, upload ceiling is %d bytes", e.Size, e.Limit)
}

// UploadError carries the status and body of a non-200, non-409 uploadVideo
// response.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("video upload failed: status %d: %s", e.Status, e.Body)
}

// PollTimeoutError means the transcoding job did not reach a terminal state
// within the bounded number of status checks.
type PollTimeoutError struct {
	JobID    string
	Attempts int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("job %s still not terminal after %d status checks", e.JobID, e.Attempts)
}

// ProcessingFailedError carries the server-supplied message of a job that
// ended in JOB_STATE_FAILED.
type ProcessingFailedError struct {
	JobID   string
	Message string
}

func (e *ProcessingFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// UnknownStateError is surfaced when the video service reports a job state
// outside the documented set twice in a row. One unknown observation is
// tolerated as lenience towards newly introduced intermediate states.
type UnknownStateError struct {
	JobID string
	State string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("job %s reported unrecognized state %q", e.JobID, e.State)
}

// PostError means createRecord was rejected.
type PostError struct {
	Status int
	Body   string
}

func (e *PostError) Error() string {
	return fmt.Sprintf("post creation failed: status %d: %s", e.Status, e.Body)
}
