package bluesky

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the result of createSession: a short-lived access credential
// plus the stable account identity. It lives for one publish attempt and is
// never persisted or renewed.
type Session struct {
	AccessJWT string
	DID       string
	Handle    string
}

// ScopedToken authorizes exactly one (audience, method) pair against the
// video service. It must not be reused for a different method even while
// still within its lifetime; the server binds the scope.
type ScopedToken struct {
	Token     string
	Audience  string
	Method    string
	ExpiresAt time.Time
}

var timeNowFunc = time.Now

// RemainingLifetime reports how long the token is still good for. The exp
// claim inside the JWT is authoritative when present; the locally requested
// expiry is the fallback for opaque tokens.
func (t *ScopedToken) RemainingLifetime() time.Duration {
	expiry := t.ExpiresAt
	if claims := parseExpiry(t.Token); !claims.IsZero() {
		expiry = claims
	}
	return expiry.Sub(timeNowFunc())
}

// Fresh reports whether the token still has at least min lifetime left.
func (t *ScopedToken) Fresh(min time.Duration) bool {
	return t.RemainingLifetime() >= min
}

func parseExpiry(token string) time.Time {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Job states reported by the video service. COMPLETED and FAILED are
// absorbing; everything else advances forward only.
const (
	JobStateCreated   = "JOB_STATE_CREATED"
	JobStateRunning   = "JOB_STATE_RUNNING"
	JobStateEncoding  = "JOB_STATE_ENCODING"
	JobStateCompleted = "JOB_STATE_COMPLETED"
	JobStateFailed    = "JOB_STATE_FAILED"
)

func isTerminalState(state string) bool {
	return state == JobStateCompleted || state == JobStateFailed
}

func isKnownProcessingState(state string) bool {
	switch state {
	case JobStateCreated, JobStateRunning, JobStateEncoding:
		return true
	}
	return false
}

// UploadJob tracks one transcoding job. JobID doubles as the server-side
// idempotency key: identical bytes map to the same job.
type UploadJob struct {
	JobID   string
	State   string
	Blob    *BlobRef
	Message string
}

// Done reports whether the job reached a terminal state.
func (j *UploadJob) Done() bool {
	return isTerminalState(j.State)
}

// BlobRef is the content-addressed handle minted by the PDS once transcoding
// finishes. The JSON shape is the atproto blob lexicon; posts embed it
// verbatim.
type BlobRef struct {
	Type     string   `json:"$type"`
	Ref      BlobLink `json:"ref"`
	MimeType string   `json:"mimeType"`
	Size     int64    `json:"size"`
}

type BlobLink struct {
	Link string `json:"$link"`
}

// AspectRatio is the optional width/height hint on a video embed.
type AspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoEmbed is the app.bsky.embed.video record fragment.
type VideoEmbed struct {
	Type        string       `json:"$type"`
	Video       *BlobRef     `json:"video"`
	Alt         string       `json:"alt,omitempty"`
	AspectRatio *AspectRatio `json:"aspectRatio,omitempty"`
}

// PostRecord is the app.bsky.feed.post record submitted via createRecord.
type PostRecord struct {
	Type      string     `json:"$type"`
	Text      string     `json:"text"`
	CreatedAt string     `json:"createdAt"`
	Embed     VideoEmbed `json:"embed"`
}

// PostResult identifies the created post.
type PostResult struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// WebURL builds the public bsky.app link for the post, or "" when the URI
// does not look like an at:// record URI.
func (r *PostResult) WebURL(handle string) string {
	idx := strings.LastIndex(r.URI, "/")
	if handle == "" || !strings.HasPrefix(r.URI, "at://") || idx < 0 || idx == len(r.URI)-1 {
		return ""
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, r.URI[idx+1:])
}
