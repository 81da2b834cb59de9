package bluesky

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

const postCollection = "app.bsky.feed.post"

// ComposePost builds the feed post record embedding the transcoded blob.
// Alt text is attached only when non-empty, the aspect ratio only when the
// caller actually knows it.
func ComposePost(text string, blob *BlobRef, altText string, aspect *AspectRatio) PostRecord {
	return PostRecord{
		Type:      postCollection,
		Text:      text,
		CreatedAt: timeNowFunc().UTC().Format(time.RFC3339),
		Embed: VideoEmbed{
			Type:        "app.bsky.embed.video",
			Video:       blob,
			Alt:         altText,
			AspectRatio: aspect,
		},
	}
}

// CreatePost submits the record to the account's repo. This is the only
// write against the PDS and it happens exactly once per attempt.
func (c *Client) CreatePost(ctx context.Context, session *Session, record PostRecord) (*PostResult, error) {
	body, err := json.Marshal(map[string]any{
		"repo":       session.DID,
		"collection": postCollection,
		"record":     record,
	})
	if err != nil {
		return nil, &PostError{Body: "failed to encode record: " + err.Error()}
	}

	resp, err := c.transport.RoundTrip(ctx, &Request{
		Method: "POST",
		URL:    c.cfg.Server + "/xrpc/com.atproto.repo.createRecord",
		Header: map[string]string{
			"Authorization": "Bearer " + session.AccessJWT,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, &PostError{Body: err.Error()}
	}
	if resp.Status != 200 {
		return nil, &PostError{Status: resp.Status, Body: string(resp.Body)}
	}

	var result PostResult
	if err := json.Unmarshal(resp.Body, &result); err != nil || result.URI == "" {
		return nil, &PostError{Status: resp.Status, Body: "malformed createRecord response"}
	}

	c.log.Info().Str("uri", result.URI).Str("cid", result.CID).Msg("Post created")
	return &result, nil
}
