package bluesky

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// CreateSession exchanges handle/password for an access credential and the
// account DID. Failures are not retried: bad credentials stay bad.
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	resp, err := c.transport.RoundTrip(ctx, &Request{
		Method: "POST",
		URL:    c.cfg.Server + "/xrpc/com.atproto.server.createSession",
		Header: map[string]string{"Content-Type": "application/json"},
		Body:   body,
	})
	if err != nil {
		return nil, &AuthError{Reason: err.Error()}
	}
	if resp.Status != 200 {
		return nil, &AuthError{Status: resp.Status, Reason: string(resp.Body)}
	}

	var payload struct {
		AccessJWT string `json:"accessJwt"`
		DID       string `json:"did"`
		Handle    string `json:"handle"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &AuthError{Status: resp.Status, Reason: "malformed session response: " + err.Error()}
	}
	if payload.AccessJWT == "" || payload.DID == "" {
		return nil, &AuthError{Status: resp.Status, Reason: "session response missing accessJwt or did"}
	}

	c.log.Info().Str("handle", payload.Handle).Str("did", payload.DID).Msg("Session created")

	return &Session{
		AccessJWT: payload.AccessJWT,
		DID:       payload.DID,
		Handle:    payload.Handle,
	}, nil
}
