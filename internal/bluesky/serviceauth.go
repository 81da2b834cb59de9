package bluesky

import (
	"context"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
)

// MethodUploadBlob is the privileged operation scoped tokens are minted for.
// Both the upload and the job status check run under this scope.
const MethodUploadBlob = "com.atproto.repo.uploadBlob"

// GetServiceAuth mints a short-lived token bound to exactly one
// (audience, method) pair. Tokens are never interchangeable across methods
// even for the same audience; the server enforces the binding.
func (c *Client) GetServiceAuth(ctx context.Context, session *Session, audience, method string) (*ScopedToken, error) {
	expiry := timeNowFunc().Add(c.cfg.ServiceAuthTTL)

	query := url.Values{}
	query.Set("aud", audience)
	query.Set("lxm", method)
	query.Set("exp", strconv.FormatInt(expiry.Unix(), 10))

	resp, err := c.transport.RoundTrip(ctx, &Request{
		Method: "GET",
		URL:    c.cfg.Server + "/xrpc/com.atproto.server.getServiceAuth?" + query.Encode(),
		Header: map[string]string{"Authorization": "Bearer " + session.AccessJWT},
	})
	if err != nil {
		return nil, &TokenError{Audience: audience, Method: method, Reason: err.Error()}
	}
	if resp.Status != 200 {
		return nil, &TokenError{Audience: audience, Method: method, Status: resp.Status, Reason: string(resp.Body)}
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.Token == "" {
		return nil, &TokenError{Audience: audience, Method: method, Status: resp.Status, Reason: "malformed service auth response"}
	}

	c.log.Debug().Str("audience", audience).Str("method", method).Time("expiresAt", expiry).Msg("Issued scoped token")

	return &ScopedToken{
		Token:     payload.Token,
		Audience:  audience,
		Method:    method,
		ExpiresAt: expiry,
	}, nil
}

// serviceAuthForPDS resolves the session's PDS audience and mints a fresh
// scoped token for method against it.
func (c *Client) serviceAuthForPDS(ctx context.Context, session *Session, method string) (*ScopedToken, error) {
	audience, err := c.ResolvePDS(ctx, session.DID)
	if err != nil {
		return nil, err
	}
	return c.GetServiceAuth(ctx, session, audience, method)
}
