package bluesky

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession_ShouldReturnStableIdentityAcrossCalls(t *testing.T) {
	// given
	client, transport := newTestClient(t, ClientConfig{}, func(req *Request) (*Response, error) {
		return jsonResponse(t, 200, map[string]string{
			"accessJwt": "access-token",
			"did":       "did:plc:abc123",
			"handle":    "alice.bsky.social",
		}), nil
	})

	// when
	first, err1 := client.CreateSession(context.Background(), "alice.bsky.social", "hunter2")
	second, err2 := client.CreateSession(context.Background(), "alice.bsky.social", "hunter2")

	// then
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, "did:plc:abc123", first.DID)
	assert.Equal(t, first.DID, second.DID)
	assert.Equal(t, "alice.bsky.social", first.Handle)
	assert.Equal(t, "access-token", first.AccessJWT)

	var body map[string]string
	require.NoError(t, json.Unmarshal(transport.calls[0].Body, &body))
	assert.Equal(t, "alice.bsky.social", body["identifier"])
	assert.Equal(t, "hunter2", body["password"])
	assert.Contains(t, transport.calls[0].URL, "com.atproto.server.createSession")
}

func TestCreateSession_ShouldFailWithAuthErrorOnRejectedCredentials(t *testing.T) {
	// given
	client, _ := newTestClient(t, ClientConfig{}, func(req *Request) (*Response, error) {
		return &Response{Status: 401, Body: []byte(`{"error":"AuthenticationRequired"}`)}, nil
	})

	// when
	session, err := client.CreateSession(context.Background(), "alice.bsky.social", "wrong")

	// then
	assert.Nil(t, session)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 401, authErr.Status)
}

func TestCreateSession_ShouldFailWithAuthErrorOnMalformedResponse(t *testing.T) {
	// given
	client, _ := newTestClient(t, ClientConfig{}, func(req *Request) (*Response, error) {
		return &Response{Status: 200, Body: []byte(`{"handle":"alice.bsky.social"}`)}, nil
	})

	// when
	session, err := client.CreateSession(context.Background(), "alice.bsky.social", "hunter2")

	// then
	assert.Nil(t, session)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "missing accessJwt or did")
}
