package bluesky

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeTransport records every request and answers through a scripted handler.
type fakeTransport struct {
	calls   []*Request
	handler func(req *Request) (*Response, error)
}

func (f *fakeTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, req)
	return f.handler(req)
}

func (f *fakeTransport) callsTo(pathFragment string) int {
	n := 0
	for _, req := range f.calls {
		if strings.Contains(req.URL, pathFragment) {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, cfg ClientConfig, handler func(req *Request) (*Response, error)) (*Client, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{handler: handler}
	client := NewClientWithTransport(cfg, transport, zerolog.Nop())
	// Tests never wait out real poll intervals.
	client.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return client, transport
}

func jsonResponse(t *testing.T, status int, v any) *Response {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return &Response{Status: status, Body: body}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"aud": "did:web:pds.example.com",
		"lxm": MethodUploadBlob,
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func plcDocument(t *testing.T, host string) *Response {
	t.Helper()
	return jsonResponse(t, 200, map[string]any{
		"service": []map[string]string{
			{"id": "#atproto_labeler", "serviceEndpoint": "https://labeler.example.com"},
			{"id": "#atproto_pds", "serviceEndpoint": "https://" + host},
		},
	})
}
