package bluesky

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const (
	defaultServer       = "https://bsky.social"
	defaultVideoServer  = "https://video.bsky.app"
	defaultPLCDirectory = "https://plc.directory"

	defaultMaxVideoBytes   = 50 * 1024 * 1024
	defaultRequestTimeout  = 30 * time.Second
	defaultUploadTimeout   = 10 * time.Minute
	defaultServiceAuthTTL  = 30 * time.Minute
	defaultPollInterval    = 10 * time.Second
	defaultMaxPollAttempts = 30
)

// Request is a single outbound HTTP call. Timeout overrides the client
// default when set; uploads need far more headroom than status checks.
type Request struct {
	Method  string
	URL     string
	Header  map[string]string
	Body    []byte
	Timeout time.Duration
}

// Response carries what the pipeline needs from an HTTP exchange. Bodies are
// small JSON documents except for the upload request, which has no large
// response either.
type Response struct {
	Status int
	Body   []byte
}

// Transport performs HTTP exchanges. Tests swap in a scripted fake.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

type fasthttpTransport struct {
	client  *fasthttp.Client
	timeout time.Duration
}

func newFasthttpTransport(timeout time.Duration) *fasthttpTransport {
	return &fasthttpTransport{
		client: &fasthttp.Client{
			ReadBufferSize:      16 * 1024,
			MaxIdleConnDuration: time.Minute,
		},
		timeout: timeout,
	}
}

func (t *fasthttpTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.Header.SetMethod(req.Method)
	httpReq.SetRequestURI(req.URL)
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 {
		httpReq.SetBody(req.Body)
	}

	timeout := t.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.client.DoDeadline(httpReq, httpResp, deadline); err != nil {
		return nil, err
	}

	body := make([]byte, len(httpResp.Body()))
	copy(body, httpResp.Body())
	return &Response{Status: httpResp.StatusCode(), Body: body}, nil
}

// ClientConfig holds the endpoints and bounds for one publish attempt. Zero
// fields fall back to the production Bluesky defaults.
type ClientConfig struct {
	Server       string
	VideoServer  string
	PLCDirectory string

	MaxVideoBytes   int64
	RequestTimeout  time.Duration
	UploadTimeout   time.Duration
	ServiceAuthTTL  time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
}

func (c *ClientConfig) applyDefaults() {
	if c.Server == "" {
		c.Server = defaultServer
	}
	if c.VideoServer == "" {
		c.VideoServer = defaultVideoServer
	}
	if c.PLCDirectory == "" {
		c.PLCDirectory = defaultPLCDirectory
	}
	if c.MaxVideoBytes <= 0 {
		c.MaxVideoBytes = defaultMaxVideoBytes
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = defaultUploadTimeout
	}
	if c.ServiceAuthTTL <= 0 {
		c.ServiceAuthTTL = defaultServiceAuthTTL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = defaultMaxPollAttempts
	}
}

// Client talks to the Bluesky entryway, the PLC directory, and the video
// service for one publish attempt. It holds no credentials of its own; the
// Session and scoped tokens travel through the call chain explicitly.
type Client struct {
	cfg       ClientConfig
	transport Transport
	log       zerolog.Logger

	// pdsCache memoizes DID -> audience within one attempt. Resolution is
	// deterministic per user, and a Client is never shared across attempts.
	pdsCache map[string]string

	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:       cfg,
		transport: newFasthttpTransport(cfg.RequestTimeout),
		log:       logger,
		pdsCache:  make(map[string]string),
		sleep:     sleepCtx,
	}
}

// NewClientWithTransport is used by tests and by callers that tunnel through
// a custom transport.
func NewClientWithTransport(cfg ClientConfig, transport Transport, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:       cfg,
		transport: transport,
		log:       logger,
		pdsCache:  make(map[string]string),
		sleep:     sleepCtx,
	}
}

// sleepCtx waits for d but aborts promptly when ctx is cancelled, so the
// inter-poll delay never outlives the caller's deadline.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
