// Package caption produces the post text by describing the analysis photo
// with a vision model. Missing keys or API failures fall back to a fixed
// caption rather than blocking the publish.
package caption

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const (
	defaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	requestTimeout  = 30 * time.Second
)

func visionPrompt(place string) string {
	return fmt.Sprintf("Describe the weather in this image of dawn in %s in less than 250 characters. "+
		"Start the text with: 'Dawn in %s and the weather is'", place, place)
}

type postFunc func(ctx context.Context, url string, headers map[string]string, body []byte) (int, []byte, error)

// Generator asks the Groq vision API for a weather description.
type Generator struct {
	apiKey   string
	model    string
	place    string
	fallback string
	endpoint string
	post     postFunc
	log      zerolog.Logger
}

func NewGenerator(apiKey, model, place, fallback string, logger zerolog.Logger) *Generator {
	return &Generator{
		apiKey:   apiKey,
		model:    model,
		place:    place,
		fallback: fallback,
		endpoint: defaultEndpoint,
		post:     fasthttpPost,
		log:      logger,
	}
}

// Describe returns a caption for the photo at photoPath. It never returns an
// error: any failure degrades to the fallback caption, because a missing
// description must not sink the publish.
func (g *Generator) Describe(ctx context.Context, photoPath string) string {
	if g.apiKey == "" {
		g.log.Info().Msg("No caption API key configured, using fallback caption")
		return g.fallback
	}

	img, err := os.ReadFile(photoPath)
	if err != nil {
		g.log.Error().Err(err).Str("photo", photoPath).Msg("Could not read analysis photo")
		return g.fallback
	}

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: visionPrompt(g.place)},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
				}},
			},
		}},
		MaxTokens:   50,
		Temperature: 0.3,
	})
	if err != nil {
		g.log.Error().Err(err).Msg("Could not encode caption request")
		return g.fallback
	}

	status, respBody, err := g.post(ctx, g.endpoint, map[string]string{
		"Authorization": "Bearer " + g.apiKey,
		"Content-Type":  "application/json",
	}, body)
	if err != nil {
		g.log.Error().Err(err).Msg("Caption request failed")
		return g.fallback
	}
	if status != 200 {
		g.log.Error().Int("status", status).Str("body", string(respBody)).Msg("Caption API rejected the request")
		return g.fallback
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil || len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		g.log.Error().Msg("Caption response was empty or malformed")
		return g.fallback
	}

	text := resp.Choices[0].Message.Content
	g.log.Info().Str("caption", text).Msg("Generated caption")
	return text
}

// WithSuffix appends the sunrise timestamp line the posts carry.
func WithSuffix(caption string, sunriseAt time.Time) string {
	return fmt.Sprintf("%s\n\nSunrise: %s %s", caption, sunriseAt.Format("15:04:05"), sunriseAt.Format("2006-01-02"))
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func fasthttpPost(ctx context.Context, url string, headers map[string]string, body []byte) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod("POST")
	req.SetRequestURI(url)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	deadline := time.Now().Add(requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := fasthttp.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, err
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return resp.StatusCode(), out, nil
}
