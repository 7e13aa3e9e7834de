// Package imagegen is a small text-to-image client with an offline demo mode.
package imagegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the text-to-image API used when none is configured.
const DefaultEndpoint = "https://clipdrop-api.co/text-to-image/v1"

// DemoImageURL is the placeholder returned in demo mode.
const DemoImageURL = "https://via.placeholder.com/512x512.png?text=AI+Image+Demo"

// Styles are the prompt styles offered to users.
var Styles = []string{"Realistic", "Anime", "Digital Art", "Oil Painting", "Cyberpunk"}

// SurprisePrompts is the pool for Surprise.
var SurprisePrompts = []string{
	"Cyberpunk city at night",
	"Astronaut riding a horse",
	"AI robot painting art",
	"Futuristic Indian village",
	"Flying cars in the future",
}

var (
	ErrEmptyPrompt   = errors.New("please enter a prompt")
	ErrMissingAPIKey = errors.New("image API key is missing")
)

// RemoteAPIError reports a non-200 response from the image API. It is never retried.
type RemoteAPIError struct {
	StatusCode int
	Body       string
}

func (e *RemoteAPIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("image api error: status=%d message=%s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("image api error: status=%d", e.StatusCode)
}

// Image is a generated image or a demo placeholder.
type Image struct {
	Prompt      string `json:"prompt"`
	Caption     string `json:"caption"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
	Demo        bool   `json:"demo"`
}

type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
}

// NewClient returns a client for DefaultEndpoint.
func NewClient(apiKey string, httpTimeout time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
	}
}

// NewClientWithEndpoint allows injecting a custom endpoint (used in tests).
func NewClientWithEndpoint(apiKey string, httpTimeout time.Duration, endpoint string) *Client {
	c := NewClient(apiKey, httpTimeout)
	if endpoint != "" {
		c.endpoint = endpoint
	}
	return c
}

// ComposePrompt joins a style and user text the way the API expects.
func ComposePrompt(style, text string) string {
	style = strings.TrimSpace(style)
	text = strings.TrimSpace(text)
	if style == "" || text == "" {
		return text
	}
	return fmt.Sprintf("%s style: %s", style, text)
}

// Generate posts prompt as multipart field "prompt" and returns the image bytes.
func (c *Client) Generate(ctx context.Context, prompt string) (*Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("prompt", prompt); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &RemoteAPIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &Image{Prompt: prompt, Caption: prompt, ContentType: ct, Data: data}, nil
}

// Demo returns the placeholder image for prompt without any network call.
func Demo(prompt string) (*Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	return &Image{
		Prompt:  prompt,
		Caption: fmt.Sprintf("Demo Image for: '%s'", prompt),
		URL:     DemoImageURL,
		Demo:    true,
	}, nil
}

// Surprise picks a prompt from SurprisePrompts.
func Surprise(r *rand.Rand) string {
	if r == nil {
		return SurprisePrompts[rand.Intn(len(SurprisePrompts))]
	}
	return SurprisePrompts[r.Intn(len(SurprisePrompts))]
}
