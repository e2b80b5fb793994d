package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = oai.AudioModelWhisper1

// OpenAI transcribes through the OpenAI audio API.
type OpenAI struct {
	client oai.Client
	model  oai.AudioModel
}

type openAIConfig struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

// OpenAIOption configures an OpenAI backend.
type OpenAIOption func(*openAIConfig)

// WithOpenAIBaseURL overrides the API base URL. Empty keeps the default.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithOpenAITimeout sets a per-request HTTP timeout.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(c *openAIConfig) { c.timeout = d }
}

// WithOpenAIMaxRetries sets how often the client retries 429 and 5xx
// responses. Default 1.
func WithOpenAIMaxRetries(n int) OpenAIOption {
	return func(c *openAIConfig) { c.maxRetries = n }
}

// WithOpenAIHTTPClient replaces the HTTP client.
func WithOpenAIHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *openAIConfig) { c.httpClient = hc }
}

// NewOpenAI returns an OpenAI backend. An empty model means whisper-1.
func NewOpenAI(apiKey, model string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key must not be empty")
	}
	if model == "" {
		model = string(DefaultOpenAIModel)
	}

	cfg := &openAIConfig{maxRetries: 1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	switch {
	case cfg.httpClient != nil:
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	case cfg.timeout > 0:
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &OpenAI{client: oai.NewClient(reqOpts...), model: oai.AudioModel(model)}, nil
}

// Name implements Backend.
func (o *OpenAI) Name() string { return "openai" }

// Transcribe implements Transcriber.
func (o *OpenAI) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}
	ctype := mime.TypeByExtension(filepath.Ext(filename))
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	res, err := o.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:  oai.File(audio, filepath.Base(filename), ctype),
		Model: o.model,
	})
	if err != nil {
		return "", o.classify(ctx, err)
	}
	return cleanTranscript(res.Text)
}

// classify maps a client error onto the package sentinels.
func (o *OpenAI) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return unavailable("openai", err)
		}
		return fmt.Errorf("openai: transcribe: %w", err)
	}
	// No HTTP response at all: DNS, refused connection, client timeout.
	return unavailable("openai", err)
}
