package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// Whisper transcribes through a whisper.cpp whisper-server
// (POST /inference, multipart field "file").
type Whisper struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// WhisperOption configures a Whisper backend.
type WhisperOption func(*Whisper)

// WithWhisperTimeout bounds each request. Zero keeps the 30s default.
func WithWhisperTimeout(d time.Duration) WhisperOption {
	return func(w *Whisper) {
		if d > 0 {
			w.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithWhisperLanguage sets the language hint. Default "en".
func WithWhisperLanguage(lang string) WhisperOption {
	return func(w *Whisper) { w.language = lang }
}

// WithWhisperHTTPClient replaces the HTTP client.
func WithWhisperHTTPClient(c *http.Client) WhisperOption {
	return func(w *Whisper) { w.httpClient = c }
}

// NewWhisper returns a backend for the server at serverURL
// (e.g. "http://localhost:8080").
func NewWhisper(serverURL string, opts ...WhisperOption) (*Whisper, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: server URL must not be empty")
	}
	w := &Whisper{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   "en",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Name implements Backend.
func (w *Whisper) Name() string { return "whisper" }

// Transcribe implements Transcriber.
func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return "", fmt.Errorf("whisper: read audio: %w", err)
	}
	if w.language != "" {
		if err := mw.WriteField("language", w.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", unavailable("whisper", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", unavailable("whisper", fmt.Errorf("server returned HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("whisper: %s", result.Error)
	}
	return cleanTranscript(result.Text)
}
