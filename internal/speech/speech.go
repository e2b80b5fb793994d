// Package speech turns an uploaded voice clip into text.
//
// Backends implement [Transcriber] and report failures through two sentinel
// errors: [ErrUnrecognized] when the audio held no intelligible speech, and
// [ErrUnavailable] when the service could not be reached or refused the
// request. Anything else is an ordinary error.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/config"
)

var (
	// ErrUnrecognized means the backend returned no usable transcript.
	ErrUnrecognized = errors.New("speech not recognized")

	// ErrUnavailable means the backend could not serve the request.
	ErrUnavailable = errors.New("speech recognition service unavailable")
)

// Transcriber converts audio to text. filename is the uploaded name; its
// extension tells the backend the container format.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Backend is a Transcriber with a name used in logs.
type Backend interface {
	Transcriber
	Name() string
}

// unavailable wraps err so errors.Is(err, ErrUnavailable) holds.
func unavailable(backend string, err error) error {
	return fmt.Errorf("%s: %w: %v", backend, ErrUnavailable, err)
}

// cleanTranscript trims the text and maps blank output to ErrUnrecognized.
func cleanTranscript(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "[BLANK_AUDIO]" {
		return "", ErrUnrecognized
	}
	return text, nil
}

// New builds the Transcriber described by cfg: one backend per entry of
// cfg.Transcribers, wrapped in a Fallback. Misconfigured backends are skipped
// with a warning; with none left every call fails with ErrUnavailable.
func New(cfg *config.Config, logger *zap.Logger) Transcriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TranscribeTimeoutSeconds) * time.Second

	var backends []Backend
	for _, name := range cfg.Transcribers() {
		switch name {
		case "openai":
			b, err := NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel,
				WithOpenAIBaseURL(cfg.OpenAIBaseURL), WithOpenAITimeout(timeout))
			if err != nil {
				logger.Warn("speech backend disabled", zap.String("backend", name), zap.Error(err))
				continue
			}
			backends = append(backends, b)
		case "whisper":
			b, err := NewWhisper(cfg.WhisperURL, WithWhisperTimeout(timeout))
			if err != nil {
				logger.Warn("speech backend disabled", zap.String("backend", name), zap.Error(err))
				continue
			}
			backends = append(backends, b)
		default:
			logger.Warn("unknown speech backend", zap.String("backend", name))
		}
	}
	return NewFallback(logger, backends...)
}
