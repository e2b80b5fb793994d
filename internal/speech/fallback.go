package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Fallback tries backends in order and moves to the next one only when a
// backend reports ErrUnavailable.
type Fallback struct {
	backends []Backend
	logger   *zap.Logger
}

// NewFallback returns a Fallback over backends. With no backends every call
// fails with ErrUnavailable.
func NewFallback(logger *zap.Logger, backends ...Backend) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{backends: backends, logger: logger}
}

// Backends returns the configured backend names in order.
func (f *Fallback) Backends() []string {
	names := make([]string, len(f.backends))
	for i, b := range f.backends {
		names[i] = b.Name()
	}
	return names
}

// Transcribe implements Transcriber.
func (f *Fallback) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if len(f.backends) == 0 {
		return "", fmt.Errorf("no speech backend configured: %w", ErrUnavailable)
	}
	if len(f.backends) == 1 {
		return f.backends[0].Transcribe(ctx, audio, filename)
	}

	// Every attempt needs the full clip.
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}

	var lastErr error
	for _, b := range f.backends {
		text, err := b.Transcribe(ctx, bytes.NewReader(data), filename)
		if err == nil || !errors.Is(err, ErrUnavailable) {
			return text, err
		}
		f.logger.Warn("speech backend unavailable", zap.String("backend", b.Name()), zap.Error(err))
		lastErr = err
	}
	return "", lastErr
}
