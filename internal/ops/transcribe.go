package ops

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/speech"
)

// Messages returned in place of a transcript.
const (
	MsgUnrecognized = "Sorry, couldn't understand your speech."
	MsgUnavailable  = "Speech recognition service is unavailable."
)

// TranscribeInput contains parameters for the Transcribe operation.
type TranscribeInput struct {
	Audio    io.Reader // required
	Filename string    // uploaded name; the extension selects the audio format
}

// TranscribeOutput contains the result of the Transcribe operation.
// When Recognized is false, Text holds a user-facing message instead of a
// transcript.
type TranscribeOutput struct {
	Text       string `json:"text"`
	Recognized bool   `json:"recognized"`
}

// Transcribe converts speech to text. Recognition failures are not errors:
// they collapse into one of three messages. Only a cancelled caller gets an
// error back.
func Transcribe(ctx context.Context, d *Deps, input TranscribeInput) (*TranscribeOutput, error) {
	if input.Audio == nil {
		return nil, errors.NewInvalidRequest("audio is required")
	}

	audio := input.Audio
	if maxBytes := d.config().MaxUploadBytes; maxBytes > 0 {
		clip, err := io.ReadAll(io.LimitReader(input.Audio, maxBytes+1))
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.NewCancelled("transcribe")
			}
			return nil, errors.NewInvalidRequest(fmt.Sprintf("read audio: %v", err))
		}
		if int64(len(clip)) > maxBytes {
			return nil, errors.NewPayloadTooLarge(maxBytes, int64(len(clip)))
		}
		audio = bytes.NewReader(clip)
	}

	start := time.Now()
	var (
		text string
		err  error
	)
	if d.Transcriber == nil {
		err = speech.ErrUnavailable
	} else {
		text, err = d.Transcriber.Transcribe(ctx, audio, input.Filename)
	}
	elapsed := time.Since(start).Seconds()

	if err != nil && ctx.Err() != nil {
		return nil, errors.NewCancelled("transcribe")
	}

	out, outcome := collapse(text, err)
	d.Metrics.RecordTranscription(ctx, outcome, elapsed)
	if err != nil {
		d.logger(ctx).Info("transcription failed", zap.String("outcome", outcome), zap.Error(err))
	}
	return out, nil
}

// collapse maps a transcription result onto the output and a metrics outcome.
func collapse(text string, err error) (*TranscribeOutput, string) {
	switch {
	case err == nil:
		return &TranscribeOutput{Text: text, Recognized: true}, "ok"
	case stderrors.Is(err, speech.ErrUnrecognized):
		return &TranscribeOutput{Text: MsgUnrecognized}, "unrecognized"
	case stderrors.Is(err, speech.ErrUnavailable):
		return &TranscribeOutput{Text: MsgUnavailable}, "unavailable"
	default:
		return &TranscribeOutput{Text: "Error: " + err.Error()}, "error"
	}
}
