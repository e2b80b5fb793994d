package ops

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/moodmart/internal/db"
	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/mood"
)

func TestPredict_Positive(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	out, err := Predict(ctx, d, PredictInput{Text: "I feel great today"})
	require.NoError(t, err)

	assert.Equal(t, mood.Positive, out.Mood)
	assert.Equal(t, "Happy - Pharrell Williams", out.Song.Name)
	assert.Equal(t, "[Happy - Pharrell Williams](https://open.spotify.com/track/6NPVjNh8Jhru9xOmyQigds)", out.SongMarkdown)
	assert.Equal(t, "Sunglasses", out.Products[0].Name)
	assert.Contains(t, out.ProductsMarkdown, "[Party Lights](")
	assert.Equal(t, "You’re on fire! 🔥 Maybe share your joy with someone?", out.Tip)
	assert.False(t, out.Timestamp.IsZero())

	data, err := os.ReadFile(d.Log.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], ",I feel great today,Positive 😊"))
}

func TestPredict_NegativeWins(t *testing.T) {
	d := newTestDeps(t)

	out, err := Predict(context.Background(), d, PredictInput{Text: "not happy, just sad"})
	require.NoError(t, err)
	assert.Equal(t, mood.Negative, out.Mood)
	assert.Equal(t, "It’s okay to feel down. Take a deep breath. ❤️", out.Tip)
}

func TestPredict_EmptyTextIsNeutral(t *testing.T) {
	d := newTestDeps(t)

	out, err := Predict(context.Background(), d, PredictInput{Text: ""})
	require.NoError(t, err)
	assert.Equal(t, mood.Neutral, out.Mood)

	entries, err := d.Log.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "", entries[0].Text)
}

func TestPredict_MirrorsIntoIndex(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	for _, text := range []string{"happy", "sad", "ok"} {
		_, err := Predict(ctx, d, PredictInput{Text: text})
		require.NoError(t, err)
	}

	n, err := db.CountEntries(ctx, d.Index)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, _, err := db.SearchEntries(ctx, d.Index, "sad", nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].Seq)
	assert.Len(t, rows[0].ID, 26)
}

func TestPredict_WithoutIndex(t *testing.T) {
	d := newTestDeps(t)
	d.Index = nil

	_, err := Predict(context.Background(), d, PredictInput{Text: "joyful"})
	require.NoError(t, err)
	assert.True(t, d.Log.Exists())
}

func TestPredict_CancelledContext(t *testing.T) {
	d := newTestDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Predict(ctx, d, PredictInput{Text: "happy"})
	requireCode(t, err, errors.ErrCancelled)
	assert.False(t, d.Log.Exists())
}

func TestPredict_MalformedRowDoesNotBlockAppend(t *testing.T) {
	d := newTestDeps(t)
	require.NoError(t, os.WriteFile(d.Log.Path(),
		[]byte("2025-01-01 09:00:00,fine,Neutral 😐\nnot-a-time,oops,Neutral 😐\n"), 0600))

	out, err := Predict(context.Background(), d, PredictInput{Text: "happy again"})
	require.NoError(t, err)
	assert.Equal(t, mood.Positive, out.Mood)
	assert.False(t, out.Timestamp.Before(at("2025-01-01 09:00:00")))

	data, err := os.ReadFile(d.Log.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[2], ",happy again,Positive 😊"))
}
