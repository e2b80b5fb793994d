package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/config"
	"github.com/hpungsan/moodmart/internal/db"
	"github.com/hpungsan/moodmart/internal/mood"
	"github.com/hpungsan/moodmart/internal/ops"
)

type fakeTranscriber struct{ text string }

func (f fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	_, _ = io.ReadAll(audio)
	return f.text, nil
}

// setupTestEnv creates an env rooted in a temporary directory.
func setupTestEnv(t *testing.T) *env {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	deps := newDeps(tmpDir, config.DefaultConfig(), database, zap.NewNop())
	deps.Transcriber = fakeTranscriber{text: "I am happy"}
	return &env{deps: deps, logger: zap.NewNop()}
}

// runCLI runs args against e and returns captured stdout.
func runCLI(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(e)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := app.Run(append([]string{"moodmart"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), err
}

func TestCLIPredict(t *testing.T) {
	e := setupTestEnv(t)

	out, err := runCLI(t, e, "predict", "I", "feel", "great")
	if err != nil {
		t.Fatalf("predict command failed: %v", err)
	}

	var output ops.PredictOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Mood != mood.Positive {
		t.Errorf("expected mood=%s, got %s", mood.Positive, output.Mood)
	}
	if output.Song.Name != "Happy - Pharrell Williams" {
		t.Errorf("unexpected song %q", output.Song.Name)
	}

	entries, err := e.deps.Log.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "I feel great" {
		t.Errorf("log = %+v", entries)
	}
}

func TestCLITranscribe(t *testing.T) {
	e := setupTestEnv(t)
	clip := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(clip, []byte("RIFF....WAVE"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := runCLI(t, e, "transcribe", "--file", clip, "--predict")
	if err != nil {
		t.Fatalf("transcribe command failed: %v", err)
	}

	var output struct {
		Text       string             `json:"text"`
		Recognized bool               `json:"recognized"`
		Prediction *ops.PredictOutput `json:"prediction"`
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Text != "I am happy" || !output.Recognized {
		t.Errorf("unexpected transcript %+v", output)
	}
	if output.Prediction == nil || output.Prediction.Mood != mood.Positive {
		t.Errorf("expected positive prediction, got %+v", output.Prediction)
	}
}

func TestCLITranscribe_MissingFile(t *testing.T) {
	e := setupTestEnv(t)

	_, err := runCLI(t, e, "transcribe", "--file", filepath.Join(t.TempDir(), "nope.wav"))
	if err == nil || !strings.Contains(err.Error(), "[FILE_NOT_FOUND]") {
		t.Errorf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestCLIHistoryAndStats(t *testing.T) {
	e := setupTestEnv(t)
	for _, text := range []string{"happy", "sad", "great"} {
		if _, err := runCLI(t, e, "predict", text); err != nil {
			t.Fatalf("predict %q: %v", text, err)
		}
	}

	out, err := runCLI(t, e, "history", "--mood", "positive", "--newest")
	if err != nil {
		t.Fatalf("history command failed: %v", err)
	}
	var list ops.ListOutput
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(list.Items) != 2 || list.Items[0].Text != "great" {
		t.Errorf("unexpected history %+v", list.Items)
	}

	out, err = runCLI(t, e, "stats")
	if err != nil {
		t.Fatalf("stats command failed: %v", err)
	}
	var stats ops.StatsOutput
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if stats.Total != 3 || stats.Moods[0].Mood != mood.Positive {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestCLISearch(t *testing.T) {
	e := setupTestEnv(t)
	for _, text := range []string{"sad about rain", "happy in the sun"} {
		if _, err := runCLI(t, e, "predict", text); err != nil {
			t.Fatalf("predict %q: %v", text, err)
		}
	}

	out, err := runCLI(t, e, "search", "rain")
	if err != nil {
		t.Fatalf("search command failed: %v", err)
	}
	var output ops.SearchOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(output.Items) != 1 || output.Items[0].Mood != mood.Negative {
		t.Errorf("unexpected results %+v", output.Items)
	}
}

func TestCLIChartAndExport(t *testing.T) {
	e := setupTestEnv(t)

	_, err := runCLI(t, e, "chart")
	if err == nil || !strings.Contains(err.Error(), "[NO_HISTORY]") {
		t.Fatalf("expected NO_HISTORY before any prediction, got %v", err)
	}
	_, err = runCLI(t, e, "export")
	if err == nil || !strings.Contains(err.Error(), "[NO_HISTORY]") {
		t.Fatalf("expected NO_HISTORY before any prediction, got %v", err)
	}

	if _, err := runCLI(t, e, "predict", "excited"); err != nil {
		t.Fatalf("predict: %v", err)
	}

	out, err := runCLI(t, e, "chart")
	if err != nil {
		t.Fatalf("chart command failed: %v", err)
	}
	var chart ops.ChartOutput
	if err := json.Unmarshal([]byte(out), &chart); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if _, err := os.Stat(chart.Path); err != nil {
		t.Errorf("chart file missing: %v", err)
	}

	exportPath := filepath.Join(ops.ExportsDir(e.deps.BaseDir), "moods.csv")
	out, err = runCLI(t, e, "export", "--path="+exportPath)
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}
	var export ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &export); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if export.Count != 1 || export.Path != exportPath {
		t.Errorf("unexpected export %+v", export)
	}
}

func TestCLIReindex(t *testing.T) {
	e := setupTestEnv(t)
	if _, err := runCLI(t, e, "predict", "fine"); err != nil {
		t.Fatalf("predict: %v", err)
	}

	out, err := runCLI(t, e, "reindex")
	if err != nil {
		t.Fatalf("reindex command failed: %v", err)
	}
	var output ops.ReindexOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Indexed != 1 {
		t.Errorf("expected indexed=1, got %d", output.Indexed)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	e := setupTestEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "bad mood filter", args: []string{"history", "--mood", "angry"}, want: "[INVALID_REQUEST]"},
		{name: "bad date", args: []string{"stats", "--since", "soon"}, want: "[INVALID_REQUEST]"},
		{name: "empty search", args: []string{"search"}, want: "[INVALID_REQUEST]"},
		{name: "export outside exports", args: []string{"export", "--path", "/etc/moods.csv"}, want: "[INVALID_REQUEST]"},
	}

	if _, err := runCLI(t, e, "predict", "meh"); err != nil {
		t.Fatalf("predict: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, e, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %s, got %v", tt.want, err)
			}
		})
	}
}

func TestCLIHelpDoesNotOpenEnv(t *testing.T) {
	t.Setenv("MOODMART_DIR", filepath.Join(t.TempDir(), "never"))

	app := newCLIApp(nil)
	oldStdout := os.Stdout
	_, w, _ := os.Pipe()
	os.Stdout = w
	err := app.Run([]string{"moodmart", "--help"})
	w.Close()
	os.Stdout = oldStdout

	if err != nil {
		t.Fatalf("--help failed: %v", err)
	}
	if _, err := os.Stat(os.Getenv("MOODMART_DIR")); !os.IsNotExist(err) {
		t.Errorf("--help should not create the base dir")
	}
}

func TestOpenEnv(t *testing.T) {
	baseDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(baseDir, "config.yaml"), []byte("log_file: moods.csv\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	e, err := openEnv(context.Background(), baseDir, false)
	if err != nil {
		t.Fatalf("openEnv: %v", err)
	}
	defer e.Close()

	if got := e.deps.Log.Path(); got != filepath.Join(baseDir, "moods.csv") {
		t.Errorf("log path = %s", got)
	}
	if e.deps.Index == nil || e.deps.Transcriber == nil {
		t.Error("expected index and transcriber to be wired")
	}
}

func TestReadWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		result, err := readWithLimit(strings.NewReader("  small content \n"), 1000)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "small content" {
			t.Errorf("expected %q, got %q", "small content", result)
		}
	})

	t.Run("exceeds limit", func(t *testing.T) {
		_, err := readWithLimit(strings.NewReader(strings.Repeat("x", 100)), 50)
		if err == nil || !strings.Contains(err.Error(), "PAYLOAD_TOO_LARGE") {
			t.Errorf("expected PAYLOAD_TOO_LARGE, got %v", err)
		}
	})
}
