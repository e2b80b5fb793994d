package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/moodmart/internal/config"
	"github.com/hpungsan/moodmart/internal/db"
	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/history"
	"github.com/hpungsan/moodmart/internal/ops"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	_, _ = io.ReadAll(audio)
	return f.text, f.err
}

// testSetup creates Deps rooted in a temporary directory.
func testSetup(t *testing.T) *ops.Deps {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	return &ops.Deps{
		BaseDir:     tmpDir,
		Log:         history.Open(filepath.Join(tmpDir, cfg.LogFile)),
		Index:       database,
		Config:      cfg,
		Transcriber: fakeTranscriber{text: "I feel great"},
	}
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func predict(t *testing.T, h *Handlers, texts ...string) {
	t.Helper()
	for _, text := range texts {
		result, err := h.HandlePredict(context.Background(), makeRequest(map[string]any{"text": text}))
		if err != nil || result.IsError {
			t.Fatalf("predict %q: err=%v result=%s", text, err, extractErrorMessage(result))
		}
	}
}

func TestHandlePredict(t *testing.T) {
	deps := testSetup(t)
	h := NewHandlers(deps)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantMood  string
		wantError bool
		errorCode string
	}{
		{name: "positive", args: map[string]any{"text": "so happy"}, wantMood: "Positive 😊"},
		{name: "negative wins", args: map[string]any{"text": "happy but sad"}, wantMood: "Negative 😔"},
		{name: "empty is neutral", args: map[string]any{}, wantMood: "Neutral 😐"},
		{name: "unknown argument", args: map[string]any{"txt": "typo"}, wantError: true, errorCode: "INVALID_REQUEST"},
		{name: "wrong type", args: map[string]any{"text": 42}, wantError: true, errorCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandlePredict(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Fatalf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			out := parseOutput(t, result)
			if out["mood"] != tt.wantMood {
				t.Errorf("mood = %v, want %s", out["mood"], tt.wantMood)
			}
			if products, _ := out["products"].([]any); len(products) != 3 {
				t.Errorf("products = %v, want 3", out["products"])
			}
		})
	}

	entries, err := deps.Log.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("logged %d rows, want 3 (failed calls must not log)", len(entries))
	}
}

func TestHandleTranscribe(t *testing.T) {
	deps := testSetup(t)
	h := NewHandlers(deps)
	ctx := context.Background()

	audioDir := ops.AudioDir(deps.BaseDir)
	if err := os.MkdirAll(audioDir, 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	clip := filepath.Join(audioDir, "clip.wav")
	if err := os.WriteFile(clip, []byte("RIFF....WAVE"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := h.HandleTranscribe(ctx, makeRequest(map[string]any{"path": clip}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["text"] != "I feel great" || out["recognized"] != true {
		t.Errorf("output = %v", out)
	}

	result, _ = h.HandleTranscribe(ctx, makeRequest(map[string]any{"path": filepath.Join(audioDir, "missing.wav")}))
	assertErrorCode(t, result, "FILE_NOT_FOUND")

	result, _ = h.HandleTranscribe(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleTranscribe_PathOutsideAllowedDirs(t *testing.T) {
	deps := testSetup(t)
	h := NewHandlers(deps)
	ctx := context.Background()

	outside := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(outside, []byte("RIFF....WAVE"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	result, _ := h.HandleTranscribe(ctx, makeRequest(map[string]any{"path": outside}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	// Allowed once its directory is listed in allowed_paths.
	deps.Config.AllowedPaths = []string{filepath.Dir(outside)}
	result, _ = h.HandleTranscribe(ctx, makeRequest(map[string]any{"path": outside}))
	out := parseOutput(t, result)
	if out["recognized"] != true {
		t.Errorf("output = %v", out)
	}

	secret := filepath.Join(filepath.Dir(outside), "notes.txt")
	result, _ = h.HandleTranscribe(ctx, makeRequest(map[string]any{"path": secret}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleTranscribe_TooLarge(t *testing.T) {
	deps := testSetup(t)
	deps.Config.MaxUploadBytes = 8
	h := NewHandlers(deps)

	audioDir := ops.AudioDir(deps.BaseDir)
	if err := os.MkdirAll(audioDir, 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	clip := filepath.Join(audioDir, "long.wav")
	if err := os.WriteFile(clip, []byte("RIFF........WAVE"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, _ := h.HandleTranscribe(context.Background(), makeRequest(map[string]any{"path": clip}))
	assertErrorCode(t, result, "PAYLOAD_TOO_LARGE")
}

func TestHandleHistory(t *testing.T) {
	deps := testSetup(t)
	h := NewHandlers(deps)
	predict(t, h, "happy one", "sad two", "plain three")

	result, err := h.HandleHistory(context.Background(), makeRequest(map[string]any{
		"newest": true,
		"limit":  2,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	items := out["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	first := items[0].(map[string]any)
	if first["text"] != "plain three" {
		t.Errorf("first item = %v, want newest entry", first)
	}
	pagination := out["pagination"].(map[string]any)
	if pagination["has_more"] != true || pagination["total"] != float64(3) {
		t.Errorf("pagination = %v", pagination)
	}

	result, _ = h.HandleHistory(context.Background(), makeRequest(map[string]any{"mood": "angry"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleStats(t *testing.T) {
	deps := testSetup(t)
	h := NewHandlers(deps)
	predict(t, h, "happy", "great", "down")

	result, err := h.HandleStats(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["total"] != float64(3) {
		t.Errorf("total = %v, want 3", out["total"])
	}
	moods := out["moods"].([]any)
	top := moods[0].(map[string]any)
	if top["name"] != "Positive" || top["count"] != float64(2) {
		t.Errorf("top mood = %v", top)
	}

	result, _ = h.HandleStats(context.Background(), makeRequest(map[string]any{"since": "last week"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleSearch(t *testing.T) {
	deps := testSetup(t)
	h := NewHandlers(deps)
	predict(t, h, "happy at the beach", "sad at work", "beach again")

	result, err := h.HandleSearch(context.Background(), makeRequest(map[string]any{"query": "BEACH"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if items := out["items"].([]any); len(items) != 2 {
		t.Errorf("items = %d, want 2", len(items))
	}

	result, _ = h.HandleSearch(context.Background(), makeRequest(map[string]any{"query": "  "}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleChart(t *testing.T) {
	deps := testSetup(t)
	h := NewHandlers(deps)
	ctx := context.Background()

	result, err := h.HandleChart(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "NO_HISTORY")

	predict(t, h, "happy", "sad")
	result, _ = h.HandleChart(ctx, makeRequest(nil))
	out := parseOutput(t, result)
	path := out["path"].(string)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("chart not written: %v", err)
	}
	if out["entries"] != float64(2) {
		t.Errorf("entries = %v, want 2", out["entries"])
	}

	result, _ = h.HandleChart(ctx, makeRequest(map[string]any{"path": "/tmp/../etc/chart.png"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleExport(t *testing.T) {
	deps := testSetup(t)
	h := NewHandlers(deps)
	ctx := context.Background()

	result, _ := h.HandleExport(ctx, makeRequest(nil))
	assertErrorCode(t, result, "NO_HISTORY")

	predict(t, h, "happy")

	result, _ = h.HandleExport(ctx, makeRequest(nil))
	out := parseOutput(t, result)
	if out["path"] != deps.Log.Path() {
		t.Errorf("path = %v, want log path", out["path"])
	}

	result, _ = h.HandleExport(ctx, makeRequest(map[string]any{"copy": true}))
	out = parseOutput(t, result)
	copyPath := out["path"].(string)
	if filepath.Dir(copyPath) != ops.ExportsDir(deps.BaseDir) {
		t.Errorf("copy path = %s, want inside exports dir", copyPath)
	}
	if _, err := os.Stat(copyPath); err != nil {
		t.Errorf("export copy missing: %v", err)
	}

	result, _ = h.HandleExport(ctx, makeRequest(map[string]any{"path": filepath.Join(t.TempDir(), "out.csv")}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleReindex(t *testing.T) {
	deps := testSetup(t)
	h := NewHandlers(deps)
	predict(t, h, "happy", "sad")

	result, err := h.HandleReindex(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["indexed"] != float64(2) {
		t.Errorf("indexed = %v, want 2", out["indexed"])
	}
}

func TestHandlePredict_CancelledContext(t *testing.T) {
	h := NewHandlers(testSetup(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.HandlePredict(ctx, makeRequest(map[string]any{"text": "happy"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "CANCELLED")
}

func TestServerRegistration(t *testing.T) {
	s := NewServer(testSetup(t), "test")
	tools := s.ListTools()

	expectedTools := []string{
		"mood_predict",
		"mood_transcribe",
		"mood_history",
		"mood_stats",
		"mood_search",
		"mood_chart",
		"mood_export",
		"mood_reindex",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	deps := testSetup(t)
	deps.Config.DisabledTools = []string{"mood_export", "mood_export", "mood_reindex"}

	tools := NewServer(deps, "test").ListTools()
	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"mood_export", "mood_reindex"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	if _, ok := tools["mood_predict"]; !ok {
		t.Error("mood_predict should still be registered")
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	deps := testSetup(t)
	deps.Config.DisabledTools = AllToolNames()

	if tools := NewServer(deps, "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{name: "all valid", input: []string{"mood_export", "mood_chart"}, wantLen: 0},
		{name: "one unknown", input: []string{"mood_export", "mood_delete"}, wantLen: 1},
		{name: "empty list", input: []string{}, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unknown := ValidateDisabledTools(tt.input); len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != len(toolRegistry) {
		t.Errorf("AllToolNames() returned %d names, want %d", len(names), len(toolRegistry))
	}
	if names[0] != "mood_chart" {
		t.Errorf("AllToolNames() not sorted: %v", names)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("open /home/me/.moodmart/moodmart.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message = %v, want generic message", errObj["message"])
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(fmt.Errorf("chart: %w", errors.NewFileNotFound("/x/clip.wav")))

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrFileNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrFileNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if result == nil || !result.IsError {
		t.Fatalf("expected error result with code %s, got %v", expectedCode, extractErrorMessage(result))
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is not TextContent")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload")
	}
	if code, _ := errorObj["code"].(string); code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
