package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/ops"
	"github.com/hpungsan/moodmart/internal/safefile"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps *ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// PredictRequest represents the arguments for mood_predict.
type PredictRequest struct {
	Text string `json:"text"`
}

// TranscribeRequest represents the arguments for mood_transcribe.
type TranscribeRequest struct {
	Path string `json:"path"`
}

// HistoryRequest represents the arguments for mood_history.
type HistoryRequest struct {
	Mood   string `json:"mood,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Newest bool   `json:"newest,omitempty"`
}

// StatsRequest represents the arguments for mood_stats.
type StatsRequest struct {
	Since string `json:"since,omitempty"`
	Until string `json:"until,omitempty"`
}

// SearchRequest represents the arguments for mood_search.
type SearchRequest struct {
	Query  string `json:"query"`
	Mood   string `json:"mood,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ChartRequest represents the arguments for mood_chart.
type ChartRequest struct {
	Path string `json:"path,omitempty"`
}

// ExportRequest represents the arguments for mood_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
	Copy bool   `json:"copy,omitempty"`
}

// Handler implementations

// HandlePredict handles the mood_predict tool call.
func (h *Handlers) HandlePredict(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PredictRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Predict(ctx, h.deps, ops.PredictInput{Text: input.Text})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTranscribe handles the mood_transcribe tool call.
func (h *Handlers) HandleTranscribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TranscribeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := ops.ValidateAudioPath(input.Path, h.deps.BaseDir, h.deps.Config); err != nil {
		return errorResult(err), nil
	}

	f, err := safefile.OpenNoFollowRead(input.Path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return errorResult(errors.NewFileNotFound(input.Path)), nil
		}
		if stderrors.Is(err, safefile.ErrSymlink) {
			return errorResult(errors.NewInvalidRequest("path must not be a symlink")), nil
		}
		return errorResult(errors.NewInternal(err)), nil
	}
	defer f.Close()

	result, err := ops.Transcribe(ctx, h.deps, ops.TranscribeInput{
		Audio:    f,
		Filename: filepath.Base(input.Path),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the mood_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.deps, ops.ListInput{
		Mood:   input.Mood,
		Limit:  input.Limit,
		Offset: input.Offset,
		Newest: input.Newest,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStats handles the mood_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Stats(ctx, h.deps, ops.StatsInput{
		Since: input.Since,
		Until: input.Until,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSearch handles the mood_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.deps, ops.SearchInput{
		Query:  input.Query,
		Mood:   input.Mood,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleChart handles the mood_chart tool call.
func (h *Handlers) HandleChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChartRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Chart(ctx, h.deps, ops.ChartInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	if result == nil {
		return errorResult(errors.NewNoHistory()), nil
	}
	return successResult(result)
}

// HandleExport handles the mood_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.deps, ops.ExportInput{
		Path: input.Path,
		Copy: input.Copy,
	})
	if err != nil {
		return errorResult(err), nil
	}
	if result == nil {
		return errorResult(errors.NewNoHistory()), nil
	}
	return successResult(result)
}

// HandleReindex handles the mood_reindex tool call.
func (h *Handlers) HandleReindex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Reindex(ctx, h.deps)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var mErr *errors.MoodError
	if stderrors.As(err, &mErr) {
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": mErr.Message,
			"status":  mErr.Status,
		}
		if mErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
