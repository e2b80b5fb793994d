package mcp

import "github.com/mark3labs/mcp-go/mcp"

var predictToolDef = mcp.NewTool("mood_predict",
	mcp.WithDescription("Classify how someone feels as Positive, Negative or Neutral and return a song, three products and a tip for that mood. Every call is appended to the mood log."),
	mcp.WithString("text", mcp.Description("Free text describing the mood. Empty text classifies as Neutral.")),
)

var transcribeToolDef = mcp.NewTool("mood_transcribe",
	mcp.WithDescription("Transcribe a local audio file to text. Recognition failures come back as a message with recognized=false."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to an audio file (wav, mp3, m4a, webm, ogg, flac) directly inside <base>/audio or an allowed_paths directory.")),
)

var historyToolDef = mcp.NewTool("mood_history",
	mcp.WithDescription("List logged classifications from the mood log."),
	mcp.WithString("mood", mcp.Description("Filter by mood: positive, negative or neutral."), mcp.Enum("positive", "negative", "neutral")),
	mcp.WithNumber("limit", mcp.Description("Page size, default 20, max 100.")),
	mcp.WithNumber("offset", mcp.Description("Rows to skip.")),
	mcp.WithBoolean("newest", mcp.Description("Newest first instead of log order.")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statsToolDef = mcp.NewTool("mood_stats",
	mcp.WithDescription("Count logged classifications per mood, optionally within a date range."),
	mcp.WithString("since", mcp.Description("First day to include, YYYY-MM-DD.")),
	mcp.WithString("until", mcp.Description("Last day to include, YYYY-MM-DD.")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var searchToolDef = mcp.NewTool("mood_search",
	mcp.WithDescription("Find logged text containing a phrase, newest first."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for (case-insensitive).")),
	mcp.WithString("mood", mcp.Description("Filter by mood: positive, negative or neutral."), mcp.Enum("positive", "negative", "neutral")),
	mcp.WithNumber("limit", mcp.Description("Page size, default 20, max 100.")),
	mcp.WithNumber("offset", mcp.Description("Rows to skip.")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var chartToolDef = mcp.NewTool("mood_chart",
	mcp.WithDescription("Render the mood log as a PNG with a distribution pie and a daily timeline."),
	mcp.WithString("path", mcp.Description("Destination .png. Defaults to the configured chart file.")),
)

var exportToolDef = mcp.NewTool("mood_export",
	mcp.WithDescription("Export the mood log as CSV. Without a path the log file itself is returned."),
	mcp.WithString("path", mcp.Description("Destination .csv inside the exports directory or an allowed path.")),
	mcp.WithBoolean("copy", mcp.Description("Write a timestamped copy to the exports directory when no path is given.")),
)

var reindexToolDef = mcp.NewTool("mood_reindex",
	mcp.WithDescription("Rebuild the search index from the mood log."),
)
