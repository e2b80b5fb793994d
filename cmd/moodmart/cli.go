package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/health"
	"github.com/hpungsan/moodmart/internal/mcp"
	"github.com/hpungsan/moodmart/internal/ops"
	"github.com/hpungsan/moodmart/internal/safefile"
	"github.com/hpungsan/moodmart/internal/web"
)

// maxStdinBytes caps text read from stdin by predict.
const maxStdinBytes = 1 << 20

// state opens the environment on first use so --help and --version never
// touch the base dir. Tests inject a ready env.
type state struct {
	env    *env
	opened bool
}

func (s *state) get(c *cli.Context) (*env, error) {
	if s.env != nil {
		return s.env, nil
	}
	e, err := openEnv(c.Context, c.String("dir"), c.Command.Name == "serve")
	if err != nil {
		return nil, err
	}
	s.env, s.opened = e, true
	return e, nil
}

func (s *state) close() {
	if s.opened && s.env != nil {
		s.env.Close()
	}
}

// action wraps fn so it receives the opened environment.
func (s *state) action(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := s.get(c)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		return fn(c, e)
	}
}

// newCLIApp creates the CLI application with all commands. A nil env is
// opened from --dir when a command first needs it.
func newCLIApp(e *env) *cli.App {
	st := &state{env: e}
	app := &cli.App{
		Name:    "moodmart",
		Usage:   "Mood-based song and product recommendations",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Value:   defaultBaseDir(),
				EnvVars: []string{"MOODMART_DIR"},
				Usage:   "Base directory for config, mood log, index and exports",
			},
		},
		Commands: []*cli.Command{
			serveCmd(st),
			predictCmd(st),
			transcribeCmd(st),
			historyCmd(st),
			statsCmd(st),
			searchCmd(st),
			chartCmd(st),
			exportCmd(st),
			reindexCmd(st),
			mcpCmd(st),
		},
		After: func(*cli.Context) error {
			st.close()
			return nil
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default from config, 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config, 7860)"},
		},
		Action: st.action(func(c *cli.Context, e *env) error {
			cfg := e.deps.Config
			bind, port := cfg.Bind, cfg.Port
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			if c.IsSet("port") {
				port = c.Int("port")
			}

			checks := health.New(
				health.DirWritable(filepath.Dir(e.deps.Log.Path())),
				health.Database(e.deps.Index),
			)
			srv, err := web.NewServer(e.deps, web.Options{
				Version:      Version,
				Bind:         bind,
				Port:         port,
				Health:       checks,
				Metrics:      e.deps.Metrics,
				ServeMetrics: true,
				Logger:       e.logger,
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, e.logger)
		}),
	}
}

// predictCmd creates the predict command.
func predictCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:      "predict",
		Usage:     "Classify text and print the recommendation (reads stdin when no text is given)",
		ArgsUsage: "[text...]",
		Action: st.action(func(c *cli.Context, e *env) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				var err error
				text, err = readStdinWithLimit(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
			}

			output, err := ops.Predict(c.Context, e.deps, ops.PredictInput{Text: text})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// transcribeOutput adds the optional recommendation to a transcript.
type transcribeOutput struct {
	*ops.TranscribeOutput
	Prediction *ops.PredictOutput `json:"prediction,omitempty"`
}

// transcribeCmd creates the transcribe command.
func transcribeCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "transcribe",
		Usage: "Transcribe a voice clip",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "Audio file"},
			&cli.BoolFlag{Name: "predict", Usage: "Also classify the transcript"},
		},
		Action: st.action(func(c *cli.Context, e *env) error {
			path := c.String("file")
			f, err := safefile.OpenNoFollowRead(path)
			if err != nil {
				if stderrors.Is(err, os.ErrNotExist) {
					return outputError(errors.NewFileNotFound(path))
				}
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			defer f.Close()

			transcript, err := ops.Transcribe(c.Context, e.deps, ops.TranscribeInput{
				Audio:    f,
				Filename: filepath.Base(path),
			})
			if err != nil {
				return outputError(err)
			}

			out := transcribeOutput{TranscribeOutput: transcript}
			if c.Bool("predict") && transcript.Recognized {
				out.Prediction, err = ops.Predict(c.Context, e.deps, ops.PredictInput{Text: transcript.Text})
				if err != nil {
					return outputError(err)
				}
			}
			return outputJSON(out)
		}),
	}
}

// historyCmd creates the history command.
func historyCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List logged classifications",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mood", Aliases: []string{"m"}, Usage: "Filter by mood: positive|negative|neutral"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
			&cli.BoolFlag{Name: "newest", Usage: "Newest first"},
		},
		Action: st.action(func(c *cli.Context, e *env) error {
			output, err := ops.List(c.Context, e.deps, ops.ListInput{
				Mood:   c.String("mood"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
				Newest: c.Bool("newest"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// statsCmd creates the stats command.
func statsCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Count classifications per mood",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "since", Usage: "First day to include (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "until", Usage: "Last day to include (YYYY-MM-DD)"},
		},
		Action: st.action(func(c *cli.Context, e *env) error {
			output, err := ops.Stats(c.Context, e.deps, ops.StatsInput{
				Since: c.String("since"),
				Until: c.String("until"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// searchCmd creates the search command.
func searchCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find logged text containing a phrase",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mood", Aliases: []string{"m"}, Usage: "Filter by mood: positive|negative|neutral"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: st.action(func(c *cli.Context, e *env) error {
			output, err := ops.Search(c.Context, e.deps, ops.SearchInput{
				Query:  strings.Join(c.Args().Slice(), " "),
				Mood:   c.String("mood"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// chartCmd creates the chart command.
func chartCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "chart",
		Usage: "Render the mood chart PNG",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output .png (default: chart_file in the base dir)"},
		},
		Action: st.action(func(c *cli.Context, e *env) error {
			output, err := ops.Chart(c.Context, e.deps, ops.ChartInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			if output == nil {
				return outputError(errors.NewNoHistory())
			}
			return outputJSON(output)
		}),
	}
}

// exportCmd creates the export command.
func exportCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the mood log as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output .csv (inside the exports dir or allowed_paths)"},
			&cli.BoolFlag{Name: "copy", Usage: "Write a timestamped copy to the exports dir"},
		},
		Action: st.action(func(c *cli.Context, e *env) error {
			output, err := ops.Export(c.Context, e.deps, ops.ExportInput{
				Path: c.String("path"),
				Copy: c.Bool("copy"),
			})
			if err != nil {
				return outputError(err)
			}
			if output == nil {
				return outputError(errors.NewNoHistory())
			}
			return outputJSON(output)
		}),
	}
}

// reindexCmd creates the reindex command.
func reindexCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the search index from the mood log",
		Action: st.action(func(c *cli.Context, e *env) error {
			output, err := ops.Reindex(c.Context, e.deps)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: st.action(func(c *cli.Context, e *env) error {
			if unknown := mcp.ValidateDisabledTools(e.deps.Config.DisabledTools); len(unknown) > 0 {
				e.logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
			}
			return mcp.Run(e.deps, Version, e.logger)
		}),
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var mErr *errors.MoodError
	if stderrors.As(err, &mErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdinWithLimit reads stdin up to limit bytes, trimmed.
func readStdinWithLimit(limit int64) (string, error) {
	return readWithLimit(os.Stdin, limit)
}

func readWithLimit(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewPayloadTooLarge(limit, int64(len(data)))
	}
	return strings.TrimSpace(string(data)), nil
}
