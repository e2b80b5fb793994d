package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// LogFile is the CSV mood log. Relative paths are resolved against the base dir.
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty"`

	// ChartFile is where the mood chart PNG is written.
	ChartFile string `json:"chart_file,omitempty" yaml:"chart_file,omitempty"`

	// Bind and Port are the web UI listen address.
	Bind string `json:"bind,omitempty" yaml:"bind,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`

	// Transcriber lists speech backends in the order they are tried,
	// comma-separated: "openai", "whisper", or "openai,whisper".
	Transcriber string `json:"transcriber,omitempty" yaml:"transcriber,omitempty"`

	OpenAIAPIKey  string `json:"openai_api_key,omitempty" yaml:"openai_api_key,omitempty"`
	OpenAIModel   string `json:"openai_model,omitempty" yaml:"openai_model,omitempty"`
	OpenAIBaseURL string `json:"openai_base_url,omitempty" yaml:"openai_base_url,omitempty"`

	// WhisperURL is the base URL of a whisper.cpp whisper-server.
	WhisperURL string `json:"whisper_url,omitempty" yaml:"whisper_url,omitempty"`

	// TranscribeTimeoutSeconds bounds a single transcription request.
	TranscribeTimeoutSeconds int `json:"transcribe_timeout_seconds,omitempty" yaml:"transcribe_timeout_seconds,omitempty"`

	// MaxUploadBytes caps voice clip uploads.
	MaxUploadBytes int64 `json:"max_upload_bytes,omitempty" yaml:"max_upload_bytes,omitempty"`

	// AppLogFile enables a rotated JSON application log in addition to stderr.
	AppLogFile  string `json:"app_log_file,omitempty" yaml:"app_log_file,omitempty"`
	AppLogLevel string `json:"app_log_level,omitempty" yaml:"app_log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for export copies.
	// Paths outside <base>/exports require either being in this list or AllowUnsafePaths=true.
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export copies
	// (symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" yaml:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns and DBMaxIdleConns tune the SQLite index pool. 0 keeps the sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogFile:                  "mood_history.csv",
		ChartFile:                "mood_chart.png",
		Bind:                     "127.0.0.1",
		Port:                     7860,
		Transcriber:              "openai",
		OpenAIModel:              "whisper-1",
		TranscribeTimeoutSeconds: 30,
		MaxUploadBytes:           25 << 20,
		AppLogLevel:              "info",
	}
}

// Load loads configuration from baseDir/config.yaml, or baseDir/config.json
// when no YAML file exists, then applies environment overrides.
// Returns default config (plus environment) if neither file exists.
func Load(baseDir string) (*Config, error) {
	path := filepath.Join(baseDir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(baseDir, "config.json")
	}
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	return ApplyEnv(cfg), nil
}

// loadFileRaw loads configuration from a specific file path, choosing the
// decoder by extension. Returns zero-valued config if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// ApplyEnv overrides cfg with MOODMART_* environment variables. The OpenAI
// key is also read from OPENAI_API_KEY.
func ApplyEnv(cfg *Config) *Config {
	v := viper.New()
	v.SetEnvPrefix("moodmart")
	v.AutomaticEnv()
	_ = v.BindEnv("openai_api_key", "MOODMART_OPENAI_API_KEY", "OPENAI_API_KEY")

	env := &Config{
		LogFile:                  v.GetString("log_file"),
		ChartFile:                v.GetString("chart_file"),
		Bind:                     v.GetString("bind"),
		Port:                     v.GetInt("port"),
		Transcriber:              v.GetString("transcriber"),
		OpenAIAPIKey:             v.GetString("openai_api_key"),
		OpenAIModel:              v.GetString("openai_model"),
		OpenAIBaseURL:            v.GetString("openai_base_url"),
		WhisperURL:               v.GetString("whisper_url"),
		TranscribeTimeoutSeconds: v.GetInt("transcribe_timeout_seconds"),
		MaxUploadBytes:           v.GetInt64("max_upload_bytes"),
		AppLogFile:               v.GetString("app_log_file"),
		AppLogLevel:              v.GetString("app_log_level"),
		AllowUnsafePaths:         v.GetBool("allow_unsafe_paths"),
	}
	if paths := v.GetString("allowed_paths"); paths != "" {
		env.AllowedPaths = strings.Split(paths, string(os.PathListSeparator))
	}
	return Merge(cfg, env)
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		LogFile:                  pickString(overlay.LogFile, base.LogFile),
		ChartFile:                pickString(overlay.ChartFile, base.ChartFile),
		Bind:                     pickString(overlay.Bind, base.Bind),
		Port:                     pickInt(overlay.Port, base.Port),
		Transcriber:              pickString(overlay.Transcriber, base.Transcriber),
		OpenAIAPIKey:             pickString(overlay.OpenAIAPIKey, base.OpenAIAPIKey),
		OpenAIModel:              pickString(overlay.OpenAIModel, base.OpenAIModel),
		OpenAIBaseURL:            pickString(overlay.OpenAIBaseURL, base.OpenAIBaseURL),
		WhisperURL:               pickString(overlay.WhisperURL, base.WhisperURL),
		TranscribeTimeoutSeconds: pickInt(overlay.TranscribeTimeoutSeconds, base.TranscribeTimeoutSeconds),
		MaxUploadBytes:           overlay.MaxUploadBytes,
		AppLogFile:               pickString(overlay.AppLogFile, base.AppLogFile),
		AppLogLevel:              pickString(overlay.AppLogLevel, base.AppLogLevel),
		DBMaxOpenConns:           pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:           pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = base.MaxUploadBytes
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// Transcribers returns the configured speech backends in order.
func (c *Config) Transcribers() []string {
	return mergeStringSlice(strings.Split(c.Transcriber, ","), nil)
}

// ResolvePath returns p, joined onto baseDir when relative.
func ResolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
