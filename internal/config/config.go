package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Subtitle contains caption generation and output settings.
type Subtitle struct {
	MaxCharsPerLine int      `toml:"max_chars_per_line"`
	Formats         []string `toml:"formats"`
}

// HTTPBackend configures the FunASR HTTP service.
type HTTPBackend struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Retries        int    `toml:"retries"`
}

// WSBackend configures the FunASR runtime websocket server.
type WSBackend struct {
	URL                string `toml:"url"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	ChunkBytes         int    `toml:"chunk_bytes"`
	Mode               string `toml:"mode"`
	ITN                bool   `toml:"itn"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// ASR selects and configures recognition backends.
type ASR struct {
	Backend  string      `toml:"backend"`  // "", funasr_http or funasr_ws
	Fallback string      `toml:"fallback"` // optional second backend
	Hotword  string      `toml:"hotword"`  // space separated
	HTTP     HTTPBackend `toml:"http"`
	WS       WSBackend   `toml:"ws"`
}

// Watch configures the directory watcher.
type Watch struct {
	Dir             string   `toml:"dir"`
	OutputDir       string   `toml:"output_dir"` // "" = next to the input
	AudioExtensions []string `toml:"audio_extensions"`
	DebounceMs      int      `toml:"debounce_ms"`
	PollIntervalMs  int      `toml:"poll_interval_ms"`
}

// Log contains diagnostics settings.
type Log struct {
	DebugFile string `toml:"debug_file"` // NDJSON log; "" = only with ASRSUB_DEBUG
	Verbose   bool   `toml:"verbose"`
}

// Config encapsulates all configuration values for asrsub.
//
// Configuration sections by subsystem:
//   - Subtitle: caption length limit and output formats
//   - ASR: backend selection plus [asr.http] and [asr.ws] connection settings
//   - Watch: input directory, output directory and debounce
//   - Log: diagnostics file and console verbosity
type Config struct {
	Subtitle Subtitle `toml:"subtitle"`
	ASR      ASR      `toml:"asr"`
	Watch    Watch    `toml:"watch"`
	Log      Log      `toml:"log"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file and before validation.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// Encode renders the effective configuration as TOML with secrets masked.
func (c *Config) Encode() ([]byte, error) {
	masked := *c
	if masked.ASR.HTTP.Token != "" {
		masked.ASR.HTTP.Token = "********"
	}
	data, err := toml.Marshal(masked)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
