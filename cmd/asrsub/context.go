package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tiroq/asrsub/internal/asr"
	"github.com/tiroq/asrsub/internal/asr/funasrhttp"
	"github.com/tiroq/asrsub/internal/asr/funasrws"
	"github.com/tiroq/asrsub/internal/captioner"
	"github.com/tiroq/asrsub/internal/config"
	"github.com/tiroq/asrsub/internal/diaglog"
	"github.com/tiroq/asrsub/internal/ipc"
	"github.com/tiroq/asrsub/internal/pipeline"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	diagOnce sync.Once
	diag     *diaglog.Logger
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) verbose() bool {
	if c.verboseFlag != nil && *c.verboseFlag {
		return true
	}
	return c.config != nil && c.config.Log.Verbose
}

// console returns the human-readable logger for cmd's stderr.
func (c *commandContext) console(cmd *cobra.Command) zerolog.Logger {
	return diaglog.Console(cmd.ErrOrStderr(), c.verbose())
}

// diagLogger opens the NDJSON debug log once per invocation. A log that
// cannot be opened degrades to a no-op logger.
func (c *commandContext) diagLogger() *diaglog.Logger {
	c.diagOnce.Do(func() {
		var (
			l   *diaglog.Logger
			err error
		)
		if c.config != nil && c.config.Log.DebugFile != "" {
			l, err = diaglog.Open(c.config.Log.DebugFile)
		} else {
			l, err = diaglog.New(defaultDiagPath())
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: debug log unavailable: %v\n", err)
			l = diaglog.NewNoOp()
		}
		c.diag = l
	})
	return c.diag
}

func (c *commandContext) close() error {
	if c.diag == nil {
		return nil
	}
	return c.diag.Close()
}

// diagPath is where `export-diag` reads from.
func (c *commandContext) diagPath() string {
	if c.config != nil && c.config.Log.DebugFile != "" {
		return c.config.Log.DebugFile
	}
	return defaultDiagPath()
}

func defaultDiagPath() string {
	return filepath.Join(ipc.Dir(), "debug.ndjson")
}

// registry builds the configured backends. It returns nil when no backend
// is selected.
func (c *commandContext) registry(cfg *config.Config) *asr.Registry {
	if cfg.ASR.Backend == config.BackendNone {
		return nil
	}
	reg := asr.NewRegistry()
	for _, name := range []string{cfg.ASR.Backend, cfg.ASR.Fallback} {
		if name == config.BackendNone {
			continue
		}
		if _, ok := reg.Get(name); ok {
			continue
		}
		if b := c.backend(cfg, name); b != nil {
			reg.Register(name, b)
		}
	}
	reg.SetPrimary(cfg.ASR.Backend)
	if cfg.ASR.Fallback != "" {
		reg.SetFallback(cfg.ASR.Fallback)
	}
	return reg
}

func (c *commandContext) backend(cfg *config.Config, name string) asr.Backend {
	switch name {
	case config.BackendHTTP:
		client := funasrhttp.NewClient(funasrhttp.Config{
			BaseURL:        cfg.ASR.HTTP.URL,
			Token:          cfg.ASR.HTTP.Token,
			TimeoutSeconds: cfg.ASR.HTTP.TimeoutSeconds,
			Retries:        cfg.ASR.HTTP.Retries,
		})
		client.SetLogger(c.diagLogger())
		return client
	case config.BackendWS:
		client := funasrws.NewClient(funasrws.Config{
			URL:                cfg.ASR.WS.URL,
			TimeoutSeconds:     cfg.ASR.WS.TimeoutSeconds,
			ChunkBytes:         cfg.ASR.WS.ChunkBytes,
			InsecureSkipVerify: cfg.ASR.WS.InsecureSkipVerify,
		})
		client.SetLogger(c.diagLogger())
		return client
	default:
		return nil
	}
}

// outputFlags are shared by every command that writes subtitles.
type outputFlags struct {
	formats   []string
	maxChars  int
	outputDir string
	noSidecar bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.formats, "format", "f", nil, "Output formats: srt, vtt, txt, json (default from config)")
	cmd.Flags().IntVarP(&f.maxChars, "max-chars", "m", 0, "Maximum characters per caption (default from config)")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Write outputs here instead of next to the input")
	cmd.Flags().BoolVar(&f.noSidecar, "no-sidecar", false, "Do not write the .meta.json sidecar")
}

// runner assembles the processing pipeline from config plus flag overrides.
func (c *commandContext) runner(flags *outputFlags) (*pipeline.Runner, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	maxChars := cfg.Subtitle.MaxCharsPerLine
	if flags.maxChars > 0 {
		maxChars = flags.maxChars
	}
	formats := cfg.Subtitle.Formats
	if len(flags.formats) > 0 {
		formats = lowerAll(flags.formats)
	}
	outDir := cfg.Watch.OutputDir
	if flags.outputDir != "" {
		outDir, err = config.ExpandPath(flags.outputDir)
		if err != nil {
			return nil, err
		}
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	engine := captioner.New(c.registry(cfg), captioner.Config{
		MaxChars: maxChars,
		Options: asr.TranscribeOptions{
			Hotword: cfg.ASR.Hotword,
			Mode:    cfg.ASR.WS.Mode,
			ITN:     cfg.ASR.WS.ITN,
		},
	})
	engine.SetLogger(c.diagLogger())

	runner := pipeline.New(engine, pipeline.Config{
		Formats:   formats,
		OutputDir: outDir,
		Version:   Version,
		NoSidecar: flags.noSidecar,
	})
	runner.SetLogger(c.diagLogger())
	return runner, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
