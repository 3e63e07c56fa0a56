package config

import (
	"fmt"
	"os"
	"strings"
)

// applyEnv overrides file values with ASRSUB_* environment variables.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("ASRSUB_BACKEND"); ok {
		c.ASR.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("ASRSUB_HTTP_URL")); v != "" {
		c.ASR.HTTP.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("ASRSUB_WS_URL")); v != "" {
		c.ASR.WS.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("ASRSUB_TOKEN")); v != "" {
		c.ASR.HTTP.Token = v
	}
}

func (c *Config) normalize() error {
	c.normalizeSubtitle()
	c.normalizeASR()
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	var err error
	if c.Log.DebugFile, err = expandPath(strings.TrimSpace(c.Log.DebugFile)); err != nil {
		return fmt.Errorf("log.debug_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeSubtitle() {
	if c.Subtitle.MaxCharsPerLine == 0 {
		c.Subtitle.MaxCharsPerLine = defaultMaxCharsPerLine
	}
	c.Subtitle.Formats = lowerAll(c.Subtitle.Formats)
	if len(c.Subtitle.Formats) == 0 {
		c.Subtitle.Formats = []string{"srt"}
	}
}

func (c *Config) normalizeASR() {
	c.ASR.Backend = strings.ToLower(strings.TrimSpace(c.ASR.Backend))
	c.ASR.Fallback = strings.ToLower(strings.TrimSpace(c.ASR.Fallback))
	c.ASR.Hotword = strings.Join(strings.Fields(c.ASR.Hotword), " ")
	c.ASR.HTTP.URL = strings.TrimRight(strings.TrimSpace(c.ASR.HTTP.URL), "/")
	c.ASR.WS.URL = strings.TrimSpace(c.ASR.WS.URL)
	c.ASR.WS.Mode = strings.ToLower(strings.TrimSpace(c.ASR.WS.Mode))
	if c.ASR.WS.Mode == "" {
		c.ASR.WS.Mode = defaultWSMode
	}
	if c.ASR.HTTP.TimeoutSeconds == 0 {
		c.ASR.HTTP.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.ASR.WS.TimeoutSeconds == 0 {
		c.ASR.WS.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c *Config) normalizeWatch() error {
	var err error
	if c.Watch.Dir, err = expandPath(strings.TrimSpace(c.Watch.Dir)); err != nil {
		return fmt.Errorf("watch.dir: %w", err)
	}
	if c.Watch.OutputDir, err = expandPath(strings.TrimSpace(c.Watch.OutputDir)); err != nil {
		return fmt.Errorf("watch.output_dir: %w", err)
	}
	exts := make([]string, 0, len(c.Watch.AudioExtensions))
	for _, ext := range lowerAll(c.Watch.AudioExtensions) {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	c.Watch.AudioExtensions = exts
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = defaultDebounceMs
	}
	if c.Watch.PollIntervalMs == 0 {
		c.Watch.PollIntervalMs = defaultPollIntervalMs
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
