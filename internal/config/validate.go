package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var knownFormats = map[string]bool{"srt": true, "vtt": true, "txt": true, "json": true}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSubtitle(); err != nil {
		return err
	}
	if err := c.validateASR(); err != nil {
		return err
	}
	return c.validateWatch()
}

func (c *Config) validateSubtitle() error {
	if c.Subtitle.MaxCharsPerLine < 0 {
		return errors.New("subtitle.max_chars_per_line must be positive")
	}
	for _, f := range c.Subtitle.Formats {
		if !knownFormats[f] {
			return fmt.Errorf("subtitle.formats: unknown format %q (want srt, vtt, txt or json)", f)
		}
	}
	return nil
}

func (c *Config) validateASR() error {
	for field, name := range map[string]string{"asr.backend": c.ASR.Backend, "asr.fallback": c.ASR.Fallback} {
		switch name {
		case BackendNone:
		case BackendHTTP:
			if err := validateURL(field+" = funasr_http needs asr.http.url", c.ASR.HTTP.URL, "http", "https"); err != nil {
				return err
			}
		case BackendWS:
			if err := validateURL(field+" = funasr_ws needs asr.ws.url", c.ASR.WS.URL, "ws", "wss"); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s: unknown backend %q (want %s or %s)", field, name, BackendHTTP, BackendWS)
		}
	}
	if c.ASR.Backend == BackendNone && c.ASR.Fallback != BackendNone {
		return errors.New("asr.fallback is set without asr.backend")
	}
	if c.ASR.HTTP.TimeoutSeconds < 0 || c.ASR.WS.TimeoutSeconds < 0 {
		return errors.New("asr timeout_seconds must be positive")
	}
	if c.ASR.HTTP.Retries < 0 {
		return errors.New("asr.http.retries must not be negative")
	}
	switch c.ASR.WS.Mode {
	case "offline", "online", "2pass":
	default:
		return fmt.Errorf("asr.ws.mode: unknown mode %q (want offline, online or 2pass)", c.ASR.WS.Mode)
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.DebounceMs < 0 {
		return errors.New("watch.debounce_ms must not be negative")
	}
	if c.Watch.PollIntervalMs < 0 {
		return errors.New("watch.poll_interval_ms must not be negative")
	}
	for _, ext := range c.Watch.AudioExtensions {
		if ext == "json" {
			return errors.New("watch.audio_extensions must not include json")
		}
	}
	return nil
}

func validateURL(what, raw string, schemes ...string) error {
	if raw == "" {
		return errors.New(what)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: %q must use %s", what, raw, strings.Join(schemes, " or "))
}
