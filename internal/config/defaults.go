package config

const (
	defaultConfigPath      = "~/.config/asrsub/config.toml"
	defaultMaxCharsPerLine = 20
	defaultHTTPURL         = "http://127.0.0.1:12369"
	defaultWSURL           = "ws://127.0.0.1:10095"
	defaultTimeoutSeconds  = 300
	defaultHTTPRetries     = 3
	defaultWSChunkBytes    = 64 * 1024
	defaultWSMode          = "offline"
	defaultDebounceMs      = 500
	defaultPollIntervalMs  = 2000
)

// Backend names accepted in [asr] backend and fallback.
const (
	BackendNone = ""
	BackendHTTP = "funasr_http"
	BackendWS   = "funasr_ws"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Subtitle: Subtitle{
			MaxCharsPerLine: defaultMaxCharsPerLine,
			Formats:         []string{"srt"},
		},
		ASR: ASR{
			HTTP: HTTPBackend{
				URL:            defaultHTTPURL,
				TimeoutSeconds: defaultTimeoutSeconds,
				Retries:        defaultHTTPRetries,
			},
			WS: WSBackend{
				URL:            defaultWSURL,
				TimeoutSeconds: defaultTimeoutSeconds,
				ChunkBytes:     defaultWSChunkBytes,
				Mode:           defaultWSMode,
				ITN:            true,
			},
		},
		Watch: Watch{
			AudioExtensions: []string{"wav", "mp3", "m4a", "flac"},
			DebounceMs:      defaultDebounceMs,
			PollIntervalMs:  defaultPollIntervalMs,
		},
	}
}
