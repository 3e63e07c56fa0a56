// Package funasrws is an asr.Backend for the FunASR runtime websocket
// server. One connection is used per file: a JSON start frame, the audio as
// binary frames, a JSON end frame, then a single result frame.
package funasrws

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tiroq/asrsub/internal/asr"
	"github.com/tiroq/asrsub/internal/diaglog"
	"github.com/tiroq/asrsub/internal/fileutil"
)

// Name is the backend identifier used in config and the registry.
const Name = "funasr_ws"

// Config configures the websocket client.
type Config struct {
	URL                string // ws:// or wss://, e.g. ws://localhost:10095
	TimeoutSeconds     int    // dial + result wait, default 300
	ChunkBytes         int    // binary frame size, default 64 KiB
	HotwordWeight      int    // weight sent for every hotword, default 20
	InsecureSkipVerify bool   // runtime images ship self-signed certificates
}

// Client is an asr.Backend speaking the FunASR runtime protocol.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// startMessage is the first frame of a session.
type startMessage struct {
	Mode          string `json:"mode"`
	ChunkSize     []int  `json:"chunk_size"`
	ChunkInterval int    `json:"chunk_interval"`
	WavName       string `json:"wav_name"`
	WavFormat     string `json:"wav_format"`
	IsSpeaking    bool   `json:"is_speaking"`
	Hotwords      string `json:"hotwords"`
	ITN           bool   `json:"itn"`
}

// endMessage tells the server the audio is complete.
type endMessage struct {
	IsSpeaking bool `json:"is_speaking"`
}

// resultMessage is the server's answer.
type resultMessage struct {
	Mode      string         `json:"mode"`
	WavName   string         `json:"wav_name"`
	Text      string         `json:"text"`
	Timestamp asr.Timestamps `json:"timestamp"`
	IsFinal   bool           `json:"is_final"`
}

// NewClient creates a websocket client. Nothing is dialed until a request.
func NewClient(cfg Config) *Client {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = 64 * 1024
	}
	if cfg.HotwordWeight <= 0 {
		cfg.HotwordWeight = 20
	}
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if cfg.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &Client{cfg: cfg, dialer: dialer}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (c *Client) SetLogger(l *diaglog.Logger) {
	c.loggerMu.Lock()
	c.logger = l
	c.loggerMu.Unlock()
}

func (c *Client) log(entry diaglog.LogEntry) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentFunASRWS
	}
	l.Log(entry)
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return Name
}

// TranscribeFile streams filePath to the runtime and waits for the result.
func (c *Client) TranscribeFile(ctx context.Context, filePath string, opts asr.TranscribeOptions) (*asr.Result, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	timeout := time.Duration(c.cfg.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.cfg.URL, err)
	}
	c.log(diaglog.LogEntry{Event: diaglog.EventWSConnect, Payload: map[string]interface{}{"url": c.cfg.URL}})

	// Closing the connection is the only way to interrupt a blocked read.
	stop := make(chan struct{})
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		closeConn()
		c.log(diaglog.LogEntry{Event: diaglog.EventWSDisconnect})
	}()

	name := wavName(filePath)
	res, err := c.session(conn, f, name, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transcribe %s: %w", filepath.Base(filePath), ctx.Err())
		}
		c.log(diaglog.LogEntry{Event: diaglog.EventTranscribeFailed, Error: err.Error()})
		return nil, fmt.Errorf("transcribe %s: %w", filepath.Base(filePath), err)
	}
	c.log(diaglog.LogEntry{
		Event:   diaglog.EventTranscribeDone,
		Payload: map[string]interface{}{"wav_name": name, "tokens": len(res.Timestamp)},
	})
	return res, nil
}

func (c *Client) session(conn *websocket.Conn, audio io.Reader, name string, opts asr.TranscribeOptions) (*asr.Result, error) {
	mode := opts.Mode
	if mode == "" {
		mode = "offline"
	}
	start := startMessage{
		Mode:          mode,
		ChunkSize:     []int{5, 10, 5},
		ChunkInterval: 10,
		WavName:       name,
		WavFormat:     wavFormat(name),
		IsSpeaking:    true,
		Hotwords:      c.hotwords(opts.Hotword),
		ITN:           opts.ITN,
	}
	if err := conn.WriteJSON(start); err != nil {
		return nil, fmt.Errorf("send start frame: %w", err)
	}
	c.log(diaglog.LogEntry{Event: diaglog.EventWSSend, Payload: map[string]interface{}{"frame": "start", "mode": mode}})

	buf := make([]byte, c.cfg.ChunkBytes)
	var sent int64
	for {
		n, rerr := audio.Read(buf)
		if n > 0 {
			if err := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); err != nil {
				return nil, fmt.Errorf("send audio: %w", err)
			}
			sent += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("read audio: %w", rerr)
		}
	}

	if err := conn.WriteJSON(endMessage{IsSpeaking: false}); err != nil {
		return nil, fmt.Errorf("send end frame: %w", err)
	}
	c.log(diaglog.LogEntry{Event: diaglog.EventWSSend, Payload: map[string]interface{}{"frame": "end", "bytes": sent}})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read result: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var msg resultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		c.log(diaglog.LogEntry{Event: diaglog.EventWSRecv, Payload: map[string]interface{}{"mode": msg.Mode, "is_final": msg.IsFinal}})

		// Offline answers arrive once, and older runtimes leave is_final false.
		if msg.IsFinal || msg.Mode == "offline" || msg.Mode == "2pass-offline" {
			return &asr.Result{
				Key:       strings.TrimSuffix(msg.WavName, filepath.Ext(msg.WavName)),
				Text:      msg.Text,
				Timestamp: msg.Timestamp,
				Backend:   c.Name(),
			}, nil
		}
	}
}

// hotwords encodes space separated words as the runtime's {"word": weight} map.
func (c *Client) hotwords(list string) string {
	words := strings.Fields(list)
	if len(words) == 0 {
		return ""
	}
	m := make(map[string]int, len(words))
	for _, w := range words {
		m[w] = c.cfg.HotwordWeight
	}
	data, _ := json.Marshal(m)
	return string(data)
}

// HealthCheck dials the runtime and closes the connection.
func (c *Client) HealthCheck(ctx context.Context) (*asr.HealthStatus, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	latency := time.Since(start)
	if err != nil {
		return &asr.HealthStatus{
			OK:      false,
			Backend: c.Name(),
			Message: fmt.Sprintf("health check failed: %v", err),
			Latency: latency,
		}, nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	return &asr.HealthStatus{OK: true, Backend: c.Name(), Message: "healthy", Latency: latency}, nil
}

func wavName(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	return fileutil.SanitizeForFilename(base) + strings.ToLower(ext)
}

func wavFormat(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "pcm"
	}
	return ext
}
