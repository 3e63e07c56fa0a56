package funasrhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tiroq/asrsub/internal/asr"
	"github.com/tiroq/asrsub/internal/diaglog"
)

// newTestClient creates a Client pointing at the given test server with fast
// retry settings suitable for tests.
func newTestClient(ts *httptest.Server) *Client {
	c := NewClient(Config{
		BaseURL:        ts.URL,
		TimeoutSeconds: 5,
		Retries:        3,
	})
	c.backoffBase = time.Millisecond
	return c
}

// createTempAudio creates a temporary file with dummy audio data for testing.
func createTempAudio(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "test-audio-*.wav")
	if err != nil {
		t.Fatalf("create temp audio: %v", err)
	}
	_, _ = f.WriteString("fake-audio-data")
	f.Close()
	return f.Name()
}

const validResponse = `{"result":[{"key":"test-audio","text":"你好，世界。","timestamp":[[0,300],[300,620],[700,900],[900,1240]]}]}`

func TestTranscribeFile_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/asr" {
			t.Errorf("expected /asr, got %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("expected multipart content-type, got %s", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("hotword"); got != "魔搭" {
			t.Errorf("expected hotword=魔搭, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("expected file field: %v", err)
		}
		defer file.Close()
		if !strings.HasSuffix(header.Filename, ".wav") {
			t.Errorf("expected .wav filename, got %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "fake-audio-data" {
			t.Errorf("unexpected upload body %q", data)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, validResponse)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	result, err := c.TranscribeFile(context.Background(), createTempAudio(t), asr.TranscribeOptions{Hotword: "魔搭"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Backend != Name {
		t.Errorf("expected backend %q, got %q", Name, result.Backend)
	}
	if result.Text != "你好，世界。" {
		t.Errorf("unexpected text %q", result.Text)
	}
	if len(result.Timestamp) != 4 || result.Timestamp[3] != [2]int64{900, 1240} {
		t.Errorf("unexpected timestamps %v", result.Timestamp)
	}
}

func TestTranscribeFile_RetryOn500(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"detail": "CUDA out of memory"}`)
			return
		}
		fmt.Fprint(w, validResponse)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if _, err := c.TranscribeFile(context.Background(), createTempAudio(t), asr.TranscribeOptions{}); err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", got)
	}
}

func TestTranscribeFile_RetriesExhausted(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.TranscribeFile(context.Background(), createTempAudio(t), asr.TranscribeOptions{})
	if err == nil || !strings.Contains(err.Error(), "retries exhausted") {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("expected 4 calls (1 + 3 retries), got %d", got)
	}
}

func TestTranscribeFile_Non5xxError_NoRetry(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail": "field required"}`)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.TranscribeFile(context.Background(), createTempAudio(t), asr.TranscribeOptions{})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("expected 422 error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 call (no retry on 422), got %d", got)
	}
}

func TestTranscribeFile_EmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"result": []}`)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).TranscribeFile(context.Background(), createTempAudio(t), asr.TranscribeOptions{})
	if err == nil || !strings.Contains(err.Error(), "no results") {
		t.Fatalf("expected no results error, got %v", err)
	}
}

func TestTranscribeFile_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, validResponse)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	c.client.Timeout = 50 * time.Millisecond

	if _, err := c.TranscribeFile(context.Background(), createTempAudio(t), asr.TranscribeOptions{}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestTranscribeFile_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	c.backoffBase = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.TranscribeFile(ctx, createTempAudio(t), asr.TranscribeOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTranscribeFile_BearerToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token-123" {
			t.Errorf("expected Bearer auth header, got %q", auth)
		}
		_, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, validResponse)
	}))
	defer ts.Close()

	c := NewClient(Config{BaseURL: ts.URL + "/", Token: "test-token-123", TimeoutSeconds: 5})
	if _, err := c.TranscribeFile(context.Background(), createTempAudio(t), asr.TranscribeOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTranscribeFile_FileNotFound(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost"})
	_, err := c.TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "nonexistent.wav"), asr.TranscribeOptions{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTranscribeFile_LogsToDiaglog(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, validResponse)
	}))
	defer ts.Close()

	logPath := filepath.Join(t.TempDir(), "diag.ndjson")
	l, err := diaglog.Open(logPath)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	c := newTestClient(ts)
	c.SetLogger(l)
	if _, err := c.TranscribeFile(context.Background(), createTempAudio(t), asr.TranscribeOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = l.Close()

	data, _ := os.ReadFile(logPath)
	for _, want := range []string{diaglog.EventTranscribeStart, diaglog.EventTranscribeDone, diaglog.ComponentFunASRHTTP} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log missing %q:\n%s", want, data)
		}
	}
}

func TestHealthCheck_Healthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/openapi.json" {
			t.Errorf("unexpected health request %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"openapi":"3.1.0","paths":{"/asr":{"post":{}}}}`)
	}))
	defer ts.Close()

	status, err := newTestClient(ts).HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.OK || status.Message != "healthy" {
		t.Errorf("expected healthy status, got %+v", status)
	}
	if status.Backend != Name {
		t.Errorf("expected backend %q, got %q", Name, status.Backend)
	}
	if status.Latency <= 0 {
		t.Error("expected positive latency")
	}
}

func TestHealthCheck_MissingRoute(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"openapi":"3.1.0","paths":{}}`)
	}))
	defer ts.Close()

	status, err := newTestClient(ts).HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.OK || !strings.Contains(status.Message, "not advertised") {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `internal error`)
	}))
	defer ts.Close()

	status, err := newTestClient(ts).HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.OK {
		t.Error("expected OK=false for 500 response")
	}
	if !strings.Contains(status.Message, "500") {
		t.Errorf("expected message to contain status code, got %q", status.Message)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost:12369/"})
	if c.cfg.TimeoutSeconds != 300 {
		t.Errorf("expected default timeout 300, got %d", c.cfg.TimeoutSeconds)
	}
	if c.cfg.Retries != 3 {
		t.Errorf("expected default retries 3, got %d", c.cfg.Retries)
	}
	if c.cfg.BaseURL != "http://localhost:12369" {
		t.Errorf("expected trailing slash trimmed, got %q", c.cfg.BaseURL)
	}
}

var _ asr.Backend = (*Client)(nil)
