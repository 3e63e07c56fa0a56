package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockFunASR simulates the FunASR HTTP service: POST /asr answers with a
// fixed body and GET /openapi.json advertises the route.
type MockFunASR struct {
	*httptest.Server

	mu       sync.Mutex
	body     string
	status   int
	requests int
	files    []string
}

// NewMockFunASR starts a server replying to /asr with body
func NewMockFunASR(t *testing.T, body string) *MockFunASR {
	t.Helper()
	m := &MockFunASR{body: body, status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/asr", m.handleASR)
	mux.HandleFunc("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"paths":{"/asr":{"post":{}}}}`)
	})
	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Close)
	return m
}

func (m *MockFunASR) handleASR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"detail":"No file was uploaded"}`, http.StatusUnprocessableEntity)
		return
	}
	_, _ = io.Copy(io.Discard, file)
	file.Close()

	m.mu.Lock()
	m.requests++
	m.files = append(m.files, header.Filename)
	status, body := m.status, m.body
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// SetResponse changes the status and body for later requests
func (m *MockFunASR) SetResponse(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.body = body
}

// Requests returns how many uploads were received
func (m *MockFunASR) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Files returns the uploaded file names in order
func (m *MockFunASR) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.files...)
}
