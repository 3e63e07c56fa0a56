package autoupdate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0.3.0", "0.3.0"},
		{"0.3.0-dirty", "0.3.0"},
		{"0.3.0-2-g5ea24ba", "0.3.0"},
		{"0.3.0-2-g5ea24ba-dirty", "0.3.0"},
		{"0.2.0-rc1", "0.2.0-rc1"},
		{"1.0.0-beta.1", "1.0.0-beta.1"},
		{"0.1.0-dev", "0.1.0-dev"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := normalizeVersion(tt.input)
			if result != tt.expected {
				t.Errorf("normalizeVersion(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		version1 string
		version2 string
		expected bool
	}{
		{"0.3.0", "0.2.0", true},
		{"0.2.0", "0.3.0", false},
		{"1.0.0", "0.9.9", true},
		{"0.3.0", "0.3.0", false},
		{"0.3.1", "0.3.0", true},
		{"0.3.0-rc1", "0.2.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.version1+" vs "+tt.version2, func(t *testing.T) {
			result := isNewer(tt.version1, tt.version2)
			if result != tt.expected {
				t.Errorf("isNewer(%q, %q) = %v, want %v", tt.version1, tt.version2, result, tt.expected)
			}
		})
	}
}

func releaseServer(t *testing.T, latest string, list string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(latest))
	})
	mux.HandleFunc("/releases", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(list))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestIsUpdateAvailable(t *testing.T) {
	ts := releaseServer(t, `{"tag_name":"v0.4.0","html_url":"https://example.invalid/r/0.4.0"}`, `[]`)

	uc := NewUpdateChecker("tiroq", "asrsub", "0.3.0-2-g5ea24ba")
	uc.SetAPIURL(ts.URL)
	available, release, err := uc.IsUpdateAvailable(context.Background())
	if err != nil {
		t.Fatalf("IsUpdateAvailable: %v", err)
	}
	if !available || release.TagName != "v0.4.0" {
		t.Errorf("want v0.4.0 available, got %v %+v", available, release)
	}

	uc = NewUpdateChecker("tiroq", "asrsub", "v0.4.0")
	uc.SetAPIURL(ts.URL)
	available, _, err = uc.IsUpdateAvailable(context.Background())
	if err != nil || available {
		t.Errorf("same version should not be an update: %v %v", available, err)
	}
}

func TestDevBuildSkipsCheck(t *testing.T) {
	uc := NewUpdateChecker("tiroq", "asrsub", "dev")
	uc.SetAPIURL("http://127.0.0.1:1")
	available, release, err := uc.IsUpdateAvailable(context.Background())
	if err != nil || available || release != nil {
		t.Errorf("dev build: got %v %v %v", available, release, err)
	}
}

func TestPrereleaseChannel(t *testing.T) {
	ts := releaseServer(t, `{}`, `[
		{"tag_name":"v0.5.0-rc1","draft":true},
		{"tag_name":"v0.5.0-beta.1","prerelease":true},
		{"tag_name":"v0.4.0"}
	]`)

	uc := NewUpdateChecker("tiroq", "asrsub", "0.4.0")
	uc.SetAPIURL(ts.URL)
	uc.SetChannel(ChannelPrerelease)
	release, err := uc.GetLatestRelease(context.Background())
	if err != nil {
		t.Fatalf("GetLatestRelease: %v", err)
	}
	if release.TagName != "v0.5.0-beta.1" {
		t.Errorf("drafts must be skipped, got %s", release.TagName)
	}
}

func TestGetLatestReleaseHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	uc := NewUpdateChecker("tiroq", "asrsub", "0.1.0")
	uc.SetAPIURL(ts.URL)
	if _, err := uc.GetLatestRelease(context.Background()); err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("want status error, got %v", err)
	}
}
