// Package autoupdate checks GitHub releases for a newer asrsub build.
package autoupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ReleaseChannel defines which releases to check for
type ReleaseChannel string

const (
	ChannelStable     ReleaseChannel = "stable"     // Only stable releases
	ChannelPrerelease ReleaseChannel = "prerelease" // Stable + pre-releases (beta, rc)
)

// Release represents a GitHub release
type Release struct {
	TagName    string    `json:"tag_name"`
	Name       string    `json:"name"`
	HTMLURL    string    `json:"html_url"`
	Published  time.Time `json:"published_at"`
	Prerelease bool      `json:"prerelease"`
	Draft      bool      `json:"draft"`
}

// UpdateChecker compares the running version against published releases.
type UpdateChecker struct {
	currentVersion string
	apiURL         string
	channel        ReleaseChannel
	client         *http.Client
}

// NewUpdateChecker creates a checker for github.com/<owner>/<repo>.
func NewUpdateChecker(owner, repo, currentVersion string) *UpdateChecker {
	return &UpdateChecker{
		currentVersion: currentVersion,
		apiURL:         fmt.Sprintf("https://api.github.com/repos/%s/%s", owner, repo),
		channel:        ChannelStable,
		client:         &http.Client{Timeout: 15 * time.Second},
	}
}

// SetChannel sets the release channel for this checker
func (uc *UpdateChecker) SetChannel(channel ReleaseChannel) {
	uc.channel = channel
}

// SetAPIURL points the checker at another releases API root.
func (uc *UpdateChecker) SetAPIURL(url string) {
	uc.apiURL = strings.TrimRight(url, "/")
}

// GetLatestRelease fetches the latest release matching the current channel.
func (uc *UpdateChecker) GetLatestRelease(ctx context.Context) (*Release, error) {
	if uc.channel == ChannelStable {
		var release Release
		if err := uc.get(ctx, uc.apiURL+"/releases/latest", &release); err != nil {
			return nil, err
		}
		return &release, nil
	}

	var releases []Release
	if err := uc.get(ctx, uc.apiURL+"/releases?per_page=30", &releases); err != nil {
		return nil, err
	}
	for i := range releases {
		if uc.matchesChannel(&releases[i]) {
			return &releases[i], nil
		}
	}
	return nil, fmt.Errorf("no releases found matching channel %s", uc.channel)
}

func (uc *UpdateChecker) get(ctx context.Context, url string, into interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := uc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github API returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to parse release: %w", err)
	}
	return nil
}

// matchesChannel checks if a release matches the current channel setting
func (uc *UpdateChecker) matchesChannel(release *Release) bool {
	if release.Draft {
		return false
	}
	switch uc.channel {
	case ChannelStable:
		return !release.Prerelease
	case ChannelPrerelease:
		return true
	default:
		return false
	}
}

// IsUpdateAvailable checks if a newer version is available. Development
// builds never report an update.
func (uc *UpdateChecker) IsUpdateAvailable(ctx context.Context) (bool, *Release, error) {
	current := normalizeVersion(strings.TrimPrefix(uc.currentVersion, "v"))
	if current == "" || current == "dev" {
		return false, nil, nil
	}

	release, err := uc.GetLatestRelease(ctx)
	if err != nil {
		return false, nil, err
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	if isNewer(latest, current) {
		return true, release, nil
	}
	return false, release, nil
}

// gitDescribe matches the "-N-gSHA" and "-dirty" suffixes git describe adds.
var gitDescribe = regexp.MustCompile(`(-\d+-g[0-9a-f]+)?(-dirty)?$`)

// normalizeVersion strips git describe suffixes, keeping pre-release tags.
func normalizeVersion(v string) string {
	return gitDescribe.ReplaceAllString(v, "")
}

// isNewer checks if version1 > version2 (simple comparison)
func isNewer(version1, version2 string) bool {
	parts1 := strings.Split(version1, ".")
	parts2 := strings.Split(version2, ".")

	for i := 0; i < len(parts1) && i < len(parts2); i++ {
		var v1, v2 int
		if _, err := fmt.Sscanf(parts1[i], "%d", &v1); err != nil {
			v1 = 0
		}
		if _, err := fmt.Sscanf(parts2[i], "%d", &v2); err != nil {
			v2 = 0
		}

		if v1 > v2 {
			return true
		}
		if v1 < v2 {
			return false
		}
	}

	return len(parts1) > len(parts2)
}
