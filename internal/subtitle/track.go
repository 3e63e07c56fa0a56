package subtitle

import (
	"fmt"
	"strings"
	"time"
)

// Track is a complete, ordered subtitle track.
type Track struct {
	Captions []Caption
}

// Len returns the number of captions.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Captions)
}

// SRT renders the track in SubRip format. Every block, including the last,
// is followed by a blank line. An empty track renders as "".
func (t *Track) SRT() string {
	if t.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range t.Captions {
		fmt.Fprintf(&b, "%d\n", c.Index)
		fmt.Fprintf(&b, "%s --> %s\n", FormatSRTTimestamp(c.Start), FormatSRTTimestamp(c.End))
		fmt.Fprintf(&b, "%s\n\n", c.Text)
	}
	return b.String()
}

// VTT renders the track as WebVTT. The header is always present.
func (t *Track) VTT() string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	if t.Len() == 0 {
		return b.String()
	}
	for _, c := range t.Captions {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%s --> %s\n", FormatVTTTimestamp(c.Start), FormatVTTTimestamp(c.End))
		fmt.Fprintf(&b, "%s\n", c.Text)
	}
	return b.String()
}

// FormatSRTTimestamp formats d as HH:MM:SS,mmm.
func FormatSRTTimestamp(d time.Duration) string {
	h, m, s, ms := splitDuration(d)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// FormatVTTTimestamp formats d as HH:MM:SS.mmm.
func FormatVTTTimestamp(d time.Duration) string {
	h, m, s, ms := splitDuration(d)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitDuration(d time.Duration) (h, m, s, ms int64) {
	total := d.Milliseconds()
	ms = total % 1000
	total /= 1000
	h = total / 3600
	m = (total % 3600) / 60
	s = total % 60
	return h, m, s, ms
}
