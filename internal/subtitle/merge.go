package subtitle

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxChars is the line length bound used when none is configured.
const DefaultMaxChars = 20

// Caption is one numbered subtitle cue.
type Caption struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Merge greedily joins consecutive phrases into captions of at most maxChars
// characters. A phrase that is longer than maxChars on its own is never cut;
// it becomes a caption by itself. maxChars <= 0 selects DefaultMaxChars.
func Merge(timed []TimedPhrase, maxChars int) ([]Caption, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var (
		captions []Caption
		cur      TimedPhrase
		open     bool
	)
	flush := func() {
		captions = append(captions, Caption{
			Index: len(captions) + 1,
			Start: cur.Start,
			End:   cur.End,
			Text:  cleanText(cur.Text),
		})
	}

	for i, p := range timed {
		if p.Start < 0 || p.End < p.Start {
			return nil, stageErr(stageMerge, fmt.Errorf("%w: phrase %d spans %v..%v", ErrMergeRender, i, p.Start, p.End))
		}
		if !open {
			cur, open = p, true
			continue
		}
		combined := cur.Text + p.Text
		if utf8.RuneCountInString(combined) > maxChars {
			flush()
			cur = p
			continue
		}
		cur.Text = combined
		cur.End = p.End
	}
	if open && cur.Text != "" {
		flush()
	}
	return captions, nil
}

// cleanText strips trailing punctuation, then surrounding whitespace.
func cleanText(s string) string {
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimRightFunc(s, IsPunct)
	return strings.TrimSpace(s)
}
