package subtitle

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TokenTimestamp is the time span of one recognized token, in milliseconds.
type TokenTimestamp struct {
	Start int64
	End   int64
}

// TimedPhrase is a phrase with the time span inferred for it.
type TimedPhrase struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// MapTimestamps assigns each phrase a time span by its character position
// within transcript. The position ratio is projected onto the token sequence,
// so the result is an approximation: token count and character count rarely
// agree. Blank phrases produce no entry and do not consume any characters.
func MapTimestamps(transcript string, phrases []string, tokens []TokenTimestamp) ([]TimedPhrase, error) {
	totalChars := utf8.RuneCountInString(transcript)
	n := len(tokens)

	timed := make([]TimedPhrase, 0, len(phrases))
	charIndex := 0
	for _, phrase := range phrases {
		if strings.TrimSpace(phrase) == "" {
			continue
		}
		if n == 0 {
			return nil, stageErr(stageMap, fmt.Errorf("%w: no token timestamps for %d-character transcript", ErrTimestampMapping, totalChars))
		}
		if totalChars == 0 {
			return nil, stageErr(stageMap, fmt.Errorf("%w: empty transcript", ErrTimestampMapping))
		}

		phraseLen := utf8.RuneCountInString(phrase)
		startRatio := float64(charIndex) / float64(totalChars)
		endRatio := float64(charIndex+phraseLen) / float64(totalChars)

		startIdx := min(int(startRatio*float64(n)), n-1)
		endIdx := min(int(endRatio*float64(n)), n-1)

		// Widen zero-width spans by one token, except at the last token.
		if startIdx == endIdx && endIdx < n-1 {
			endIdx++
		}

		timed = append(timed, TimedPhrase{
			Text:  phrase,
			Start: millis(tokens[startIdx].Start),
			End:   millis(tokens[endIdx].End),
		})
		charIndex += phraseLen
	}
	return timed, nil
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
