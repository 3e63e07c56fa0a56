// Package subtitle turns an ASR transcript and its token timestamps into a
// length-bounded, time-aligned subtitle track.
//
// The pipeline has three stages, each usable on its own:
//
//	phrases := SplitPhrases(text)
//	timed, err := MapTimestamps(text, phrases, tokens)
//	captions, err := Merge(timed, maxChars)
//
// Generate runs all three. Every function is pure and safe for concurrent use.
package subtitle

// Generate builds the subtitle track for transcript. It returns either a
// complete track or an error, never a partial track. A blank transcript
// yields an empty track regardless of tokens.
func Generate(transcript string, tokens []TokenTimestamp, maxChars int) (*Track, error) {
	phrases := SplitPhrases(transcript)
	timed, err := MapTimestamps(transcript, phrases, tokens)
	if err != nil {
		return nil, err
	}
	captions, err := Merge(timed, maxChars)
	if err != nil {
		return nil, err
	}
	return &Track{Captions: captions}, nil
}

// GenerateSRT is Generate followed by Track.SRT.
func GenerateSRT(transcript string, tokens []TokenTimestamp, maxChars int) (string, error) {
	track, err := Generate(transcript, tokens, maxChars)
	if err != nil {
		return "", err
	}
	return track.SRT(), nil
}
