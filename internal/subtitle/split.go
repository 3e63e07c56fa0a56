package subtitle

import (
	"regexp"
	"strings"
)

// Punctuation is the set of characters that terminate a phrase. The same set
// is stripped from the end of every rendered caption.
const Punctuation = "，。！？,.!?;；、"

var phrasePattern = regexp.MustCompile(`[^` + Punctuation + `]+[` + Punctuation + `]+`)

// IsPunct reports whether r belongs to Punctuation.
func IsPunct(r rune) bool {
	return strings.ContainsRune(Punctuation, r)
}

// SplitPhrases breaks transcript into punctuation-terminated phrases. Text
// that follows the last terminator (or text with no terminator at all) is
// kept, so the phrases always cover the whole transcript. An empty
// transcript has no phrases.
func SplitPhrases(transcript string) []string {
	if transcript == "" {
		return nil
	}
	phrases := phrasePattern.FindAllString(transcript, -1)
	if len(phrases) == 0 {
		return []string{transcript}
	}

	remaining := transcript
	for _, p := range phrases {
		remaining = strings.Replace(remaining, p, "", 1)
	}
	if rest := strings.TrimSpace(remaining); rest != "" {
		phrases = append(phrases, rest)
	}
	return phrases
}
