// Package speech wraps the optional speech engines: wake-word gated
// recognition and one-at-a-time synthesis. Both halves are feature-detected
// and the application degrades to text-only when an engine is missing.
package speech

import "strings"

// DefaultWakeWord is used when the profile does not configure one.
const DefaultWakeWord = "asistente"

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// wordToken strips non-letter/digit runes from a token's edges so that
// "¿asistente," still matches the wake word "asistente".
func wordToken(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r == '\'' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		r > 127 // accented letters come through recognition engines verbatim
}

func matchAt(tokens, wake []string, i int) bool {
	if i+len(wake) > len(tokens) {
		return false
	}
	for j, w := range wake {
		if wordToken(tokens[i+j]) != w {
			return false
		}
	}
	return true
}

// DetectWakeWord reports whether the normalized transcript contains the
// normalized wake word on word boundaries. A wake word of several words
// ("asistente umg") must appear as a consecutive run.
func DetectWakeWord(transcript, wakeWord string) bool {
	wake := strings.Fields(normalize(wakeWord))
	if len(wake) == 0 {
		return false
	}
	tokens := strings.Fields(normalize(transcript))
	for i := range tokens {
		if matchAt(tokens, wake, i) {
			return true
		}
	}
	return false
}

// RemoveWakeWord strips every word-boundary occurrence of the wake word from
// the transcript and returns the normalized remainder. An empty remainder
// means the user only said the wake word and there is nothing to forward.
func RemoveWakeWord(transcript, wakeWord string) string {
	wake := strings.Fields(normalize(wakeWord))
	tokens := strings.Fields(normalize(transcript))
	if len(wake) == 0 {
		return strings.Join(tokens, " ")
	}

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if matchAt(tokens, wake, i) {
			i += len(wake)
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return strings.Join(out, " ")
}

// ExtractQuery applies the wake-word gate to a raw transcript: it returns
// the stripped query and true only when the wake word was present and a
// non-empty remainder survives.
func ExtractQuery(transcript, wakeWord string) (string, bool) {
	if !DetectWakeWord(transcript, wakeWord) {
		return "", false
	}
	query := RemoveWakeWord(transcript, wakeWord)
	if query == "" {
		return "", false
	}
	return query, true
}
