package phonetic

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/vividvilla/metaphone"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var customReplacer = strings.NewReplacer(
	"Ł", "L",
	"ł", "l",
	"ñ", "n",
	"Ñ", "N",
)

func normalizeString(s string) (string, error) {
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		return "", err
	}

	normalized = customReplacer.Replace(normalized)

	var result strings.Builder
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			result.WriteRune(r)
		}
	}

	return result.String(), nil
}

// GenerateKeys normalizes a string and derives its Double Metaphone codes.
// For multi-word input it runs the whole normalized phrase through
// DoubleMetaphone as one token; use GenerateKeysForPhrase when each word
// needs its own code.
func GenerateKeys(input string) (primary string, secondary string, err error) {
	cleanInput, err := normalizeString(input)
	if err != nil {
		return "", "", fmt.Errorf("phonetic: normalizing input: %w", err)
	}

	if cleanInput == "" {
		return "", "", nil
	}

	primary, secondary = metaphone.DoubleMetaphone(cleanInput)

	// Truncated to fit the original VARCHAR(12) key column this scheme was sized for.
	const maxLen = 12
	if len(primary) > maxLen {
		primary = primary[:maxLen]
	}
	if len(secondary) > maxLen {
		secondary = secondary[:maxLen]
	}

	return primary, secondary, nil
}

// GenerateKeysForPhrase generates phonetic keys for longer phrases by
// concatenating the code for each word individually.
func GenerateKeysForPhrase(input string) (primary string, secondary string, err error) {
	words := strings.Fields(input)
	if len(words) == 0 {
		return "", "", nil
	}

	var primaryKeys, secondaryKeys []string
	for _, rawWord := range words {
		word, err := normalizeString(rawWord)
		if err != nil {
			return "", "", fmt.Errorf("phonetic: normalizing input: %w", err)
		}
		if word == "" {
			continue
		}
		p, s := metaphone.DoubleMetaphone(word)
		if p != "" {
			primaryKeys = append(primaryKeys, p)
		}
		if s != "" {
			secondaryKeys = append(secondaryKeys, s)
		}
	}

	primary = strings.Join(primaryKeys, "")
	secondary = strings.Join(secondaryKeys, "")

	// Truncated to fit the original VARCHAR(24) key column this scheme was sized for.
	const maxLen = 24
	if len(primary) > maxLen {
		primary = primary[:maxLen]
	}
	if len(secondary) > maxLen {
		secondary = secondary[:maxLen]
	}

	return primary, secondary, nil
}
