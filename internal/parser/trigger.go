package parser

import (
	"strings"

	"github.com/vontrex/mediaingest/pkg/phonetic"
)

// Trigger decides whether incoming text should even be handed to a Manager,
// implementing trigger_settings.is_auto_parse/trigger_keywords (§F of
// SPEC_FULL): when auto-parse is on, everything triggers; otherwise text
// must fuzzy-match one of the configured keywords. Fuzzy matching uses
// Double Metaphone so a misspelled keyword ("donwload") still triggers.
type Trigger struct {
	autoParse bool
	keys      []keywordKey
}

type keywordKey struct {
	word            string
	primary, secondary string
}

// NewTrigger precomputes phonetic keys for each configured keyword so
// ShouldTrigger doesn't re-derive them per call.
func NewTrigger(autoParse bool, keywords []string) *Trigger {
	t := &Trigger{autoParse: autoParse}
	for _, kw := range keywords {
		p, s, err := phonetic.GenerateKeys(kw)
		if err != nil || p == "" {
			continue
		}
		t.keys = append(t.keys, keywordKey{word: strings.ToLower(kw), primary: p, secondary: s})
	}
	return t
}

// ShouldTrigger reports whether text should be sent to the parser manager.
func (t *Trigger) ShouldTrigger(text string) bool {
	if t.autoParse {
		return true
	}
	if len(t.keys) == 0 {
		return false
	}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		p, s, err := phonetic.GenerateKeys(word)
		if err != nil || p == "" {
			continue
		}
		for _, k := range t.keys {
			if strings.Contains(word, k.word) {
				return true
			}
			if p == k.primary || (k.secondary != "" && s == k.secondary) {
				return true
			}
		}
	}
	return false
}
