package parser

import "testing"

func TestTriggerAutoParseAlwaysFires(t *testing.T) {
	tr := NewTrigger(true, nil)
	if !tr.ShouldTrigger("anything at all") {
		t.Fatalf("expected auto-parse to always trigger")
	}
}

func TestTriggerNoKeywordsNeverFires(t *testing.T) {
	tr := NewTrigger(false, nil)
	if tr.ShouldTrigger("download this video please") {
		t.Fatalf("expected no trigger with empty keyword list")
	}
}

func TestTriggerExactKeywordMatch(t *testing.T) {
	tr := NewTrigger(false, []string{"download"})
	if !tr.ShouldTrigger("please download this") {
		t.Fatalf("expected exact keyword to trigger")
	}
}

func TestTriggerFuzzyMisspellingMatch(t *testing.T) {
	tr := NewTrigger(false, []string{"download"})
	if !tr.ShouldTrigger("can you donwload this clip") {
		t.Fatalf("expected phonetic fuzzy match to trigger on misspelling")
	}
}

func TestTriggerUnrelatedTextDoesNotFire(t *testing.T) {
	tr := NewTrigger(false, []string{"download"})
	if tr.ShouldTrigger("what's the weather like today") {
		t.Fatalf("expected unrelated text not to trigger")
	}
}
