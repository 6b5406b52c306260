package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// tokenize lowercases and NFC-normalizes s, then splits it into words.
// Anything that is not a letter or digit separates words, so
// "côte d'ivoire" and "Côte-d'Ivoire" tokenize the same way.
func tokenize(s string) []string {
	s = strings.ToLower(norm.NFC.String(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// table is a compiled keyword list. Single words are looked up in a set;
// multi-word phrases are scanned for as token runs.
type table struct {
	words   map[string]string
	phrases [][]string
	raw     []string
}

func compile(keywords []string) *table {
	t := &table{words: make(map[string]string)}
	for _, kw := range keywords {
		toks := tokenize(kw)
		switch len(toks) {
		case 0:
			continue
		case 1:
			t.words[toks[0]] = kw
		default:
			t.phrases = append(t.phrases, toks)
		}
		t.raw = append(t.raw, kw)
	}
	return t
}

// match returns the keywords found in tokens. Positions flagged in skip
// are ignored.
func (t *table) match(tokens []string, skip []bool) []string {
	var found []string
	seen := make(map[string]bool)
	add := func(kw string) {
		if !seen[kw] {
			seen[kw] = true
			found = append(found, kw)
		}
	}

	for i, tok := range tokens {
		if skip != nil && skip[i] {
			continue
		}
		for _, form := range baseForms(tok) {
			if kw, ok := t.words[form]; ok {
				add(kw)
				break
			}
		}
	}

	for _, phrase := range t.phrases {
		if start := findPhrase(tokens, phrase, skip); start >= 0 {
			add(strings.Join(phrase, " "))
		}
	}
	return found
}

// spans marks every token covered by one of the table's phrases or words.
func (t *table) spans(tokens []string) []bool {
	covered := make([]bool, len(tokens))
	for i, tok := range tokens {
		for _, form := range baseForms(tok) {
			if _, ok := t.words[form]; ok {
				covered[i] = true
				break
			}
		}
	}
	for _, phrase := range t.phrases {
		for i := 0; i+len(phrase) <= len(tokens); i++ {
			if phraseAt(tokens, phrase, i, nil) {
				for j := i; j < i+len(phrase); j++ {
					covered[j] = true
				}
			}
		}
	}
	return covered
}

func findPhrase(tokens, phrase []string, skip []bool) int {
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		if phraseAt(tokens, phrase, i, skip) {
			return i
		}
	}
	return -1
}

func phraseAt(tokens, phrase []string, at int, skip []bool) bool {
	last := len(phrase) - 1
	for j, want := range phrase {
		idx := at + j
		if skip != nil && skip[idx] {
			return false
		}
		if j == last {
			if !formMatches(tokens[idx], want) {
				return false
			}
		} else if tokens[idx] != want {
			return false
		}
	}
	return true
}

func formMatches(tok, want string) bool {
	for _, form := range baseForms(tok) {
		if form == want {
			return true
		}
	}
	return false
}

// baseForms returns tok and its singular candidates so that "schools",
// "classes" and "universities" match their singular keywords.
func baseForms(tok string) []string {
	forms := []string{tok}
	if len(tok) < 4 {
		return forms
	}
	if strings.HasSuffix(tok, "ies") {
		forms = append(forms, tok[:len(tok)-3]+"y")
	}
	if hasSibilantPlural(tok) {
		forms = append(forms, tok[:len(tok)-2])
	}
	if strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		forms = append(forms, tok[:len(tok)-1])
	}
	return forms
}

// hasSibilantPlural reports whether tok ends in "es" after s, x, z, ch or
// sh, the only endings where "es" is the plural suffix.
func hasSibilantPlural(tok string) bool {
	stem, ok := strings.CutSuffix(tok, "es")
	if !ok {
		return false
	}
	for _, end := range []string{"s", "x", "z", "ch", "sh"} {
		if strings.HasSuffix(stem, end) {
			return true
		}
	}
	return false
}
