package classify

import (
	"strings"
	"unicode"
)

// minLanguageSample is the shortest text the heuristic will judge.
const minLanguageSample = 10

// Scripts that mark text as non-English outright.
var nonLatinScripts = []*unicode.RangeTable{
	unicode.Arabic,
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Cyrillic,
	unicode.Hebrew,
}

// IsEnglish reports whether text looks like English. A non-empty lang
// attribute from the page decides on its own. Otherwise text shorter than
// ten characters is rejected, any Arabic, CJK, Kana, Cyrillic or Hebrew
// character rejects, and the remaining text must have at least threshold
// of its letters, digits and spaces in ASCII.
func IsEnglish(text, lang string, threshold float64) bool {
	if lang = strings.TrimSpace(strings.ToLower(lang)); lang != "" {
		return strings.HasPrefix(lang, "en")
	}

	text = strings.TrimSpace(text)
	if len([]rune(text)) < minLanguageSample {
		return false
	}

	var ascii, counted int
	for _, r := range text {
		if unicode.In(r, nonLatinScripts...) {
			return false
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			counted++
			if r <= unicode.MaxASCII {
				ascii++
			}
		}
	}
	if counted == 0 {
		return false
	}
	return float64(ascii)/float64(counted) >= threshold
}
