package scoring

import (
	"strings"
	"unicode"
)

// hitScore is the keyword component contribution per hit, capped at 100.
const hitScore = 20

// DefaultTerms are the scam-indicating stems matched against snippet words.
var DefaultTerms = []string{
	"scam",
	"fraud",
	"spam",
	"report",
	"block",
	"scamwatch",
	"phishing",
	"fake",
	"harass",
}

// inflections are the endings a word may add to a term and still count.
// Agent nouns ("-er") only match with a doubled final consonant (scammer,
// spammer) so that "reporter" and "blocker" stay neutral.
var (
	inflections       = []string{"s", "es", "d", "ed", "ing", "ings", "ment", "ments", "ster", "sters"}
	doubledInflection = []string{"ed", "ing", "er", "ers"}
)

// CountHits counts words in snippets that are a term or an inflection of one
// ("reported", "scammers", "harassment"). Compounds such as "blockchain" do
// not count. Matching is case-insensitive; each word counts at most once.
func CountHits(snippets []string, terms []string) int {
	hits := 0
	for _, s := range snippets {
		words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			for _, term := range terms {
				if matchesTerm(w, term) {
					hits++
					break
				}
			}
		}
	}
	return hits
}

func matchesTerm(word, term string) bool {
	if term == "" {
		return false
	}
	rest, ok := strings.CutPrefix(word, term)
	if !ok {
		return false
	}
	if rest == "" {
		return true
	}
	for _, suffix := range inflections {
		if rest == suffix {
			return true
		}
	}
	last := term[len(term)-1:]
	if doubled, ok := strings.CutPrefix(rest, last); ok {
		for _, suffix := range doubledInflection {
			if doubled == suffix {
				return true
			}
		}
	}
	return false
}
