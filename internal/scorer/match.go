package scorer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/sells-group/geo-audit/internal/domains"
	"github.com/sells-group/geo-audit/internal/model"
)

// DefaultGenericWords are brand-name words too common to identify a brand
// on their own.
var DefaultGenericWords = []string{"apartments", "apartment", "properties", "property", "living", "homes"}

// minLooseWordLen is the shortest first word usable for loose matching.
const minLooseWordLen = 4

// brandMatcher decides whether an entity names a given brand. Tiers are
// tried in order: brand domain, full name substring, then the first
// significant word of the name.
type brandMatcher struct {
	name      string
	domains   []string
	looseWord string
}

func newBrandMatcher(name string, brandDomains, genericWords []string) brandMatcher {
	if genericWords == nil {
		genericWords = DefaultGenericWords
	}
	folded := fold(strings.TrimSpace(name))
	return brandMatcher{
		name:      folded,
		domains:   domains.NormalizeAll(brandDomains),
		looseWord: looseWord(folded, genericWords),
	}
}

// looseWord returns the first word of at least minLooseWordLen runes, or ""
// when there is none or it is generic.
func looseWord(folded string, genericWords []string) string {
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if utf8.RuneCountInString(w) < minLooseWordLen {
			continue
		}
		for _, g := range genericWords {
			if w == fold(g) {
				return ""
			}
		}
		return w
	}
	return ""
}

func (m brandMatcher) matchesEntity(e model.AnswerEntity) bool {
	if domains.IsBrandDomain(e.Domain, m.domains) {
		return true
	}
	return m.matchesText(e.Name) || (m.looseWord != "" && strings.Contains(fold(e.Name), m.looseWord))
}

// matchesText reports whether s contains the full brand name.
func (m brandMatcher) matchesText(s string) bool {
	return m.name != "" && strings.Contains(fold(s), m.name)
}

// fold returns the Unicode case-folded form of s. A Caser is stateful, so
// one is built per call to keep matching safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(s)
}
