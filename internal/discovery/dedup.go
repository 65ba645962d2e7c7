package discovery

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/idea-scout/internal/model"
)

// fillerWords are generic product nouns stripped when deriving a keyword.
var fillerWords = []string{"플랫폼", "서비스", "솔루션", "시스템", "앱", "프로그램", "툴"}

// minKeywordRunes is the shortest keyword kept after stripping fillers.
const minKeywordRunes = 3

// Keyword derives the trend keyword of a candidate name by stripping filler
// words. It falls back to the full name when fewer than three runes remain.
func Keyword(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	kw := name
	for _, w := range fillerWords {
		kw = strings.ReplaceAll(kw, w, "")
	}
	kw = strings.Join(strings.Fields(kw), " ")
	if utf8.RuneCountInString(kw) < minKeywordRunes {
		return name
	}
	return kw
}

type variant struct {
	Name   string
	Suffix string
	Note   string
}

var variants = []variant{
	{Name: "B2B", Suffix: " (B2B)", Note: " Targets business customers."},
	{Name: "Premium", Suffix: " (Premium)", Note: " Positioned as a premium offering."},
	{Name: "Global", Suffix: " (Global)", Note: " Aimed at the global market."},
	{Name: "Niche", Suffix: " (Niche)", Note: " Focused on a niche segment."},
	{Name: "Subscription", Suffix: " (Subscription)", Note: " Sold as a subscription."},
}

// nameSet tracks names already taken, from history or earlier in the run.
type nameSet map[string]struct{}

func (s nameSet) has(name string) bool {
	_, ok := s[normalizeName(name)]
	return ok
}

func (s nameSet) add(name string) {
	s[normalizeName(name)] = struct{}{}
}

func normalizeName(name string) string {
	return strings.TrimSpace(norm.NFC.String(name))
}

// claimName returns c unchanged when its name is free, otherwise the first
// free variant of it. ok is false when the name and every variant are taken.
// The claimed name is added to seen.
func claimName(c model.Candidate, seen nameSet) (model.Candidate, bool) {
	if !seen.has(c.Name) {
		seen.add(c.Name)
		return c, true
	}
	for _, v := range variants {
		name := c.Name + v.Suffix
		if seen.has(name) {
			continue
		}
		c.Name = name
		c.Description += v.Note
		c.Variant = v.Name
		seen.add(name)
		return c, true
	}
	return c, false
}
