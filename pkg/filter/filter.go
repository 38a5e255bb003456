// Package filter implements the keyword filter. Matching is case-insensitive
// substring containment over an item's title and excerpt, deterministic and
// free of side effects.
package filter

import (
	"strings"

	"github.com/umputun/newswatch/pkg/domain"
)

// Filter holds the configured keyword lists, lowered once at construction.
// The zero value matches nothing, at least one primary keyword is required.
type Filter struct {
	primary   []keyword
	secondary []keyword
	exclusion []keyword
	region    []keyword
}

// keyword keeps the configured spelling for reporting next to the lowered
// form used for matching
type keyword struct {
	orig    string
	lowered string
}

// Lists holds the keyword lists for a filter
type Lists struct {
	Primary   []string
	Secondary []string
	Exclusion []string
	Region    []string
}

// New creates a filter from the given lists, preserving list order
func New(lists Lists) *Filter {
	return &Filter{
		primary:   lower(lists.Primary),
		secondary: lower(lists.Secondary),
		exclusion: lower(lists.Exclusion),
		region:    lower(lists.Region),
	}
}

func lower(words []string) []keyword {
	res := make([]keyword, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		res = append(res, keyword{orig: w, lowered: strings.ToLower(w)})
	}
	return res
}

// Match checks a single item against the lists and returns one match per
// hit primary keyword, in keyword list order. No primary hit, an exclusion
// hit or a failed region gate all yield an empty result. When requireRegion
// is set, items without a region keyword are rejected.
func (f *Filter) Match(item domain.Item, requireRegion bool) []domain.Match {
	text := strings.ToLower(item.Title + " " + item.Excerpt)
	if text == " " {
		return nil
	}

	for _, kw := range f.exclusion {
		if strings.Contains(text, kw.lowered) {
			return nil
		}
	}

	regions := hits(text, f.region)
	if requireRegion && len(regions) == 0 {
		return nil
	}

	primaries := hits(text, f.primary)
	if len(primaries) == 0 {
		return nil
	}

	secondary := hits(text, f.secondary)

	matches := make([]domain.Match, 0, len(primaries))
	for _, kw := range primaries {
		matches = append(matches, domain.Match{
			Item:      item,
			Keyword:   kw,
			Secondary: secondary,
			Regions:   regions,
		})
	}
	return matches
}

// hits returns the original spellings of keywords contained in text
func hits(text string, kws []keyword) []string {
	var found []string
	for _, kw := range kws {
		if strings.Contains(text, kw.lowered) {
			found = append(found, kw.orig)
		}
	}
	return found
}
