package analyzer

import (
	"strings"
)

// descriptors are preparation and size words that do not change which
// ingredient a line refers to.
var descriptors = map[string]struct{}{
	"fresh": {}, "chopped": {}, "sliced": {}, "diced": {}, "ground": {}, "minced": {},
	"large": {}, "small": {}, "medium": {}, "organic": {}, "ripe": {}, "skinless": {},
	"boneless": {}, "cooked": {}, "uncooked": {}, "raw": {},
}

var unitWords = map[string]struct{}{
	"g": {}, "gram": {}, "grams": {}, "kg": {}, "ml": {}, "l": {},
	"tbsp": {}, "tsp": {}, "cup": {}, "cups": {},
	"ounce": {}, "ounces": {}, "oz": {}, "lb": {}, "pound": {}, "pounds": {},
}

// CanonicalizeName reduces an ingredient name or raw ingredient line to the
// form used to match ingredients with recipe lines: lowercase ASCII letter
// runs, minus descriptors and unit words, joined by single spaces.
//
//	"2 cups Chopped Fresh Basil" -> "basil"
func CanonicalizeName(name string) string {
	words := letterRuns(strings.ToLower(name))
	kept := words[:0]
	for _, w := range words {
		if _, skip := descriptors[w]; skip {
			continue
		}
		if _, skip := unitWords[w]; skip {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// letterRuns splits text into maximal runs of a-z. Digits, punctuation and
// non-ASCII letters all act as separators.
func letterRuns(text string) []string {
	var words []string
	var current strings.Builder

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 'a' && c <= 'z' {
			current.WriteByte(c)
			continue
		}
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}
