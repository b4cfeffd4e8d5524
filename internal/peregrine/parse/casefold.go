package parse

import (
	"unicode"

	"golang.org/x/text/cases"

	"github.com/dekarrin/peregrine/internal/peregrine/item"
)

// foldCaser is the single Caser used for every case-insensitive comparison in
// the parser (spec.md §3.2's CaseSensitive option). golang.org/x/text/cases'
// Fold is deliberately locale-independent - unlike Lower/Upper/Title it takes
// no language.Tag - which is the right behavior here: a grammar's
// case-folding isn't tied to any particular locale, and a specific tag would
// favor one language's folding rules over another's for no reason the
// grammar author can control.
var foldCaser = cases.Fold()

// caseFold returns r's fold-case form under golang.org/x/text/cases. Used
// wherever the grammar's CaseSensitive option is false.
func caseFold(r rune) rune {
	folded := []rune(foldCaser.String(string(r)))
	if len(folded) == 0 {
		return r
	}
	return folded[0]
}

// runeEqual compares a and b, folding case first when caseSensitive is false.
func runeEqual(a, b rune, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return caseFold(a) == caseFold(b)
}

// runeInRange reports whether r falls in [from, to], folding case first when
// caseSensitive is false: a case-insensitive range checks both r's and the
// bounds' folded forms, matching whichever endpoint produces a wider match is
// pointless to special-case further since the grammar's own range bounds are
// already fixed at grammar-build time.
func runeInRange(r, from, to rune, caseSensitive bool) bool {
	if caseSensitive {
		return from <= r && r <= to
	}
	fr := caseFold(r)
	return (from <= r && r <= to) || (caseFold(from) <= fr && fr <= caseFold(to))
}

// csContains reports whether r is a member of cs. When caseSensitive is
// false it also tests r's folded, upper-case and lower-case forms against the
// set (a CharSet's ranges are recorded verbatim from grammar source, so the
// probe character's case variants are tested instead of re-expanding every
// range at grammar-build time).
func csContains(cs item.CharSet, r rune, caseSensitive bool) bool {
	if cs.Contains(r) {
		return true
	}
	if caseSensitive {
		return false
	}
	return cs.Contains(caseFold(r)) || cs.Contains(unicode.ToUpper(r)) || cs.Contains(unicode.ToLower(r))
}
