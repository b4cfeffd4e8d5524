package parse

import "github.com/dekarrin/peregrine/internal/peregrine/item"

// mergeResults combines two adjacent Sequence results into one, per spec.md
// §4.7.6's six ordered rules. Each rule is checked in turn; the first that
// applies decides the result.
func mergeResults(a, b item.Item) item.Item {
	// Rule 1: a absent (an Optional that failed, or an un-captured zero-width
	// match) contributes nothing - the sequence's result is just b.
	if isAbsentResult(a) {
		return b
	}

	// Rule 2: both Nodes. Disjoint attribute names merge into one Node (this
	// is how a Sequence of several Declarations builds up a single record);
	// overlapping names can't merge without losing data, so they become a
	// List of the two Nodes instead.
	if a.IsNode() && b.IsNode() {
		if keysDisjoint(a, b) {
			out := a
			for _, k := range b.Keys() {
				out = out.With(k, b.MustGet(k))
			}
			return out
		}
		return item.List(a, b)
	}

	// Rule 3: b is a Node, a is not.
	if b.IsNode() {
		if a.IsList() || (a.IsText() && a.Captured) {
			return item.List(a.Uncaptured(), b)
		}
		// a is plain, uncaptured Text: positional filler with no content of
		// its own (e.g. a matched-but-discarded keyword) - drop it.
		return b
	}

	// Rule 4: b is a List or a captured Text.
	if b.IsList() || (b.IsText() && b.Captured) {
		switch {
		case a.IsNode():
			return item.List(a, b.Uncaptured())
		case a.IsText() && a.Captured && b.IsText() && b.Captured:
			return item.CapturedText(a.AsText() + b.AsText())
		case a.IsText() && a.Captured && b.IsList():
			return item.List(append(append([]item.Item{}, b.Elements()...), a)...)
		case a.IsList() && b.IsText() && b.Captured:
			return item.List(append(append([]item.Item{}, a.Elements()...), b.Uncaptured())...)
		case a.IsList() && b.IsList():
			elems := append(append([]item.Item{}, a.Elements()...), b.Elements()...)
			return item.List(elems...)
		case a.IsText() && !a.Captured:
			// a is a plain uncaptured positional filler: symmetric to rule 3's
			// drop-a case, just with the roles of List/captured-Text reversed.
			return b
		}
	}

	// Rule 5: both plain, uncaptured Text - concatenate.
	if a.IsText() && b.IsText() && !a.Captured && !b.Captured {
		return item.Text(a.AsText() + b.AsText())
	}

	// Rule 6: no rule above applied (e.g. b is an uncaptured Text filler
	// following something structured) - keep a.
	return a
}

// isAbsentResult reports whether it represents "nothing produced": the empty
// List an Optional yields on failure, or a zero-width Repeat match.
func isAbsentResult(it item.Item) bool {
	return it.IsList() && len(it.Elements()) == 0
}

func keysDisjoint(a, b item.Item) bool {
	seen := map[string]bool{}
	for _, k := range a.Keys() {
		seen[k] = true
	}
	for _, k := range b.Keys() {
		if seen[k] {
			return false
		}
	}
	return true
}
