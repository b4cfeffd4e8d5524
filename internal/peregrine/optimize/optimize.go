// Package optimize implements the optimizer pass of spec.md §4.6: a visitor
// that rewrites grammar IR to a fixpoint (QuoteExpander, GroupSimplifier,
// OptionalSimplifier, OrFlattener, SequenceFlattener, CaptureSimplifier),
// followed by the push-up pass, and it owns the bootstrap grammar's one-time
// construction since the grammar package cannot import this one without a
// cycle.
package optimize

import (
	"sync"

	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/pgerr"
)

// maxRewritePasses/maxPushUpPasses bound the optimizer's two fixpoint loops
// (spec.md §9 Open Question on multiple optimization passes, resolved in
// DESIGN.md: canonicalization to a cap of 64 passes, then push-up to its own
// cap of 16). Optimize returns a GrammarError if either loop reaches its cap
// without converging.
const (
	maxRewritePasses = 64
	maxPushUpPasses  = 16
)

// Optimize runs the optimizer pipeline over g in place: rewrite rules to a
// fixpoint, then the push-up pass to its own fixpoint, then re-runs the
// recursion analyzer (push-up can change which references are left-
// recursive) and the first-character filter analyzer. Calling Optimize on an
// already-optimized grammar is a no-op and returns the same instance
// (spec.md §8 property 3: "optimizing twice is the same as optimizing
// once").
func Optimize(g *grammar.Grammar) (*grammar.Grammar, error) {
	if g.Optimized {
		return g, nil
	}

	converged := false
	for pass := 0; pass < maxRewritePasses; pass++ {
		changed := false
		for _, name := range g.GroupNames() {
			for _, d := range g.Group(name).Definitions {
				out, didChange := rewriteOnce(d.Instance, g.Options)
				if didChange {
					d.Instance = out
					changed = true
				}
			}
		}
		if !changed {
			converged = true
			break
		}
	}
	if !converged {
		return nil, pgerr.Grammar("", "optimizer rewrite rules did not reach a fixpoint within %d passes", maxRewritePasses)
	}

	converged = false
	for pass := 0; pass < maxPushUpPasses; pass++ {
		if !pushUpOnce(g) {
			converged = true
			break
		}
	}
	if !converged {
		return nil, pgerr.Grammar("", "push-up pass did not reach a fixpoint within %d passes", maxPushUpPasses)
	}

	if err := grammar.ClassifyRecursion(g); err != nil {
		return nil, err
	}
	grammar.ComputeFilters(g)
	g.Optimized = true
	return g, nil
}

var (
	bootstrapOnce    sync.Once
	bootstrapGrammar *grammar.Grammar
	bootstrapErr     error
)

// Bootstrap returns the compiled, optimized grammar for the grammar notation
// itself (spec.md §4.2). It is built exactly once, from ir.BootstrapUnit's
// constant IR tree - never parsed from text, since the notation that
// describes grammars has no text form of its own - and memoized for the
// life of the process.
func Bootstrap() (*grammar.Grammar, error) {
	bootstrapOnce.Do(func() {
		g, err := grammar.Build(ir.BootstrapUnit())
		if err != nil {
			bootstrapErr = err
			return
		}
		bootstrapGrammar, bootstrapErr = Optimize(g)
	})
	return bootstrapGrammar, bootstrapErr
}
