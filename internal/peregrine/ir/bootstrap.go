package ir

import "github.com/dekarrin/peregrine/internal/peregrine/item"

// BootstrapUnit returns the IR tree of the grammar notation's own grammar
// (spec.md §4.2): a constant value, never parsed from text, since the
// notation that describes grammars has no text form of its own to bootstrap
// from. Every user-authored grammar source file is parsed by running this
// tree through the same packrat engine that later runs the grammar it
// describes.
//
// Concrete syntax covered (spec.md §6.3): a `grammar Name;` header with
// optional `comparer: (sensitive|insensitive);` and `whitespace: ident;`
// clauses, one or more `Name [prec] [L|R] (:=|=) Sequence ;` definitions,
// and expressions built from string/char/range/set literals, references,
// groups, optionals, alternation, postfix repetition/separation/capture/
// and-not/as, and `name: expr` declarations.
//
// Capture notation: `<expr>` (angle brackets) wraps expr in a Capture node.
// spec.md §6.3 lists capture as "trailing + on the expression", which is the
// same token shape it also gives to one-or-more repetition two clauses
// earlier - the two cannot be the same token in a parseable grammar. This
// bootstrap resolves the clash by keeping `+` as one-or-more repetition
// (needed by nearly every real grammar, including this one's own `digit+` in
// the integer production)
// and giving capture its own bracket notation instead (see DESIGN.md).
//
// Bridging surface syntax to canonical IR: a handful of productions below
// (Group, Optional, Capture, and the desugaring targets CodePoint, Repeat,
// Separated, AndNot, As, SequenceItem, SequenceItems, OrExpr, PostfixExpr)
// are deliberately named and shaped to match - or to be interpretable into -
// one of the wrap()-tagged canonical IR kinds, because a purely declarative
// grammar cannot itself choose which IR constructor to invoke; that choice
// is made by grammar.Build's post-parse desugaring pass (see
// internal/peregrine/grammar/builder.go), the same way desugarSurface
// turns a parsed digit string into a rune.
func BootstrapUnit() item.Item {
	return Unit("PeregrineGrammar", true, false, "_", true,
		unitDef(),
		definitionDef(),
		sequenceDef(),
		orExprDef(),
		sequenceItemsDef(),
		sequenceItemRuleDef(),
		postfixExprDef(),
		repeatOpDef(),
		separatedOpDef(),
		andNotOpDef(),
		asOpDef(),
		primaryDef(),
		groupFormDef(),
		optionalFormDef(),
		captureFormDef(),
		referenceDef(),
		quoteDef(),
		stringDef(),
		rangeDef(),
		charDef(),
		charSetDef(),
		identifierDef(),
		integerDef(),
		letterDef(),
		digitDef(),
		wsDef(),
		lineCommentDef(),
		blockCommentDef(),
	)
}

// rule declares a Type=="=" helper definition: its body's parse result is
// returned unchanged. Used for productions consumed by name (Unit,
// Definition) or purely as glue (Sequence).
func rule(name string, body item.Item) item.Item {
	return Definition(name, 0, false, false, "=", body)
}

// node declares a Type==":=" definition: its body's parse result is wrapped
// as Node{name: result} at parse time. Used for productions whose result
// must land on (or be interpretable into, via grammar.Build's desugaring
// pass) one of the wrap()-tagged IR kinds.
func node(name string, body item.Item) item.Item {
	return Definition(name, 0, false, false, ":=", body)
}

// punct is a whitespace-tolerant but uncaptured literal match: unlike Quote
// (which the optimizer's QuoteExpander always captures), its matched text
// drops out of the surrounding Sequence's result under the merge rules
// (spec.md §4.7.6 - an empty/uncaptured contribution is absorbed rather than
// forcing a List). Used for structural delimiters that carry no information
// of their own: parens, brackets, commas, semicolons, colons, keywords.
func punct(text string) item.Item {
	runes := []rune(text)
	var lit item.Item
	if len(runes) == 1 {
		lit = Char(runes[0])
	} else {
		lit = String(text)
	}
	return Group(Sequence(Reference("_"), lit, Reference("_")))
}

// --- Unit ---

func unitDef() item.Item {
	header := Group(Sequence(
		punct("grammar"),
		Declaration("Name", Reference("identifier")),
		punct(";"),
		Optional(Sequence(punct("comparer"), punct(":"), Declaration("Comparer", comparerWordRef()), punct(";"))),
		Optional(Sequence(punct("whitespace"), punct(":"), Declaration("Whitespace", Reference("identifier")), punct(";"))),
	))
	return rule("Unit", Sequence(
		Optional(header),
		Declaration("Definitions", Repeat(Reference("Definition"), 1, RepeatBound{})),
	))
}

func comparerWordRef() item.Item {
	return Capture(Or(Quote("sensitive"), Quote("insensitive")))
}

// --- Definition ---

func definitionDef() item.Item {
	precClause := Declaration("Precedence", Optional(Reference("integer")))
	assocClause := Declaration("Associativity", Optional(Capture(Or(Quote("L"), Quote("R")))))
	typeTok := Declaration("Type", Capture(Or(Quote(":="), Quote("="))))
	return rule("Definition", Sequence(
		Declaration("Name", Reference("identifier")),
		precClause,
		assocClause,
		typeTok,
		Declaration("Expression", Reference("Sequence")),
		punct(";"),
	))
}

// --- Sequence / Or / postfix / primary ---

// Sequence is the top expression production: an alternation of
// concatenations. Its result is OrExpr's, collapsed by grammar.Build's
// desugaring pass into a bare expression, an ir.Sequence, or an ir.Or.
func sequenceDef() item.Item {
	return rule("Sequence", Reference("OrExpr"))
}

// OrExpr tags its result so the desugaring pass can tell "one alternative"
// (return it bare) from "more than one" (wrap as ir.Or) - a choice a
// declarative grammar can't make for itself.
func orExprDef() item.Item {
	return node("OrExpr", Declaration("Alternatives", Separated(Reference("SequenceItems"), punct("|"))))
}

// SequenceItems is the analogous collapse point for concatenation: one item
// returns bare, more than one becomes an ir.Sequence.
func sequenceItemsDef() item.Item {
	return node("SequenceItems", Declaration("Items", Repeat(Reference("SequenceItem"), 1, RepeatBound{})))
}

// SequenceItem optionally carries a `name:` prefix, becoming an
// ir.Declaration around its PostfixExpr when present.
func sequenceItemRuleDef() item.Item {
	named := Sequence(
		Declaration("DeclName", Reference("identifier")),
		punct(":"),
		Declaration("Expression", Reference("PostfixExpr")),
	)
	bare := Declaration("Expression", Reference("PostfixExpr"))
	return node("SequenceItem", Or(named, bare))
}

// PostfixExpr parses a Primary and an optional trailing operator
// (repetition, separation, and-not, or value substitution). Which IR kind
// the combination becomes depends on which operator (if any) matched, a
// choice the desugaring pass makes by inspecting Suffix's tag.
func postfixExprDef() item.Item {
	return node("PostfixExpr", Sequence(
		Declaration("Expression", Reference("Primary")),
		Declaration("Suffix", Optional(Or(
			Reference("RepeatOp"),
			Reference("SeparatedOp"),
			Reference("AndNotOp"),
			Reference("AsOp"),
		))),
	))
}

// RepeatOp covers both `*` (optionally `*N`, `*N..M`, `*N..n`) and `+`: the
// Min field records which, and Bound records an explicit count/range if
// given.
func repeatOpDef() item.Item {
	star := Sequence(
		Declaration("Min", As(punct("*"), "0")),
		Declaration("Bound", Optional(Sequence(
			Declaration("From", Reference("integer")),
			Declaration("To", Optional(Sequence(punct(".."), Capture(Or(Reference("integer"), Quote("n")))))),
		))),
	)
	plus := Declaration("Min", As(punct("+"), "1"))
	return node("RepeatOp", Or(star, plus))
}

func separatedOpDef() item.Item {
	return node("SeparatedOp", Sequence(punct("^"), Declaration("Separator", Reference("Primary"))))
}

func andNotOpDef() item.Item {
	return node("AndNotOp", Sequence(punct("&!"), Declaration("Not", Reference("Primary"))))
}

func asOpDef() item.Item {
	return node("AsOp", Sequence(punct("as"), Declaration("Value", Reference("String"))))
}

func primaryDef() item.Item {
	return rule("Primary", Or(
		Reference("Quote"),
		Reference("String"),
		Reference("CharSet"),
		Reference("Range"),
		Reference("CodePoint"),
		Reference("Group"),
		Reference("Optional"),
		Reference("Capture"),
		Reference("Reference"),
	))
}

// groupFormDef/optionalFormDef/captureFormDef are named after the canonical
// IR kind they parse directly into: each has exactly one field
// ("Expression"), so - unlike OrExpr/PostfixExpr above - no desugaring pass
// is needed; node()'s wrap already produces precisely ir.Group(x)/
// ir.Optional(x)/ir.Capture(x)'s own shape.
func groupFormDef() item.Item {
	return node("Group", Sequence(punct("("), Declaration("Expression", Reference("Sequence")), punct(")")))
}

func optionalFormDef() item.Item {
	return node("Optional", Sequence(punct("["), Declaration("Expression", Reference("Sequence")), punct("]")))
}

func captureFormDef() item.Item {
	return node("Capture", Sequence(punct("<"), Declaration("Expression", Reference("Sequence")), punct(">")))
}

// --- terminals ---

func referenceDef() item.Item {
	return node("Reference", Declaration("Name", Reference("identifier")))
}

func quoteDef() item.Item {
	body := Repeat(AndNot(CharSet(true, false), Char('"')), 0, RepeatBound{})
	return node("Quote", Sequence(Char('"'), Declaration("Text", Capture(body)), Char('"')))
}

func stringDef() item.Item {
	body := Repeat(AndNot(CharSet(true, false), Char('\'')), 0, RepeatBound{})
	return node("String", Sequence(Char('\''), Declaration("Value", Capture(body)), Char('\'')))
}

func rangeDef() item.Item {
	return node("Range", Sequence(
		Declaration("From", Reference("String")),
		punct(".."),
		Declaration("To", Reference("String")),
	))
}

// charDef produces a CodePoint node, not a Char node: a purely declarative
// grammar has no way to turn the digit string "65" into the rune 'A' while
// parsing, so the decimal-to-rune decode happens once, as a tree rewrite, in
// grammar.Build (see desugarSurface) before the rest of the builder ever
// sees the tree.
func charDef() item.Item {
	return node("CodePoint", Sequence(punct("#"), Declaration("Value", Reference("integer"))))
}

func charSetDef() item.Item {
	entry := Or(
		Sequence(Declaration("From", Reference("String")), punct(".."), Declaration("To", Reference("String"))),
		Declaration("From", Reference("String")),
	)
	entries := Separated(entry, punct(","))
	wildcard := Sequence(punct("{"), punct("?"), punct("}"))
	listed := Sequence(
		Declaration("Not", Optional(Capture(punct("!")))),
		punct("{"),
		Declaration("Entries", entries),
		punct("}"),
	)
	return node("CharSet", Or(
		Sequence(Declaration("All", As(wildcard, "true"))),
		listed,
	))
}

func identifierDef() item.Item {
	return rule("identifier", Capture(Sequence(
		Reference("letter"),
		Repeat(Or(Reference("letter"), Reference("digit")), 0, RepeatBound{}),
	)))
}

func integerDef() item.Item {
	return rule("integer", Capture(Repeat(Reference("digit"), 1, RepeatBound{})))
}

func letterDef() item.Item {
	return rule("letter", CharSet(false, false,
		CharSetEntry{From: 'a', To: 'z'},
		CharSetEntry{From: 'A', To: 'Z'},
		CharSetEntry{From: '_', To: '_'},
	))
}

func digitDef() item.Item {
	return rule("digit", CharSet(false, false, CharSetEntry{From: '0', To: '9'}))
}

// wsDef is the default whitespace rule `_`: zero or more spaces, tabs,
// newlines, or comments, used to skip between tokens around Quote literals.
func wsDef() item.Item {
	ws := CharSet(false, false,
		CharSetEntry{From: ' ', To: ' '},
		CharSetEntry{From: '\t', To: '\t'},
		CharSetEntry{From: '\n', To: '\n'},
		CharSetEntry{From: '\r', To: '\r'},
	)
	return rule("_", Repeat(Or(ws, Reference("lineComment"), Reference("blockComment")), 0, RepeatBound{}))
}

// lineComment and blockComment use exact Char/String literals, never Quote
// or punct: they are building blocks of the "_" whitespace rule itself, so
// their own delimiters must not be whitespace-tolerant - that would recurse
// back into "_" and make it left-recursive with no declared precedence.
func lineCommentDef() item.Item {
	body := Repeat(AndNot(CharSet(true, false), Char('\n')), 0, RepeatBound{})
	return rule("lineComment", Sequence(String("//"), body))
}

func blockCommentDef() item.Item {
	body := Repeat(AndNot(CharSet(true, false), String("*/")), 0, RepeatBound{})
	return rule("blockComment", Sequence(String("/*"), body, String("*/")))
}
