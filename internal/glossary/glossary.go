package glossary

import (
	"sort"
	"strings"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// Entry is a single source term and its mandated target term
type Entry struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Glossary is a read-only mapping of source terms to target terms
type Glossary struct {
	terms    map[string]string
	order    []string
	replacer *strings.Replacer
}

// New builds a glossary from entries. Empty source terms and duplicate
// source terms are configuration errors.
func New(entries []Entry) (*Glossary, error) {
	terms := make(map[string]string, len(entries))
	for i, e := range entries {
		if e.Source == "" {
			return nil, apperr.Newf(apperr.CodeConfig, "glossary entry %d: empty source term", i+1)
		}
		if _, dup := terms[e.Source]; dup {
			return nil, apperr.Newf(apperr.CodeConfig, "glossary entry %d: duplicate source term %q", i+1, e.Source)
		}
		terms[e.Source] = e.Target
	}
	return fromMap(terms), nil
}

func fromMap(terms map[string]string) *Glossary {
	order := make([]string, 0, len(terms))
	for k := range terms {
		order = append(order, k)
	}

	// Longest key first so the replacer prefers "API Gateway" over "API"
	// at the same position. Ties are ordered lexically for determinism.
	sort.Slice(order, func(i, j int) bool {
		if len(order[i]) != len(order[j]) {
			return len(order[i]) > len(order[j])
		}
		return order[i] < order[j]
	})

	g := &Glossary{terms: terms, order: order}
	if len(order) > 0 {
		pairs := make([]string, 0, len(order)*2)
		for _, k := range order {
			pairs = append(pairs, k, terms[k])
		}
		g.replacer = strings.NewReplacer(pairs...)
	}
	return g
}

// Apply replaces every occurrence of a source term in text with its target
// term. Matching is exact and case-sensitive, the longest term wins at any
// position, and replaced output is never matched again.
func (g *Glossary) Apply(text string) string {
	if g == nil || g.replacer == nil {
		return text
	}
	return g.replacer.Replace(text)
}

// Len returns the number of terms
func (g *Glossary) Len() int {
	if g == nil {
		return 0
	}
	return len(g.terms)
}

// Lookup returns the target term for an exact source term
func (g *Glossary) Lookup(source string) (string, bool) {
	if g == nil {
		return "", false
	}
	target, ok := g.terms[source]
	return target, ok
}

// Entries returns all entries in application order
func (g *Glossary) Entries() []Entry {
	if g == nil {
		return nil
	}
	entries := make([]Entry, 0, len(g.order))
	for _, k := range g.order {
		entries = append(entries, Entry{Source: k, Target: g.terms[k]})
	}
	return entries
}
