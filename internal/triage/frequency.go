package triage

import (
	"strings"

	"csreply-backend/internal/rules"
)

// frequency maps each vocabulary term to its occurrence count in one text.
// Every rule reads from this table instead of rescanning the text.
type frequency map[string]int

// scan counts every term of the analyzer vocabulary in lowered once.
func scan(lowered string, r *rules.Rules) frequency {
	table := make(frequency)
	add := func(terms []string) {
		for _, term := range terms {
			if _, done := table[term]; done {
				continue
			}
			table[term] = strings.Count(lowered, term)
		}
	}
	for _, c := range r.Taxonomy {
		add(c.Keywords)
	}
	add(r.Analysis.HighRiskKeywords)
	add(r.Analysis.LegalKeywords)
	add(r.Analysis.ExceptionKeywords)
	add(r.Analysis.NegativeKeywords)
	add(r.Analysis.UrgentKeywords)
	return table
}

// count returns how many distinct terms are present.
func (f frequency) count(terms []string) int {
	n := 0
	for _, term := range terms {
		if f[term] > 0 {
			n++
		}
	}
	return n
}

func (f frequency) any(terms []string) bool {
	for _, term := range terms {
		if f[term] > 0 {
			return true
		}
	}
	return false
}
