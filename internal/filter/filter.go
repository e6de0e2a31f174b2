// Package filter computes the visible subset of a dataset for a set of
// criteria.
package filter

import (
	"strings"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

// Evaluator holds the prepared form of one Criteria value. Prepare once per
// criteria change, then Evaluate against any dataset.
type Evaluator struct {
	text       string
	categories map[string]struct{}
	emptyAll   bool
	region     string
	species    string
	year       string
}

func New(c model.Criteria, policy model.CategoryPolicy) *Evaluator {
	e := &Evaluator{
		text:     strings.ToLower(c.Text),
		emptyAll: policy != model.CategoryEmptyMatchesNone,
		region:   c.Region,
		species:  c.Species,
		year:     c.Year,
	}
	if len(c.Categories) > 0 {
		e.categories = make(map[string]struct{}, len(c.Categories))
		for _, cat := range c.Categories {
			e.categories[cat] = struct{}{}
		}
	}
	return e
}

// Evaluate returns the records passing every predicate, in input order.
// The input slice is never modified and the result never aliases it.
func Evaluate(records []model.Record, c model.Criteria, policy model.CategoryPolicy) []model.Record {
	return New(c, policy).Evaluate(records)
}

func (e *Evaluator) Evaluate(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if e.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (e *Evaluator) Match(r model.Record) bool {
	return e.MatchesText(r) &&
		e.MatchesCategory(r) &&
		e.MatchesRegion(r) &&
		e.MatchesSpecies(r) &&
		e.MatchesYear(r)
}

// MatchesText is a case-insensitive substring match against label, type,
// species or the year's decimal form. Empty text matches everything.
func (e *Evaluator) MatchesText(r model.Record) bool {
	if e.text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Label), e.text) ||
		strings.Contains(strings.ToLower(r.Type), e.text) ||
		strings.Contains(strings.ToLower(r.Species), e.text) ||
		strings.Contains(r.YearString(), e.text)
}

func (e *Evaluator) MatchesCategory(r model.Record) bool {
	if e.categories == nil {
		return e.emptyAll
	}
	_, ok := e.categories[r.Type]
	return ok
}

func (e *Evaluator) MatchesRegion(r model.Record) bool {
	return e.region == "" || r.Label == e.region
}

func (e *Evaluator) MatchesSpecies(r model.Record) bool {
	return e.species == "" || r.Species == e.species
}

// MatchesYear compares decimal strings, so "02022" never matches 2022.
func (e *Evaluator) MatchesYear(r model.Record) bool {
	return e.year == "" || r.YearString() == e.year
}
