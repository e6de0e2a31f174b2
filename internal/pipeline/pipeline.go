// Package pipeline holds the per-session map state and the pure transitions
// between states. Data only flows forward: records, then facets, then the
// visible set, then layers and exports.
package pipeline

import (
	"slices"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/facets"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/filter"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/project"
)

// State is an immutable snapshot. Transitions return a new value and never
// modify the receiver's slices.
type State struct {
	Records  []model.Record `json:"records"`
	Criteria model.Criteria `json:"criteria"`
	Facets   model.Facets   `json:"facets"`
}

type Parser interface {
	Parse(content []byte, format model.Format) ([]model.Record, error)
}

// Empty is the state of a fresh or cleared session.
func Empty() State {
	return State{
		Records:  []model.Record{},
		Criteria: model.Criteria{Categories: []string{}},
		Facets:   facets.Build(nil),
	}
}

// Ingest parses content and, on success, replaces the dataset. On failure
// the returned state is s itself.
func Ingest(s State, p Parser, content []byte, format model.Format) (State, error) {
	recs, err := p.Parse(content, format)
	if err != nil {
		return s, err
	}
	return Load(recs), nil
}

// Load builds the state for an already validated batch: facets are rebuilt
// and the criteria reset so every discovered category is selected.
func Load(recs []model.Record) State {
	recs = slices.Clone(recs)
	if recs == nil {
		recs = []model.Record{}
	}
	f := facets.Build(recs)
	return State{
		Records:  recs,
		Criteria: model.Criteria{Categories: slices.Clone(f.Categories)},
		Facets:   f,
	}
}

func Clear(State) State { return Empty() }

// WithCriteria replaces the criteria and keeps the dataset.
func (s State) WithCriteria(c model.Criteria) State {
	c = c.Clone()
	if c.Categories == nil {
		c.Categories = []string{}
	}
	s.Criteria = c
	return s
}

func (s State) Visible(policy model.CategoryPolicy) []model.Record {
	return filter.Evaluate(s.Records, s.Criteria, policy)
}

func (s State) Project(policy model.CategoryPolicy) project.Projection {
	return project.Project(s.Visible(policy))
}
