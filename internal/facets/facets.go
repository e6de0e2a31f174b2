// Package facets derives the distinct values that populate filter controls.
package facets

import (
	"slices"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

// Build scans records once. Categories, regions and species keep first-seen
// order; years are sorted numerically.
func Build(records []model.Record) model.Facets {
	f := model.Facets{
		Categories: []string{},
		Regions:    []string{},
		Species:    []string{},
		Years:      []int{},
	}
	seenCat := make(map[string]struct{})
	seenReg := make(map[string]struct{})
	seenSp := make(map[string]struct{})
	seenYear := make(map[int]struct{})

	for _, r := range records {
		f.Categories = appendNew(f.Categories, seenCat, r.Type)
		f.Regions = appendNew(f.Regions, seenReg, r.Label)
		f.Species = appendNew(f.Species, seenSp, r.Species)
		if _, ok := seenYear[r.Year]; !ok {
			seenYear[r.Year] = struct{}{}
			f.Years = append(f.Years, r.Year)
		}
	}
	slices.Sort(f.Years)
	return f
}

func appendNew(dst []string, seen map[string]struct{}, v string) []string {
	if _, ok := seen[v]; ok {
		return dst
	}
	seen[v] = struct{}{}
	return append(dst, v)
}
