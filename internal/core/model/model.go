// Package model defines core domain types shared across the service.
package model

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Record is one validated point observation. Label doubles as the region
// name and Type as the category.
type Record struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Label   string  `json:"label"`
	Type    string  `json:"type"`
	Species string  `json:"species"`
	Year    int     `json:"year"`
}

// YearString is the representation used for text and year matching.
func (r Record) YearString() string {
	return strconv.Itoa(r.Year)
}

// Criteria is the active filter configuration of a session. Empty optional
// fields are unconstrained.
type Criteria struct {
	Text       string   `json:"text"`
	Categories []string `json:"categories"`
	Region     string   `json:"region,omitempty"`
	Species    string   `json:"species,omitempty"`
	Year       string   `json:"year,omitempty"`
}

// Clone returns a copy that shares no backing array with c.
func (c Criteria) Clone() Criteria {
	out := c
	if c.Categories != nil {
		out.Categories = append([]string(nil), c.Categories...)
	}
	return out
}

// Facets holds the distinct values that populate filter controls.
type Facets struct {
	Categories []string `json:"categories"`
	Regions    []string `json:"regions"`
	Species    []string `json:"species"`
	Years      []int    `json:"years"`
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv"/"json" in any case.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, true
	case FormatJSON:
		return FormatJSON, true
	}
	return "", false
}

// FormatFromName derives the format from a file extension.
func FormatFromName(name string) (Format, bool) {
	ext := strings.TrimPrefix(filepath.Ext(strings.TrimSpace(name)), ".")
	return ParseFormat(ext)
}

// CategoryPolicy decides what an empty category selection means.
type CategoryPolicy string

const (
	// CategoryEmptyMatchesAll treats an empty selection as no constraint.
	CategoryEmptyMatchesAll CategoryPolicy = "all"
	// CategoryEmptyMatchesNone treats an empty selection as excluding everything.
	CategoryEmptyMatchesNone CategoryPolicy = "none"
)

func ParseCategoryPolicy(s string) CategoryPolicy {
	if CategoryPolicy(strings.ToLower(strings.TrimSpace(s))) == CategoryEmptyMatchesNone {
		return CategoryEmptyMatchesNone
	}
	return CategoryEmptyMatchesAll
}
