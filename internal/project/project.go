// Package project maps a visible set onto map layers and export formats.
package project

import (
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

// Style is the static presentation of one category.
type Style struct {
	Icon      string
	Intensity float64
	Color     string
}

const (
	iconBlue   = "/markers/marker-icon-blue.png"
	iconGreen  = "/markers/marker-icon-green.png"
	iconYellow = "/markers/marker-icon-yellow.png"
	iconShadow = "/markers/marker-shadow.png"
)

var styles = map[string]Style{
	"Sample Site":    {Icon: iconBlue, Intensity: 0.7, Color: "primary"},
	"Confirmed Case": {Icon: iconGreen, Intensity: 1.0, Color: "success"},
	"Pending Review": {Icon: iconYellow, Intensity: 0.4, Color: "warning"},
}

var defaultStyle = Style{Icon: iconBlue, Intensity: 0.6, Color: "secondary"}

// StyleFor returns the style of category, falling back to the default.
func StyleFor(category string) Style {
	if s, ok := styles[category]; ok {
		return s
	}
	return defaultStyle
}

type Popup struct {
	Label   string `json:"label"`
	Type    string `json:"type"`
	Species string `json:"species"`
	Year    int    `json:"year"`
}

type Marker struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Icon   string  `json:"icon"`
	Shadow string  `json:"shadow"`
	Popup  Popup   `json:"popup"`
}

// HeatSample is a (lat, lng, intensity) triple.
type HeatSample struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
}

type LegendEntry struct {
	Category string `json:"category"`
	Color    string `json:"color"`
}

// Projection is everything one render pass needs.
type Projection struct {
	Markers []Marker      `json:"markers"`
	Heat    []HeatSample  `json:"heat"`
	Legend  []LegendEntry `json:"legend"`
}

func Project(visible []model.Record) Projection {
	return Projection{
		Markers: Markers(visible),
		Heat:    Heat(visible),
		Legend:  Legend(visible),
	}
}

func Markers(visible []model.Record) []Marker {
	out := make([]Marker, 0, len(visible))
	for _, r := range visible {
		out = append(out, Marker{
			Lat:    r.Lat,
			Lng:    r.Lng,
			Icon:   StyleFor(r.Type).Icon,
			Shadow: iconShadow,
			Popup:  Popup{Label: r.Label, Type: r.Type, Species: r.Species, Year: r.Year},
		})
	}
	return out
}

func Heat(visible []model.Record) []HeatSample {
	out := make([]HeatSample, 0, len(visible))
	for _, r := range visible {
		out = append(out, HeatSample{Lat: r.Lat, Lng: r.Lng, Intensity: StyleFor(r.Type).Intensity})
	}
	return out
}

// Legend lists the categories present in visible, first-seen order.
func Legend(visible []model.Record) []LegendEntry {
	out := []LegendEntry{}
	seen := make(map[string]struct{})
	for _, r := range visible {
		if _, ok := seen[r.Type]; ok {
			continue
		}
		seen[r.Type] = struct{}{}
		out = append(out, LegendEntry{Category: r.Type, Color: StyleFor(r.Type).Color})
	}
	return out
}
