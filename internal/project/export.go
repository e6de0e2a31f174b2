package project

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

const (
	CSVHeader = "label,type,species,year,lat,lng"

	CSVContentType     = "text/csv"
	GeoJSONContentType = "application/json"

	CSVFileName     = "map_data.csv"
	GeoJSONFileName = "map_data.geojson"
)

// ExportCSV writes the header and one line per record joined by "\n", with
// no trailing newline. Values are not quoted; a comma inside a value is
// written as is.
func ExportCSV(visible []model.Record) []byte {
	var b strings.Builder
	b.Grow(len(CSVHeader) + len(visible)*48)
	b.WriteString(CSVHeader)
	for _, r := range visible {
		b.WriteByte('\n')
		b.WriteString(r.Label)
		b.WriteByte(',')
		b.WriteString(r.Type)
		b.WriteByte(',')
		b.WriteString(r.Species)
		b.WriteByte(',')
		b.WriteString(r.YearString())
		b.WriteByte(',')
		b.WriteString(formatCoord(r.Lat))
		b.WriteByte(',')
		b.WriteString(formatCoord(r.Lng))
	}
	return []byte(b.String())
}

// formatCoord writes the shortest round-tripping form, switching to
// exponent notation outside [1e-6, 1e21) the way browsers print numbers.
func formatCoord(f float64) string {
	if f == 0 {
		return "0"
	}
	if a := math.Abs(f); a >= 1e-6 && a < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is a GeoJSON Point; Coordinates is [lng, lat].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type Properties struct {
	Label   string `json:"label"`
	Type    string `json:"type"`
	Species string `json:"species"`
	Year    int    `json:"year"`
}

func ToFeatureCollection(visible []model.Record) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(visible))}
	for _, r := range visible {
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   Geometry{Type: "Point", Coordinates: [2]float64{r.Lng, r.Lat}},
			Properties: Properties{Label: r.Label, Type: r.Type, Species: r.Species, Year: r.Year},
		})
	}
	return fc
}

// ExportGeoJSON encodes the visible set as an indented FeatureCollection.
func ExportGeoJSON(visible []model.Record) ([]byte, error) {
	buf, err := json.MarshalIndent(ToFeatureCollection(visible), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal FeatureCollection: %w", err)
	}
	return buf, nil
}

// ETag is a weak content tag for an export body.
func ETag(body []byte) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(body))
}
