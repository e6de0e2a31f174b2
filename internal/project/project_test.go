package project

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

var visible = []model.Record{
	{Lat: -1.286389, Lng: 36.817223, Label: "Nairobi", Type: "Sample Site", Species: "Type 1", Year: 2023},
	{Lat: 0.516667, Lng: 35.283333, Label: "Eldoret", Type: "Confirmed Case", Species: "Type 2", Year: 2022},
	{Lat: -0.023559, Lng: 37.906193, Label: "Meru", Type: "Pending Review", Species: "Type 3", Year: 2024},
	{Lat: 95.5, Lng: 200.25, Label: "Nowhere", Type: "Unknown Kind", Species: "Type 4", Year: 2021},
	{Lat: -1.3, Lng: 36.8, Label: "Nairobi", Type: "Sample Site", Species: "Type 1", Year: 2020},
}

func TestMarkers_IconLookupAndPopup(t *testing.T) {
	ms := Markers(visible)
	if len(ms) != len(visible) {
		t.Fatalf("markers=%d want %d", len(ms), len(visible))
	}
	wantIcons := []string{iconBlue, iconGreen, iconYellow, iconBlue, iconBlue}
	for i, m := range ms {
		if m.Icon != wantIcons[i] {
			t.Fatalf("marker %d icon=%q want %q", i, m.Icon, wantIcons[i])
		}
		r := visible[i]
		if m.Lat != r.Lat || m.Lng != r.Lng {
			t.Fatalf("marker %d coords=(%v,%v)", i, m.Lat, m.Lng)
		}
		if m.Popup != (Popup{Label: r.Label, Type: r.Type, Species: r.Species, Year: r.Year}) {
			t.Fatalf("marker %d popup=%+v", i, m.Popup)
		}
	}
}

func TestHeat_StaticIntensityTable(t *testing.T) {
	hs := Heat(visible)
	want := []float64{0.7, 1.0, 0.4, 0.6, 0.7}
	for i, h := range hs {
		if h.Intensity != want[i] {
			t.Fatalf("sample %d intensity=%v want %v", i, h.Intensity, want[i])
		}
		if h.Lat != visible[i].Lat || h.Lng != visible[i].Lng {
			t.Fatalf("sample %d coords mismatch", i)
		}
	}
}

func TestLegend_OnlyVisibleCategoriesFirstSeen(t *testing.T) {
	got := Legend(visible[2:])
	want := []LegendEntry{
		{Category: "Pending Review", Color: "warning"},
		{Category: "Unknown Kind", Color: "secondary"},
		{Category: "Sample Site", Color: "primary"},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("legend=%+v want %+v", got, want)
	}
	if l := Legend(nil); l == nil || len(l) != 0 {
		t.Fatalf("empty legend=%#v", l)
	}
}

func TestExportCSV_EmptyIsHeaderOnly(t *testing.T) {
	if got := string(ExportCSV(nil)); got != "label,type,species,year,lat,lng" {
		t.Fatalf("csv=%q", got)
	}
}

func TestExportCSV_RowsInOrder(t *testing.T) {
	got := string(ExportCSV(visible[:2]))
	want := "label,type,species,year,lat,lng\n" +
		"Nairobi,Sample Site,Type 1,2023,-1.286389,36.817223\n" +
		"Eldoret,Confirmed Case,Type 2,2022,0.516667,35.283333"
	if got != want {
		t.Fatalf("csv=\n%s\nwant\n%s", got, want)
	}
}

func TestExportCSV_CoordinateFormatting(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{-1.286389, "-1.286389"},
		{90, "90"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{-2.5e-8, "-2.5e-8"},
		{5e-324, "5e-324"},
		{1e20, "100000000000000000000"},
		{1.5e21, "1.5e+21"},
	}
	for _, tc := range tests {
		if got := formatCoord(tc.in); got != tc.want {
			t.Errorf("formatCoord(%v)=%q want %q", tc.in, got, tc.want)
		}
	}

	got := string(ExportCSV([]model.Record{{Label: "a", Type: "b", Species: "c", Year: 2020, Lat: 1e-7, Lng: 0}}))
	if want := CSVHeader + "\na,b,c,2020,1e-7,0"; got != want {
		t.Fatalf("csv=%q want %q", got, want)
	}
}

func TestExportCSV_NoEscaping(t *testing.T) {
	got := string(ExportCSV([]model.Record{{Label: "Nairobi, Kenya", Type: "t", Species: "s", Year: 1, Lat: 1, Lng: 2}}))
	if !strings.HasSuffix(got, "\nNairobi, Kenya,t,s,1,1,2") {
		t.Fatalf("csv=%q", got)
	}
}

func TestExportGeoJSON_Empty(t *testing.T) {
	out, err := ExportGeoJSON(nil)
	if err != nil {
		t.Fatalf("ExportGeoJSON: %v", err)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(out, &fc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if fc.Type != "FeatureCollection" || fc.Features == nil || len(fc.Features) != 0 {
		t.Fatalf("fc=%+v body=%s", fc, out)
	}
}

func TestExportGeoJSON_CoordinateRoundTrip(t *testing.T) {
	out, err := ExportGeoJSON(visible)
	if err != nil {
		t.Fatalf("ExportGeoJSON: %v", err)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(out, &fc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fc.Features) != len(visible) {
		t.Fatalf("features=%d want %d", len(fc.Features), len(visible))
	}
	for i, f := range fc.Features {
		if f.Type != "Feature" || f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) != 2 {
			t.Fatalf("feature %d malformed: %+v", i, f)
		}
		lat, lng := f.Geometry.Coordinates[1], f.Geometry.Coordinates[0]
		if lat != visible[i].Lat || lng != visible[i].Lng {
			t.Fatalf("feature %d (lat,lng)=(%v,%v) want (%v,%v)", i, lat, lng, visible[i].Lat, visible[i].Lng)
		}
		if f.Properties["label"] != visible[i].Label || f.Properties["type"] != visible[i].Type ||
			f.Properties["species"] != visible[i].Species || f.Properties["year"] != float64(visible[i].Year) {
			t.Fatalf("feature %d properties=%v", i, f.Properties)
		}
		if len(f.Properties) != 4 {
			t.Fatalf("feature %d has extra properties: %v", i, f.Properties)
		}
	}
}

func TestETag_StableAndContentSensitive(t *testing.T) {
	a := ETag(ExportCSV(visible))
	if a != ETag(ExportCSV(visible)) {
		t.Fatal("etag not stable")
	}
	if a == ETag(ExportCSV(visible[:1])) {
		t.Fatal("etag ignores content")
	}
}
