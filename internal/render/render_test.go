package render

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	h3cluster "github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cluster/h3"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/project"
)

var recs = []model.Record{
	{Lat: -1.286389, Lng: 36.817223, Label: "Nairobi", Type: "Sample Site", Species: "Type 1", Year: 2023},
	{Lat: 0.516667, Lng: 35.283333, Label: "Eldoret", Type: "Confirmed Case", Species: "Type 2", Year: 2022},
}

func TestJSON_WritesAllLayers(t *testing.T) {
	c, err := h3cluster.New(0, 9)
	if err != nil {
		t.Fatalf("clusterer: %v", err)
	}
	var buf bytes.Buffer
	if err := NewJSON(&buf).RenderLayers(context.Background(), NewLayers(project.Project(recs), c, 6)); err != nil {
		t.Fatalf("RenderLayers: %v", err)
	}

	var got struct {
		Zoom     int               `json:"zoom"`
		Markers  []json.RawMessage `json:"markers"`
		Heat     []json.RawMessage `json:"heat"`
		Legend   []json.RawMessage `json:"legend"`
		Clusters []struct {
			Count int `json:"count"`
		} `json:"clusters"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if got.Zoom != 6 || len(got.Markers) != 2 || len(got.Heat) != 2 || len(got.Legend) != 2 {
		t.Fatalf("layers=%s", buf.String())
	}
	n := 0
	for _, cl := range got.Clusters {
		n += cl.Count
	}
	if n != 2 {
		t.Fatalf("clusters cover %d markers, want 2", n)
	}
}

func TestJSON_EmptyLayersAreArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSON(&buf).RenderLayers(context.Background(), NewLayers(project.Project(nil), nil, 0)); err != nil {
		t.Fatalf("RenderLayers: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, k := range []string{"markers", "heat", "legend", "clusters"} {
		arr, ok := got[k].([]any)
		if !ok || len(arr) != 0 {
			t.Fatalf("%s=%v want []", k, got[k])
		}
	}
}

func TestJSON_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if err := NewJSON(&buf).RenderLayers(ctx, Layers{}); err == nil {
		t.Fatal("expected error on canceled context")
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %q after cancel", buf.String())
	}
}

func TestRecorder_KeepsCalls(t *testing.T) {
	var r Recorder
	var _ Renderer = &r
	_ = r.RenderLayers(context.Background(), NewLayers(project.Project(recs), nil, 3))
	_ = r.RenderLayers(context.Background(), NewLayers(project.Project(recs[:1]), nil, 4))
	calls := r.Calls()
	if len(calls) != 2 || calls[0].Zoom != 3 || len(calls[1].Markers) != 1 {
		t.Fatalf("calls=%+v", calls)
	}
}
