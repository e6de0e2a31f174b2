// Package render hands projected layers to whatever draws the map.
package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"

	h3cluster "github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cluster/h3"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/project"
)

type Layers struct {
	Zoom     int                   `json:"zoom"`
	Markers  []project.Marker      `json:"markers"`
	Heat     []project.HeatSample  `json:"heat"`
	Legend   []project.LegendEntry `json:"legend"`
	Clusters []h3cluster.Cluster   `json:"clusters"`
}

// NewLayers builds the full layer set for one projection.
func NewLayers(p project.Projection, c *h3cluster.Clusterer, zoom int) Layers {
	l := Layers{
		Zoom:     zoom,
		Markers:  p.Markers,
		Heat:     p.Heat,
		Legend:   p.Legend,
		Clusters: []h3cluster.Cluster{},
	}
	if c != nil {
		l.Clusters = c.Cluster(p.Markers, zoom)
	}
	return l
}

type Renderer interface {
	RenderLayers(ctx context.Context, l Layers) error
}

// JSON writes each layer set as one JSON document.
type JSON struct {
	w io.Writer
}

func NewJSON(w io.Writer) *JSON { return &JSON{w: w} }

func (j *JSON) RenderLayers(ctx context.Context, l Layers) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := json.NewEncoder(j.w).Encode(l); err != nil {
		return fmt.Errorf("encode layers: %w", err)
	}
	return nil
}

// Recorder keeps every layer set it is given.
type Recorder struct {
	mu    sync.Mutex
	calls []Layers
}

func (r *Recorder) RenderLayers(_ context.Context, l Layers) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, l)
	return nil
}

func (r *Recorder) Calls() []Layers {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Layers, len(r.calls))
	copy(out, r.calls)
	return out
}
