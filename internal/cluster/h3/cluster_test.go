package h3cluster

import (
	"reflect"
	"sort"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/project"
)

func markers(coords ...[2]float64) []project.Marker {
	out := make([]project.Marker, 0, len(coords))
	for _, c := range coords {
		out = append(out, project.Marker{Lat: c[0], Lng: c[1]})
	}
	return out
}

func TestResForZoom_Clamped(t *testing.T) {
	c, err := New(2, 9)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct{ zoom, want int }{
		{0, 2}, {1, 2}, {2, 2}, {4, 3}, {10, 6}, {16, 9}, {22, 9},
	}
	for _, tc := range tests {
		if got := c.ResForZoom(tc.zoom); got != tc.want {
			t.Fatalf("zoom %d: res=%d want %d", tc.zoom, got, tc.want)
		}
	}
}

func TestNew_RejectsBadRange(t *testing.T) {
	if _, err := New(-1, 5); err == nil {
		t.Fatal("expected error for negative res")
	}
	if _, err := New(3, 16); err == nil {
		t.Fatal("expected error for res > 15")
	}
	if _, err := New(7, 3); err == nil {
		t.Fatal("expected error for empty range")
	}
}

func TestCluster_GroupsByContainingCell(t *testing.T) {
	c, _ := New(0, 9)
	ms := markers(
		[2]float64{-1.286389, 36.817223},
		[2]float64{59.3293, 18.0686},
		[2]float64{-1.2864, 36.8172},
	)
	zoom := 8
	res := c.ResForZoom(zoom)

	got := c.Cluster(ms, zoom)

	want := map[string][]int{}
	for i, m := range ms {
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: m.Lat, Lng: m.Lng}, res)
		if err != nil {
			t.Fatalf("LatLngToCell: %v", err)
		}
		want[cell.String()] = append(want[cell.String()], i)
	}
	if len(got) != len(want) {
		t.Fatalf("clusters=%d want %d", len(got), len(want))
	}
	total := 0
	for _, cl := range got {
		if !reflect.DeepEqual(cl.Members, want[cl.Cell]) {
			t.Fatalf("cluster %s members=%v want %v", cl.Cell, cl.Members, want[cl.Cell])
		}
		if cl.Count != len(cl.Members) {
			t.Fatalf("cluster %s count=%d members=%d", cl.Cell, cl.Count, len(cl.Members))
		}
		total += cl.Count
	}
	if total != len(ms) {
		t.Fatalf("clustered %d markers, want %d", total, len(ms))
	}
	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Cell < got[j].Cell }) {
		t.Fatal("clusters must be sorted by cell")
	}
}

func TestCluster_CentroidIsMean(t *testing.T) {
	c, _ := New(0, 0)
	ms := markers([2]float64{59.30, 18.00}, [2]float64{59.40, 18.20})
	got := c.Cluster(ms, 0)
	if len(got) != 1 {
		t.Fatalf("expected one cluster at res 0, got %d", len(got))
	}
	if d := got[0].Lat - 59.35; d > 1e-9 || d < -1e-9 {
		t.Fatalf("lat=%v", got[0].Lat)
	}
	if d := got[0].Lng - 18.10; d > 1e-9 || d < -1e-9 {
		t.Fatalf("lng=%v", got[0].Lng)
	}
}

func TestCluster_UnindexableMarkersStayAlone(t *testing.T) {
	c, _ := New(0, 9)
	ms := markers([2]float64{95.5, 200.25}, [2]float64{95.5, 200.25})
	got := c.Cluster(ms, 10)
	want := []Cluster{
		{Cell: "raw:0", Count: 1, Lat: 95.5, Lng: 200.25, Members: []int{0}},
		{Cell: "raw:1", Count: 1, Lat: 95.5, Lng: 200.25, Members: []int{1}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("clusters=%+v want %+v", got, want)
	}
}

func TestCluster_DeterministicAndEmpty(t *testing.T) {
	c, _ := New(0, 9)
	ms := markers([2]float64{55.6050, 13.0038}, [2]float64{57.7089, 11.9746}, [2]float64{59.3293, 18.0686})
	if a, b := c.Cluster(ms, 12), c.Cluster(ms, 12); !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical output for identical input")
	}
	if got := c.Cluster(nil, 5); got == nil || len(got) != 0 {
		t.Fatalf("empty input: %#v", got)
	}
}
