// Package h3cluster groups map markers by the H3 cell that contains them.
package h3cluster

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	h3 "github.com/uber/h3-go/v4"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/project"
)

const (
	MinRes = 0
	MaxRes = 15

	rawPrefix = "raw:"
)

type Cluster struct {
	Cell    string  `json:"cell"`
	Count   int     `json:"count"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Members []int   `json:"members"`
}

type Clusterer struct {
	resMin int
	resMax int
}

func New(resMin, resMax int) (*Clusterer, error) {
	if err := validateRes(resMin); err != nil {
		return nil, err
	}
	if err := validateRes(resMax); err != nil {
		return nil, err
	}
	if resMin > resMax {
		return nil, fmt.Errorf("cluster resolution range %d..%d is empty", resMin, resMax)
	}
	return &Clusterer{resMin: resMin, resMax: resMax}, nil
}

// ResForZoom maps a slippy-map zoom level onto an H3 resolution.
func (c *Clusterer) ResForZoom(zoom int) int {
	res := zoom/2 + 1
	if res < c.resMin {
		return c.resMin
	}
	if res > c.resMax {
		return c.resMax
	}
	return res
}

// Cluster returns one cluster per occupied cell, sorted by cell id. Members
// are indexes into markers in ascending order.
func (c *Clusterer) Cluster(markers []project.Marker, zoom int) []Cluster {
	res := c.ResForZoom(zoom)

	byCell := make(map[string]*Cluster)
	for i, m := range markers {
		key, ok := cellFor(m.Lat, m.Lng, res)
		if !ok {
			key = rawPrefix + strconv.Itoa(i)
		}
		cl, found := byCell[key]
		if !found {
			cl = &Cluster{Cell: key}
			byCell[key] = cl
		}
		cl.Count++
		cl.Lat += m.Lat
		cl.Lng += m.Lng
		cl.Members = append(cl.Members, i)
	}

	out := make([]Cluster, 0, len(byCell))
	for _, cl := range byCell {
		n := float64(cl.Count)
		cl.Lat /= n
		cl.Lng /= n
		out = append(out, *cl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cell < out[j].Cell })
	return out
}

func cellFor(lat, lng float64, res int) (string, bool) {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return "", false
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
	if err != nil || !cell.IsValid() {
		return "", false
	}
	return cell.String(), true
}

func validateRes(res int) error {
	if res < MinRes || res > MaxRes {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
