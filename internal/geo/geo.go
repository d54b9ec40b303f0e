// Package geo provides the geographic primitives of the sweep: bounding
// boxes, deterministic grid partitioning, great-circle distances, and
// geohash encoding for providers that query by geohash.
package geo

import (
	"fmt"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"

	"github.com/FairHead/eventourismo-discover/pkg/errors"
)

// earthRadiusMeters is the mean Earth radius used to convert angular
// distances on the unit sphere to meters.
const earthRadiusMeters = 6371008.8

// BBox is a geographic bounding box in WGS84 degrees.
type BBox struct {
	MinLat float64 `yaml:"minLat" json:"minLat"`
	MinLng float64 `yaml:"minLng" json:"minLng"`
	MaxLat float64 `yaml:"maxLat" json:"maxLat"`
	MaxLng float64 `yaml:"maxLng" json:"maxLng"`
}

// Validate checks that the box is well-formed and within WGS84 bounds.
func (b BBox) Validate() error {
	switch {
	case b.MinLat < -90 || b.MaxLat > 90:
		return &errors.ValidationError{Field: "bbox", Message: "latitude out of range"}
	case b.MinLng < -180 || b.MaxLng > 180:
		return &errors.ValidationError{Field: "bbox", Message: "longitude out of range"}
	case b.MinLat >= b.MaxLat:
		return &errors.ValidationError{Field: "bbox", Message: "minLat must be less than maxLat"}
	case b.MinLng >= b.MaxLng:
		return &errors.ValidationError{Field: "bbox", Message: "minLng must be less than maxLng"}
	}
	return nil
}

// Contains reports whether the point lies inside the box (edges included).
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Center returns the midpoint of the box.
func (b BBox) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// Cell is one sub-rectangle of a sweep grid. Cells are derived
// deterministically from the box and step size and are never persisted.
type Cell struct {
	Row, Col int
	BBox
}

// Label returns a short identifier for logs and error messages.
func (c Cell) Label() string {
	return fmt.Sprintf("r%dc%d", c.Row, c.Col)
}

// RadiusMeters returns the distance from the cell center to its farthest
// corner. Providers that only accept point+radius queries are queried
// with the cell center and this covering radius.
func (c Cell) RadiusMeters() float64 {
	lat, lng := c.Center()
	return DistanceMeters(lat, lng, c.MaxLat, c.MaxLng)
}

// Grid partitions a bounding box into cells of at most step degrees per
// side, iterated row-major (south to north, west to east). Boundary cells
// are clamped to the box edge, so the union of all cells covers the box
// exactly with no gaps and no overshoot.
func Grid(b BBox, step float64) []Cell {
	if step <= 0 {
		return nil
	}

	var cells []Cell
	row := 0
	for lat := b.MinLat; lat < b.MaxLat; lat += step {
		maxLat := lat + step
		if maxLat > b.MaxLat {
			maxLat = b.MaxLat
		}
		col := 0
		for lng := b.MinLng; lng < b.MaxLng; lng += step {
			maxLng := lng + step
			if maxLng > b.MaxLng {
				maxLng = b.MaxLng
			}
			cells = append(cells, Cell{
				Row:  row,
				Col:  col,
				BBox: BBox{MinLat: lat, MinLng: lng, MaxLat: maxLat, MaxLng: maxLng},
			})
			col++
		}
		row++
	}
	return cells
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}

// Geohash encodes a point to a geohash of the given precision.
func Geohash(lat, lng float64, precision int) string {
	return geohash.EncodeWithPrecision(lat, lng, precision)
}
