// Package geo provides the point and footprint primitives used to place
// synthetic storm events and test property locations against them.
package geo

import (
	"math"
	"math/rand"
)

const earthRadiusMiles = 3958.8

// Point is a lon/lat coordinate in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// BBox is a lon/lat bounding box.
type BBox struct {
	MinLon float64 `yaml:"minLon"`
	MinLat float64 `yaml:"minLat"`
	MaxLon float64 `yaml:"maxLon"`
	MaxLat float64 `yaml:"maxLat"`
}

// Contains reports whether p falls within the box.
func (b BBox) Contains(p Point) bool {
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon && p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}

// RandomPoint returns a uniformly distributed point within the box.
func (b BBox) RandomPoint(rnd *rand.Rand) Point {
	return Point{
		Lon: b.MinLon + rnd.Float64()*(b.MaxLon-b.MinLon),
		Lat: b.MinLat + rnd.Float64()*(b.MaxLat-b.MinLat),
	}
}

// Footprint is the spatial region affected by one synthetic event.
type Footprint interface {
	Contains(p Point) bool
}

// Circle is a circular footprint around a center point.
type Circle struct {
	Center      Point
	RadiusMiles float64
}

func (c Circle) Contains(p Point) bool {
	return Distance(c.Center, p) <= c.RadiusMiles
}

// Distance returns the great-circle distance between two points in miles.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}
