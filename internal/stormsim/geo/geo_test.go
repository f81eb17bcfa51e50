package geo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBBoxContains(t *testing.T) {
	box := BBox{MinLon: -94, MinLat: 33, MaxLon: -89, MaxLat: 36}

	assert.True(t, box.Contains(Point{Lon: -92, Lat: 34}))
	assert.True(t, box.Contains(Point{Lon: -94, Lat: 33}))
	assert.False(t, box.Contains(Point{Lon: -95, Lat: 34}))
	assert.False(t, box.Contains(Point{Lon: -92, Lat: 37}))
}

func TestRandomPointFallsInsideBox(t *testing.T) {
	box := BBox{MinLon: -94, MinLat: 33, MaxLon: -89, MaxLat: 36}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		assert.True(t, box.Contains(box.RandomPoint(rnd)))
	}
}

func TestDistance(t *testing.T) {
	memphis := Point{Lon: -90.049, Lat: 35.1495}
	nashville := Point{Lon: -86.7816, Lat: 36.1627}

	d := Distance(memphis, nashville)
	assert.InDelta(t, 197, d, 5)
	assert.Equal(t, 0.0, Distance(memphis, memphis))
}

func TestCircleContains(t *testing.T) {
	c := Circle{Center: Point{Lon: -90, Lat: 35}, RadiusMiles: 30}

	assert.True(t, c.Contains(Point{Lon: -90, Lat: 35}))
	assert.True(t, c.Contains(Point{Lon: -90.2, Lat: 35.1}))
	assert.False(t, c.Contains(Point{Lon: -92, Lat: 35}))
}
