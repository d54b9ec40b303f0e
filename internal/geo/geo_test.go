package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairHead/eventourismo-discover/internal/geo"
)

// germany is the default sweep territory used throughout the tests.
var germany = geo.BBox{MinLat: 47.27, MinLng: 5.87, MaxLat: 55.06, MaxLng: 15.04}

func TestBBoxValidate(t *testing.T) {
	tests := []struct {
		name    string
		box     geo.BBox
		wantErr bool
	}{
		{"valid", germany, false},
		{"latitude out of range", geo.BBox{MinLat: -91, MinLng: 0, MaxLat: 10, MaxLng: 10}, true},
		{"longitude out of range", geo.BBox{MinLat: 0, MinLng: 0, MaxLat: 10, MaxLng: 181}, true},
		{"inverted latitudes", geo.BBox{MinLat: 10, MinLng: 0, MaxLat: 5, MaxLng: 10}, true},
		{"inverted longitudes", geo.BBox{MinLat: 0, MinLng: 10, MaxLat: 10, MaxLng: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.box.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGridCoversBoxExactly(t *testing.T) {
	cells := geo.Grid(germany, 0.5)
	require.NotEmpty(t, cells)

	// Row-major order, rows contiguous from the box's south edge.
	assert.Equal(t, 0, cells[0].Row)
	assert.Equal(t, 0, cells[0].Col)
	assert.Equal(t, germany.MinLat, cells[0].MinLat)
	assert.Equal(t, germany.MinLng, cells[0].MinLng)

	last := cells[len(cells)-1]
	assert.Equal(t, germany.MaxLat, last.MaxLat)
	assert.Equal(t, germany.MaxLng, last.MaxLng)

	// No gaps: every cell either starts at the box edge or abuts the
	// previous cell in its row/column exactly.
	byPos := make(map[[2]int]geo.Cell, len(cells))
	for _, c := range cells {
		byPos[[2]int{c.Row, c.Col}] = c

		assert.LessOrEqual(t, c.MaxLat, germany.MaxLat)
		assert.LessOrEqual(t, c.MaxLng, germany.MaxLng)
		assert.Less(t, c.MinLat, c.MaxLat)
		assert.Less(t, c.MinLng, c.MaxLng)
	}
	for _, c := range cells {
		if c.Col > 0 {
			west := byPos[[2]int{c.Row, c.Col - 1}]
			assert.Equal(t, west.MaxLng, c.MinLng)
		} else {
			assert.Equal(t, germany.MinLng, c.MinLng)
		}
		if c.Row > 0 {
			south := byPos[[2]int{c.Row - 1, c.Col}]
			assert.Equal(t, south.MaxLat, c.MinLat)
		} else {
			assert.Equal(t, germany.MinLat, c.MinLat)
		}
	}
}

func TestGridStepLargerThanBox(t *testing.T) {
	box := geo.BBox{MinLat: 49.0, MinLng: 11.0, MaxLat: 49.2, MaxLng: 11.3}
	cells := geo.Grid(box, 5.0)
	require.Len(t, cells, 1)
	assert.Equal(t, box, cells[0].BBox)
}

func TestGridInvalidStep(t *testing.T) {
	assert.Nil(t, geo.Grid(germany, 0))
	assert.Nil(t, geo.Grid(germany, -1))
}

func TestDistanceMeters(t *testing.T) {
	// Two sightings of the same Nuremberg venue, a few meters apart.
	d := geo.DistanceMeters(49.4521, 11.0767, 49.45213, 11.07671)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 80.0)

	// Nuremberg to Berlin is roughly 380 km.
	far := geo.DistanceMeters(49.4521, 11.0767, 52.5200, 13.4050)
	assert.InDelta(t, 380_000, far, 20_000)

	assert.Zero(t, geo.DistanceMeters(49.4521, 11.0767, 49.4521, 11.0767))
}

func TestCellRadiusCoversCell(t *testing.T) {
	cell := geo.Cell{BBox: geo.BBox{MinLat: 49.0, MinLng: 11.0, MaxLat: 49.5, MaxLng: 11.5}}
	r := cell.RadiusMeters()
	lat, lng := cell.Center()
	for _, corner := range [][2]float64{
		{cell.MinLat, cell.MinLng},
		{cell.MinLat, cell.MaxLng},
		{cell.MaxLat, cell.MinLng},
		{cell.MaxLat, cell.MaxLng},
	} {
		d := geo.DistanceMeters(lat, lng, corner[0], corner[1])
		assert.LessOrEqual(t, d, r*1.001)
	}
}

func TestGeohash(t *testing.T) {
	h := geo.Geohash(49.4521, 11.0767, 9)
	assert.Len(t, h, 9)
	// A shorter precision is a prefix of the longer one.
	assert.Equal(t, h[:5], geo.Geohash(49.4521, 11.0767, 5))
}
