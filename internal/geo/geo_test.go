package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeplace/internal/model"
)

func TestHaversineKm(t *testing.T) {
	assert.Equal(t, 0.0, HaversineKm(31.2, 121.4, 31.2, 121.4))
	// one degree of latitude is ~111.19 km on a 6371 km sphere
	assert.InDelta(t, 111.19, HaversineKm(0, 0, 1, 0), 0.01)
	assert.InDelta(t, HaversineKm(31.0, 121.0, 31.5, 121.7), HaversineKm(31.5, 121.7, 31.0, 121.0), 1e-9)
}

func TestDistanceMatrix(t *testing.T) {
	pts := []model.DemandPoint{
		{ID: 0, Latitude: 31.0, Longitude: 121.0},
		{ID: 1, Latitude: 31.1, Longitude: 121.0},
		{ID: 2, Latitude: 31.0, Longitude: 121.2},
	}
	d, err := DistanceMatrix(pts)
	require.NoError(t, err)
	n, _ := d.Dims()
	require.Equal(t, 3, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, 0.0, d.At(i, i))
		for j := 0; j < n; j++ {
			assert.Equal(t, d.At(i, j), d.At(j, i))
		}
	}
	assert.InDelta(t, HaversineKm(31.0, 121.0, 31.1, 121.0), d.At(0, 1), 1e-12)
}

func TestDistanceMatrixRejectsSparseIDs(t *testing.T) {
	_, err := DistanceMatrix([]model.DemandPoint{{ID: 0}, {ID: 2}})
	require.Error(t, err)
	_, err = DistanceMatrix(nil)
	require.ErrorIs(t, err, ErrEmpty)
}
