// Package geo holds great-circle distance helpers and the demand-point distance matrix.
package geo

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"edgeplace/internal/model"
)

// EarthDiameterKm is twice the mean Earth radius.
const EarthDiameterKm = 12742.0

// HaversineKm returns the great-circle distance in km between two lat/lng pairs.
func HaversineKm(latA, lngA, latB, lngB float64) float64 {
	const p = math.Pi / 180
	a := 0.5 - math.Cos((latB-latA)*p)/2 + math.Cos(latA*p)*math.Cos(latB*p)*(1-math.Cos((lngB-lngA)*p))/2
	// rounding can push a just outside [0,1]
	a = math.Min(1, math.Max(0, a))
	return EarthDiameterKm * math.Asin(math.Sqrt(a))
}

var ErrEmpty = errors.New("geo: no demand points")

// DistanceMatrix builds the symmetric n×n km distance table indexed by DemandPoint.ID.
// IDs must be the dense permutation 0..n-1 in slice order.
func DistanceMatrix(points []model.DemandPoint) (*mat.SymDense, error) {
	n := len(points)
	if n == 0 {
		return nil, ErrEmpty
	}
	for i, p := range points {
		if p.ID != i {
			return nil, fmt.Errorf("geo: point at position %d has id %d, ids must be dense", i, p.ID)
		}
	}
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		a := points[i]
		for j := i + 1; j < n; j++ {
			b := points[j]
			d.SetSym(i, j, HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude))
		}
	}
	return d, nil
}
