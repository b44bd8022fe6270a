package dataset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"edgeplace/internal/cache"
	"edgeplace/internal/geo"
	"edgeplace/internal/logger"
	"edgeplace/internal/model"
)

type Source struct {
	Stations    string
	Sessions    string
	ShuffleSeed int64
}

type Dataset struct {
	Points    []model.DemandPoint
	Distances *mat.SymDense
}

type pointsKey struct {
	Stations string `json:"stations"`
	Sessions string `json:"sessions"`
	Seed     int64  `json:"seed"`
}

// Keys returns the cache keys for the points and distance matrix derived from
// the current contents of src.
func Keys(src Source) (points, distances cache.Key, err error) {
	stations, err := digest(src.Stations)
	if err != nil {
		return "", "", err
	}
	sessions, err := digest(src.Sessions)
	if err != nil {
		return "", "", err
	}
	k := pointsKey{Stations: stations, Sessions: sessions, Seed: src.ShuffleSeed}
	if points, err = cache.KeyOf("points/v1", k); err != nil {
		return "", "", err
	}
	if distances, err = cache.KeyOf("distances/v1", k); err != nil {
		return "", "", err
	}
	return points, distances, nil
}

// Load builds the dataset for src, reusing cached points and distances when
// the input files are unchanged.
func Load(ctx context.Context, src Source, c cache.Cache) (*Dataset, error) {
	log := logger.FromContext(ctx)
	pk, dk, err := Keys(src)
	if err != nil {
		return nil, err
	}
	points, err := cache.Memoize(ctx, c, pk, cache.JSON[[]model.DemandPoint]{}, func(ctx context.Context) ([]model.DemandPoint, error) {
		return readPoints(ctx, src)
	})
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", src.Sessions, geo.ErrEmpty)
	}
	dist, err := cache.Memoize(ctx, c, dk, cache.SymMatrix{}, func(context.Context) (*mat.SymDense, error) {
		log.Info("computing distance matrix", "points", len(points))
		return geo.DistanceMatrix(points)
	})
	if err != nil {
		return nil, err
	}
	if dist.SymmetricDim() != len(points) {
		return nil, fmt.Errorf("cached distance matrix has %d rows for %d points", dist.SymmetricDim(), len(points))
	}
	return &Dataset{Points: points, Distances: dist}, nil
}

// Invalidate drops the cached entries for src.
func Invalidate(ctx context.Context, src Source, c cache.Cache) error {
	pk, dk, err := Keys(src)
	if err != nil {
		return err
	}
	if err := c.Invalidate(ctx, pk); err != nil {
		return err
	}
	return c.Invalidate(ctx, dk)
}

func readPoints(ctx context.Context, src Source) ([]model.DemandPoint, error) {
	log := logger.FromContext(ctx)
	raw, err := os.ReadFile(src.Stations)
	if err != nil {
		return nil, err
	}
	stations, err := ReadStations(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Stations, err)
	}
	f, err := os.Open(src.Sessions)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	points, st, err := Aggregate(ctx, stations, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Sessions, err)
	}
	Shuffle(points, src.ShuffleSeed)
	log.Info("dataset loaded", "stations", len(stations), "points", len(points),
		"sessions", st.Sessions, "unmatched", st.Unmatched, "badTimes", st.BadTimes)
	return points, nil
}

func digest(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
