// Package dataset turns the raw station and session CSV exports into demand
// points and their distance matrix.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"edgeplace/internal/logger"
	"edgeplace/internal/model"
)

// DefaultShuffleSeed fixes the ID assignment of the published experiments.
const DefaultShuffleSeed = 6767

const sessionTimeLayout = "2006/01/02 15:04"

type Station struct {
	Address   string
	Latitude  float64
	Longitude float64
}

// Stats summarizes one session aggregation pass.
type Stats struct {
	Sessions  int `json:"sessions"`
	Unmatched int `json:"unmatched"` // sessions whose address has no station
	BadTimes  int `json:"badTimes"`  // sessions counted with zero minutes
}

// ReadStations parses the header-less station file: address, latitude,
// longitude. Extra columns are ignored.
func ReadStations(r io.Reader) ([]Station, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	var out []Station
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stations line %d: %w", line, err)
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("stations line %d: want 3 columns, got %d", line, len(row))
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("stations line %d: latitude: %w", line, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("stations line %d: longitude: %w", line, err)
		}
		out = append(out, Station{Address: row[0], Latitude: lat, Longitude: lng})
	}
	return out, nil
}

// Aggregate reads the session file (one header row; begin time, end time and
// address in columns 2, 3 and 4) and folds it onto stations. Every station
// with at least one session becomes a demand point, in order of first
// appearance, with UserNum counting sessions and Workload summing minutes.
func Aggregate(ctx context.Context, stations []Station, sessions io.Reader) ([]model.DemandPoint, Stats, error) {
	log := logger.FromContext(ctx)
	byAddr := make(map[string]int, len(stations))
	for i, s := range stations {
		if _, dup := byAddr[s.Address]; !dup {
			byAddr[s.Address] = i
		}
	}

	cr := csv.NewReader(sessions)
	cr.FieldsPerRecord = -1
	var st Stats
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, st, nil
		}
		return nil, st, fmt.Errorf("sessions header: %w", err)
	}

	pointOf := map[int]int{} // station index -> point index
	var points []model.DemandPoint
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, st, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, st, fmt.Errorf("sessions line %d: %w", line, err)
		}
		if len(row) < 5 {
			return nil, st, fmt.Errorf("sessions line %d: want 5 columns, got %d", line, len(row))
		}
		st.Sessions++
		si, ok := byAddr[row[4]]
		if !ok {
			st.Unmatched++
			continue
		}
		minutes, err := SessionMinutes(row[2], row[3])
		if err != nil {
			st.BadTimes++
			log.Warn("session time unusable, counting zero minutes", "line", line, "err", err)
		}
		pi, ok := pointOf[si]
		if !ok {
			s := stations[si]
			pi = len(points)
			pointOf[si] = pi
			points = append(points, model.DemandPoint{
				ID:        pi,
				Address:   s.Address,
				Latitude:  s.Latitude,
				Longitude: s.Longitude,
			})
		}
		points[pi].UserNum++
		points[pi].Workload += minutes
	}
	if st.Unmatched > 0 {
		log.Info("sessions without a matching station", "count", st.Unmatched)
	}
	return points, st, nil
}

// SessionMinutes parses two "yy/mm/dd HH:MM" timestamps and returns the
// session length in minutes. A session that ends before it begins counts 0.
func SessionMinutes(begin, end string) (float64, error) {
	b, err := time.Parse(sessionTimeLayout, "20"+strings.TrimSpace(begin))
	if err != nil {
		return 0, fmt.Errorf("begin time: %w", err)
	}
	e, err := time.Parse(sessionTimeLayout, "20"+strings.TrimSpace(end))
	if err != nil {
		return 0, fmt.Errorf("end time: %w", err)
	}
	d := e.Sub(b)
	if d < 0 {
		return 0, fmt.Errorf("session ends %s before it begins", -d)
	}
	return d.Minutes(), nil
}

// Shuffle permutes points with a seeded generator and renumbers IDs 0..n-1.
func Shuffle(points []model.DemandPoint, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(points), func(i, j int) { points[i], points[j] = points[j], points[i] })
	for i := range points {
		points[i].ID = i
	}
}
