package placement

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

type SamplingMode string

const (
	// SamplePrefix considers IDs 0..n-1. Ingestion shuffles IDs, so the prefix
	// carries no spatial ordering from the raw input.
	SamplePrefix SamplingMode = "prefix"
	// SampleRandom considers a seeded uniform subset of n IDs.
	SampleRandom SamplingMode = "random"
)

func ParseSamplingMode(s string) (SamplingMode, error) {
	switch SamplingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SamplePrefix:
		return SamplePrefix, nil
	case SampleRandom:
		return SampleRandom, nil
	}
	return "", fmt.Errorf("unknown sampling mode %q (allowed: prefix, random)", s)
}

// Sampling decides which n of the available demand points a placer considers.
// The same Sampling yields the same subset for every placer.
type Sampling struct {
	Mode SamplingMode
	Seed int64
}

// Select returns n ascending IDs out of 0..total-1.
func (s Sampling) Select(total, n int) []int {
	if s.Mode == SampleRandom {
		rng := rand.New(rand.NewSource(s.Seed))
		ids := rng.Perm(total)[:n]
		sort.Ints(ids)
		return ids
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
