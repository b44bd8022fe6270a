// Package cache stores derived artifacts, such as parsed datasets and
// distance matrices, under content-addressed keys.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"edgeplace/internal/logger"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Key is the hex SHA-256 of a namespace and the canonical JSON of the
// parameters that produced a value.
type Key string

// KeyOf derives a key. Struct fields and map keys marshal in a fixed order, so
// equal parameters always produce equal keys.
func KeyOf(namespace string, params any) (Key, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("cache key %s: %w", namespace, err)
	}
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write(raw)
	return Key(hex.EncodeToString(h.Sum(nil))), nil
}

type Cache interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Put(ctx context.Context, key Key, value []byte) error
	Invalidate(ctx context.Context, key Key) error
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, Key) ([]byte, error) { return nil, ErrMiss }
func (Nop) Put(context.Context, Key, []byte) error   { return nil }
func (Nop) Invalidate(context.Context, Key) error    { return nil }

type Memory struct {
	mu sync.Mutex
	m  map[Key][]byte
}

func NewMemory() *Memory { return &Memory{m: map[Key][]byte{}} }

func (c *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), v...), nil
}

func (c *Memory) Put(_ context.Context, key Key, value []byte) error {
	c.mu.Lock()
	c.m[key] = append([]byte(nil), value...)
	c.mu.Unlock()
	return nil
}

func (c *Memory) Invalidate(_ context.Context, key Key) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	return nil
}

// Instrument counts Get outcomes on requests, labelled with backend.
func Instrument(c Cache, backend string, requests *prometheus.CounterVec) Cache {
	return &instrumented{Cache: c, backend: backend, requests: requests}
}

type instrumented struct {
	Cache
	backend  string
	requests *prometheus.CounterVec
}

func (c *instrumented) Get(ctx context.Context, key Key) ([]byte, error) {
	v, err := c.Cache.Get(ctx, key)
	result := "hit"
	switch {
	case errors.Is(err, ErrMiss):
		result = "miss"
	case err != nil:
		result = "error"
	}
	c.requests.WithLabelValues(c.backend, result).Inc()
	return v, err
}

// Memoize returns the cached value for key or computes, stores and returns
// it. Cache failures fall back to computing; only compute errors are returned.
func Memoize[T any](ctx context.Context, c Cache, key Key, codec Codec[T], compute func(context.Context) (T, error)) (T, error) {
	log := logger.FromContext(ctx)
	raw, err := c.Get(ctx, key)
	if err == nil {
		v, derr := codec.Decode(raw)
		if derr == nil {
			log.Debug("cache hit", "key", key)
			return v, nil
		}
		log.Warn("cache entry undecodable, recomputing", "key", key, "err", derr)
	} else if !errors.Is(err, ErrMiss) {
		log.Warn("cache read failed, recomputing", "key", key, "err", err)
	}

	v, err := compute(ctx)
	if err != nil {
		return v, err
	}
	raw, err = codec.Encode(v)
	if err != nil {
		log.Warn("cache encode failed", "key", key, "err", err)
		return v, nil
	}
	if err := c.Put(ctx, key, raw); err != nil {
		log.Warn("cache write failed", "key", key, "err", err)
	}
	return v, nil
}
