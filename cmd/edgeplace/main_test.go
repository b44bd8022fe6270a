package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(cli,
		kong.Name("edgeplace"),
		kong.BindTo(context.Background(), (*context.Context)(nil)),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	return parser
}

func TestParsePlace(t *testing.T) {
	cli := &CLI{}
	kctx, err := newParser(t, cli).Parse([]string{
		"--cache-backend", "memory", "place", "--algo", "exact", "-n", "12", "-k", "3", "--time-budget", "2s",
	})
	require.NoError(t, err)
	assert.Equal(t, "place", kctx.Command())
	assert.Equal(t, "memory", cli.CacheBackend)
	assert.Equal(t, "exact", cli.Place.Algo)
	assert.Equal(t, 12, cli.Place.N)
	assert.Equal(t, 3, cli.Place.K)
	assert.Equal(t, 2*time.Second, cli.Place.TimeBudget)
	assert.Equal(t, "prefix", cli.Place.Sampling)
}

func TestParseRejectsUnknownAlgorithm(t *testing.T) {
	_, err := newParser(t, &CLI{}).Parse([]string{"place", "--algo", "greedy", "-n", "5", "-k", "1"})
	assert.Error(t, err)
}

func TestParseWatch(t *testing.T) {
	cli := &CLI{}
	kctx, err := newParser(t, cli).Parse([]string{"watch", "abc", "--server", "https://example.test/base/"})
	require.NoError(t, err)
	assert.Equal(t, "watch <run-id>", kctx.Command())
	assert.Equal(t, "abc", cli.Watch.RunID)
}

func TestProgressURL(t *testing.T) {
	u, err := progressURL("http://localhost:8080", "r1")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/v1/runs/r1/progress", u)

	u, err = progressURL("https://example.test/base/", "r 2")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.test/base/v1/runs/r%202/progress", u)

	_, err = progressURL("ftp://example.test", "r1")
	assert.Error(t, err)
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func TestResourcesCloseInReverseAndCombine(t *testing.T) {
	var order []int
	errA, errB := errors.New("a"), errors.New("b")
	res := &resources{}
	res.add(closeFunc(func() error { order = append(order, 1); return errA }))
	res.add(closeFunc(func() error { order = append(order, 2); return nil }))
	res.add(closeFunc(func() error { order = append(order, 3); return errB }))

	err := res.Close()
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.NoError(t, res.Close())
}
