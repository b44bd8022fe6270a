package placement

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// lpLowerBound solves the LP relaxation of the p-median problem over the flat
// n×n distance slice and returns its optimal total distance. The program is
// put in the standard form Simplex expects (Ax = b, x >= 0):
//
//	sum_j x_ij = 1            for every point i
//	x_ij - y_j + s_ij = 0     x_ij <= y_j
//	y_j + t_j = 1             y_j <= 1
//	sum_j y_j = k
//
// The slack columns s and t make A full row rank. Dense storage grows as n^4,
// so callers only use it for small n.
func lpLowerBound(d []float64, n, k int) (float64, error) {
	nx := n * n
	cols := 2*nx + 2*n
	rows := nx + 2*n + 1
	x := func(i, j int) int { return i*n + j }
	y := func(j int) int { return nx + j }
	sl := func(i, j int) int { return nx + n + i*n + j }
	t := func(j int) int { return 2*nx + n + j }

	A := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	c := make([]float64, cols)

	r := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			A.Set(r, x(i, j), 1)
			c[x(i, j)] = d[i*n+j]
		}
		b[r] = 1
		r++
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			A.Set(r, x(i, j), 1)
			A.Set(r, y(j), -1)
			A.Set(r, sl(i, j), 1)
			r++
		}
	}
	for j := 0; j < n; j++ {
		A.Set(r, y(j), 1)
		A.Set(r, t(j), 1)
		b[r] = 1
		r++
	}
	for j := 0; j < n; j++ {
		A.Set(r, y(j), 1)
	}
	b[r] = float64(k)

	opt, _, err := lp.Simplex(c, A, b, 1e-10, nil)
	if err != nil {
		return 0, err
	}
	return opt, nil
}
