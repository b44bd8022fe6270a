package experiment

import "edgeplace/internal/model"

// ScaleSweep grows n over [from, to] by step with k = n/ratio, skipping
// points where k would be zero.
func ScaleSweep(from, to, step, ratio int) []model.GridPoint {
	var out []model.GridPoint
	if step < 1 || ratio < 1 {
		return out
	}
	for n := from; n <= to; n += step {
		if k := n / ratio; k >= 1 {
			out = append(out, model.GridPoint{N: n, K: k})
		}
	}
	return out
}

// ServerSweep keeps n fixed and grows k over [from, to] by step, capped at n.
func ServerSweep(n, from, to, step int) []model.GridPoint {
	var out []model.GridPoint
	if step < 1 {
		return out
	}
	for k := from; k <= to && k <= n; k += step {
		if k >= 1 {
			out = append(out, model.GridPoint{N: n, K: k})
		}
	}
	return out
}
