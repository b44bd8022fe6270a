package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"edgeplace/internal/model"
)

const separator = "======================================================"

var labels = map[string]string{
	"exact":  "MIP",
	"topk":   "Top-K",
	"kmeans": "K-means",
	"random": "Random",
}

// Label is the report name of an algorithm.
func Label(algo string) string {
	if l, ok := labels[algo]; ok {
		return l
	}
	return algo
}

// WriteText prints results grouped by cell in the order given:
//
//	N=300, K=30
//	MIP Average distance (km)=1.2, Load standard deviation=310.5
//
// with a line of '=' between sweeps. Exact results that were not proven
// optimal carry their gap.
func WriteText(w io.Writer, results []model.AlgoResult) error {
	bw := bufio.NewWriter(w)
	for i, r := range results {
		if i > 0 && r.Sweep != results[i-1].Sweep {
			fmt.Fprintln(bw, separator)
		}
		if i == 0 || r.Sweep != results[i-1].Sweep || r.N != results[i-1].N || r.K != results[i-1].K {
			fmt.Fprintf(bw, "N=%d, K=%d\n", r.N, r.K)
		}
		fmt.Fprintf(bw, "%s Average distance (km)=%s, Load standard deviation=%s",
			Label(r.Algorithm), formatFloat(r.Latency), formatFloat(r.Workload))
		if r.Optimal != nil && !*r.Optimal {
			fmt.Fprintf(bw, " (not proven optimal, gap=%s)", formatFloat(r.Gap))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

var csvHeader = []string{"sweep", "n", "k", "algorithm", "trials", "latency_km", "workload_std", "elapsed_ms", "optimal", "gap"}

// WriteCSV emits one row per result.
func WriteCSV(w io.Writer, results []model.AlgoResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		optimal := ""
		if r.Optimal != nil {
			optimal = strconv.FormatBool(*r.Optimal)
		}
		row := []string{
			strconv.Itoa(r.Sweep),
			strconv.Itoa(r.N),
			strconv.Itoa(r.K),
			r.Algorithm,
			strconv.Itoa(r.Trials),
			strconv.FormatFloat(r.Latency, 'f', -1, 64),
			strconv.FormatFloat(r.Workload, 'f', -1, 64),
			strconv.FormatInt(r.ElapsedMs, 10),
			optimal,
			strconv.FormatFloat(r.Gap, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat prints the shortest representation that round-trips, always
// with a fractional part.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
