// Package placement chooses edge server sites among candidate base stations and
// scores the result.
//
// Every strategy satisfies the Placer interface: PlaceServer(n, k) considers n
// demand points (selected by a Sampling policy), opens k of them as server
// sites and assigns each considered point to exactly one site. The two
// objectives are then read from the stored placement:
//   - ObjectiveLatency: mean km from a point to its site
//   - ObjectiveWorkload: population standard deviation of the summed workload
//     of the points served by each site
//
// # Strategies
//
//   - Exact: p-median branch-and-bound with a time/node budget. The result is
//     flagged in Stats when the budget ran out before optimality was proven.
//   - KMeans: k-means over coordinates; each cluster is served by the member
//     nearest its centroid.
//   - TopK: the k busiest sites by workload (or user count), nearest-site
//     assignment.
//   - Random: k uniformly sampled sites, nearest-site assignment.
//
// KMeans and Random draw from their own *rand.Rand, so trials can run in
// parallel as long as each trial uses its own placer. The demand points and
// distance matrix handed to the constructors are never modified.
package placement
