// Package dedupe collapses near-duplicate restaurant mentions into clusters and
// reduces each cluster to a single canonical entity.
package dedupe

import "github.com/elonfeng/foodbuzz/pkg/fuzzy"

// DefaultThreshold is the minimum token-set similarity (0-100) for a mention to
// join a cluster.
const DefaultThreshold = 88

// SimilarityFunc scores two names on a 0-100 scale. It must be symmetric.
type SimilarityFunc func(a, b string) float64

// Cluster is a group of mention indices believed to name the same restaurant.
type Cluster struct {
	// Base is the index every other member was compared against.
	Base int
	// Members lists indices in scan order, starting with Base.
	Members []int
}

// ClusterNames partitions the indices of names into clusters in a single greedy
// pass. The first unvisited index opens a cluster as its base; every later
// unvisited index whose similarity to the base is >= threshold joins it.
//
// Candidates are compared with the base only, never with members already
// added, so two members of one cluster need not be similar to each other.
// The result depends on input order: callers must pass names in a stable order
// to get reproducible clusters.
func ClusterNames(names []string, threshold float64, sim SimilarityFunc) []Cluster {
	if sim == nil {
		sim = fuzzy.TokenSetRatio
	}

	visited := make([]bool, len(names))
	var clusters []Cluster

	for i := range names {
		if visited[i] {
			continue
		}
		visited[i] = true
		c := Cluster{Base: i, Members: []int{i}}

		// Every index before i is already visited.
		for j := i + 1; j < len(names); j++ {
			if visited[j] {
				continue
			}
			if sim(names[i], names[j]) >= threshold {
				visited[j] = true
				c.Members = append(c.Members, j)
			}
		}

		clusters = append(clusters, c)
	}

	return clusters
}
