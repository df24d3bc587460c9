// Package cluster groups scattered items into density-based clusters.
package cluster

import (
	"github.com/cory-johannsen/vanguard/internal/game/geom"
)

// Group is one cluster produced by DBSCAN.
type Group[T any] struct {
	// Centroid is the arithmetic mean of member positions.
	Centroid geom.Point
	Members  []T
}

// DBSCAN clusters items by position.
//
// An item is a seed when at least minPoints other items lie within eps of it.
// Clusters grow by transitive inclusion of seed neighborhoods. Items not
// reachable from any seed become singleton groups. Items for which pos reports
// false are dropped before clustering.
//
// Postcondition: every positioned item appears in exactly one returned group,
// in input order within the group.
func DBSCAN[T any](items []T, pos func(T) (geom.Point, bool), eps float64, minPoints int) []Group[T] {
	type entry struct {
		item T
		p    geom.Point
	}
	entries := make([]entry, 0, len(items))
	for _, it := range items {
		if p, ok := pos(it); ok {
			entries = append(entries, entry{item: it, p: p})
		}
	}

	const unassigned = -1
	label := make([]int, len(entries))
	for i := range label {
		label[i] = unassigned
	}

	eps2 := eps * eps
	neighbors := func(i int) []int {
		var out []int
		for j := range entries {
			if j != i && entries[i].p.Dist2(entries[j].p) <= eps2 {
				out = append(out, j)
			}
		}
		return out
	}

	clusters := 0
	for i := range entries {
		if label[i] != unassigned {
			continue
		}
		seed := neighbors(i)
		if len(seed) < minPoints {
			continue
		}
		id := clusters
		clusters++
		label[i] = id
		queue := append([]int(nil), seed...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if label[j] != unassigned {
				continue
			}
			label[j] = id
			if next := neighbors(j); len(next) >= minPoints {
				queue = append(queue, next...)
			}
		}
	}

	groups := make([]Group[T], clusters)
	points := make([][]geom.Point, clusters)
	for i, e := range entries {
		if label[i] == unassigned {
			groups = append(groups, Group[T]{Centroid: e.p, Members: []T{e.item}})
			continue
		}
		groups[label[i]].Members = append(groups[label[i]].Members, e.item)
		points[label[i]] = append(points[label[i]], e.p)
	}
	for id := range points {
		groups[id].Centroid, _ = geom.Centroid(points[id])
	}
	return groups
}

// Representatives returns, for each group, the member nearest its centroid.
// Members without a position are skipped; groups with none are omitted.
func Representatives[T any](groups []Group[T], pos func(T) (geom.Point, bool)) []T {
	out := make([]T, 0, len(groups))
	for _, g := range groups {
		var (
			best  T
			bestD = -1.0
		)
		for _, m := range g.Members {
			p, ok := pos(m)
			if !ok {
				continue
			}
			if d := p.Dist2(g.Centroid); bestD < 0 || d < bestD {
				best, bestD = m, d
			}
		}
		if bestD >= 0 {
			out = append(out, best)
		}
	}
	return out
}

// Nearest returns the index of the group whose centroid is closest to p
// within maxDist, or -1.
func Nearest[T any](groups []Group[T], p geom.Point, maxDist float64) int {
	best, bestD := -1, maxDist
	for i, g := range groups {
		if d := g.Centroid.Dist(p); d <= bestD {
			best, bestD = i, d
		}
	}
	return best
}
