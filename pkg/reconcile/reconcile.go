// Package reconcile decides which copy of a set of identical files to keep.
package reconcile

import (
	"sort"
	"time"

	"github.com/quidome/media-tidy/pkg/dupes"
)

// Action describes what should happen for a file in a duplicate cluster.
type Action string

const (
	ActionKeep      Action = "keep"
	ActionRedundant Action = "redundant"
)

// Decision describes what should happen for a given file.
type Decision struct {
	Path        string
	Action      Action
	DuplicateOf string
	Size        int64
}

// CreatedAtFunc returns the capture time of path, or the zero time if unknown.
type CreatedAtFunc func(path string) time.Time

// Clusters groups confirmed duplicates with the file they duplicate. Every
// cluster is sorted; clusters are ordered by their first path.
func Clusters(duplicates []dupes.Duplicate) [][]string {
	members := make(map[string][]string)
	for _, d := range duplicates {
		if _, ok := members[d.DuplicateOf]; !ok {
			members[d.DuplicateOf] = []string{d.DuplicateOf}
		}
		members[d.DuplicateOf] = append(members[d.DuplicateOf], d.Path)
	}

	clusters := make([][]string, 0, len(members))
	for _, paths := range members {
		sort.Strings(paths)
		clusters = append(clusters, paths)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i][0] < clusters[j][0] })
	return clusters
}

// Decide keeps the oldest file of every duplicate cluster and marks the rest
// redundant. Files without a known capture time count as newest; ties go to
// the lexicographically smallest path.
func Decide(duplicates []dupes.Duplicate, createdAt CreatedAtFunc) []Decision {
	sizes := make(map[string]int64, len(duplicates))
	for _, d := range duplicates {
		sizes[d.Path] = d.Size
		sizes[d.DuplicateOf] = d.Size
	}

	var decisions []Decision
	for _, cluster := range Clusters(duplicates) {
		keep := pickOldest(cluster, createdAt)
		decisions = append(decisions, Decision{Path: keep, Action: ActionKeep, Size: sizes[keep]})
		for _, p := range cluster {
			if p == keep {
				continue
			}
			decisions = append(decisions, Decision{Path: p, Action: ActionRedundant, DuplicateOf: keep, Size: sizes[p]})
		}
	}
	return decisions
}

// pickOldest expects paths sorted.
func pickOldest(paths []string, createdAt CreatedAtFunc) string {
	best := ""
	bestTime := time.Time{}
	for _, p := range paths {
		var t time.Time
		if createdAt != nil {
			t = createdAt(p)
		}
		if t.IsZero() {
			continue
		}
		if best == "" || t.Before(bestTime) {
			best = p
			bestTime = t
		}
	}
	if best != "" {
		return best
	}
	return paths[0]
}
