// Package dedup finds groups of near-duplicate images by scoring every
// unordered pair of candidates against a similarity threshold.
package dedup

import (
	"errors"
	"fmt"
)

// ErrIncomparable is returned by a Scorer when at least one image of a pair
// could not be decoded. The pair is skipped; it is not evidence either way.
var ErrIncomparable = errors.New("images cannot be compared")

// Scorer computes the similarity of two images as a fraction in [0, 1].
type Scorer interface {
	Score(pathA, pathB string) (float64, error)
}

// Progress receives grouping checkpoints. Outer fires once per candidate,
// Inner once per pair scored against the current candidate. Implementations
// must not block; they exist only for reporting.
type Progress interface {
	Outer(done, total int)
	Inner(done, total int)
}

// NopProgress discards all checkpoints.
type NopProgress struct{}

func (NopProgress) Outer(done, total int) {}
func (NopProgress) Inner(done, total int) {}

const (
	// MinThreshold and MaxThreshold bound the similarity threshold.
	MinThreshold = 0.1
	MaxThreshold = 1.0
)

// ClampThreshold forces t into [MinThreshold, MaxThreshold].
func ClampThreshold(t float64) float64 {
	if t < MinThreshold {
		return MinThreshold
	}
	if t > MaxThreshold {
		return MaxThreshold
	}
	return t
}

// Group is an ordered set of paths judged mutually similar. Order is
// discovery order; a group held by a GroupList always has at least two
// members.
type Group struct {
	Paths []string
}

// Contains reports whether the group holds path.
func (g *Group) Contains(path string) bool {
	for _, p := range g.Paths {
		if p == path {
			return true
		}
	}
	return false
}

// Grouper runs the pairwise duplicate sweep.
type Grouper struct {
	scorer    Scorer
	threshold float64
	progress  Progress
}

// NewGrouper builds a Grouper. The threshold is clamped to the valid range
// and progress may be nil.
func NewGrouper(scorer Scorer, threshold float64, progress Progress) *Grouper {
	if progress == nil {
		progress = NopProgress{}
	}
	return &Grouper{
		scorer:    scorer,
		threshold: ClampThreshold(threshold),
		progress:  progress,
	}
}

// Threshold returns the clamped threshold the sweep uses.
func (g *Grouper) Threshold() float64 {
	return g.threshold
}

// Run sweeps every unordered pair of paths (upper-triangular, in slice
// order) and merges qualifying pairs into groups. A score exactly equal to
// the threshold counts as a duplicate. Pairs whose score is incomparable are
// skipped. An empty result means nothing to review, not an error.
func (g *Grouper) Run(paths []string) ([]*Group, error) {
	var groups []*Group
	total := len(paths)
	for i, outer := range paths {
		g.progress.Outer(i, total)
		rest := paths[i+1:]
		for j, inner := range rest {
			g.progress.Inner(j, len(rest))
			score, err := g.scorer.Score(outer, inner)
			if err != nil {
				if errors.Is(err, ErrIncomparable) {
					continue
				}
				return nil, fmt.Errorf("scoring %s against %s: %w", outer, inner, err)
			}
			if score >= g.threshold {
				groups = addPair(groups, outer, inner)
			}
		}
	}
	g.progress.Outer(total, total)
	g.progress.Inner(0, 0)
	return groups, nil
}

// addPair unions a qualifying pair into the group list by membership: the
// first existing group containing either path absorbs the other path, unless
// that path is already grouped elsewhere. Two groups are never merged, so a
// pair spanning two existing groups changes nothing.
func addPair(groups []*Group, pathA, pathB string) []*Group {
	groupA, groupB := -1, -1
	for i, group := range groups {
		if groupA == -1 && group.Contains(pathA) {
			groupA = i
		}
		if groupB == -1 && group.Contains(pathB) {
			groupB = i
		}
	}
	switch {
	case groupA == -1 && groupB == -1:
		return append(groups, &Group{Paths: []string{pathA, pathB}})
	case groupA != -1 && groupB == -1:
		groups[groupA].Paths = append(groups[groupA].Paths, pathB)
	case groupA == -1 && groupB != -1:
		groups[groupB].Paths = append(groups[groupB].Paths, pathA)
	}
	return groups
}
