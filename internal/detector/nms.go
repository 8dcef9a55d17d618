package detector

import (
	"image"
	"slices"
)

// DefaultOverlap is the IoU above which a lower scoring candidate is suppressed
const DefaultOverlap = 0.3

// Suppress performs greedy non-maximum suppression on the candidates of one
// template. Candidates are ranked by similarity with a stable sort, so equal
// scores keep their scan order. Each accepted candidate discards every
// remaining one whose IoU with it is strictly greater than overlap.
// The input slice is not modified.
func Suppress(candidates []Candidate, overlap float64) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, bySimilarityDesc)

	suppressed := make([]bool, len(ranked))
	var kept []Candidate
	for i := range ranked {
		if suppressed[i] {
			continue
		}
		kept = append(kept, ranked[i])
		box := ranked[i].Box()
		for j := i + 1; j < len(ranked); j++ {
			if !suppressed[j] && IoU(box, ranked[j].Box()) > overlap {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// IoU returns the intersection-over-union of two rectangles, 0 when either
// is empty.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
