package imageutil

import (
	"fmt"
	"image"
	"strconv"

	"github.com/corona10/goimagehash"
)

// NearDuplicateDistance is the largest perceptual hash Hamming distance at
// which two reference icons are reported as near duplicates.
const NearDuplicateDistance = 6

// PerceptualHash returns the 64-bit DCT perceptual hash of img as 16 hex digits.
func PerceptualHash(img image.Image) (string, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("perceptual hash: %w", err)
	}
	return fmt.Sprintf("%016x", h.GetHash()), nil
}

// HashDistance returns the Hamming distance between two hashes produced by PerceptualHash.
func HashDistance(a, b string) (int, error) {
	ha, err := parseHash(a)
	if err != nil {
		return 0, err
	}
	hb, err := parseHash(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}

func parseHash(s string) (*goimagehash.ImageHash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid perceptual hash %q: %w", s, err)
	}
	return goimagehash.NewImageHash(v, goimagehash.PHash), nil
}
