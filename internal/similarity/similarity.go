// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package similarity implements the vector and set similarity measures the
// recommendation strategies score with. Vectors are sparse maps from feature
// key to weight; absent keys are zero. All functions are pure and safe for
// concurrent use.
package similarity

import (
	"math"
)

// Cosine returns the cosine similarity of two sparse vectors, computed over
// the intersection of their keys. Returns 0 when either vector is empty or
// has zero norm.
func Cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Iterate the smaller map for the dot product.
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	var dot float64
	for k, sv := range small {
		if lv, ok := large[k]; ok {
			dot += sv * lv
		}
	}
	if dot == 0 {
		return 0.0
	}

	na := norm(a)
	nb := norm(b)
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (na * nb)
}

// Jaccard returns the Jaccard index of two key sets: the ratio of the
// intersection size to the union size. Two empty sets are identical and
// score 1.0.
func Jaccard(a, b map[string]float64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// JaccardIDs is Jaccard over int64 ID sets, used for user neighborhoods
// keyed by interacted content.
func JaccardIDs(a, b map[int64]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Pearson returns the Pearson correlation of two sparse vectors over their
// common keys. Fewer than two common keys, or zero variance on either side,
// yields 0.
func Pearson(a, b map[string]float64) float64 {
	var xs, ys []float64
	for k, av := range a {
		if bv, ok := b[k]; ok {
			xs = append(xs, av)
			ys = append(ys, bv)
		}
	}
	n := len(xs)
	if n < 2 {
		return 0.0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0.0
	}
	return cov / math.Sqrt(varX*varY)
}

// Euclidean returns the Euclidean distance of two sparse vectors over the
// union of their keys.
func Euclidean(a, b map[string]float64) float64 {
	var sum float64
	for k, av := range a {
		d := av - b[k]
		sum += d * d
	}
	for k, bv := range b {
		if _, ok := a[k]; !ok {
			sum += bv * bv
		}
	}
	return math.Sqrt(sum)
}

// DistanceToSimilarity linearly maps a distance onto [0, 1] relative to
// maxDistance: 1 - distance/maxDistance, clamped. A non-positive
// maxDistance yields 0.
func DistanceToSimilarity(distance, maxDistance float64) float64 {
	if maxDistance <= 0 {
		return 0.0
	}
	s := 1.0 - distance/maxDistance
	if s < 0 {
		return 0.0
	}
	if s > 1 {
		return 1.0
	}
	return s
}

// Normalize scales a sparse vector to unit L2 norm, returning a new map.
// A zero-norm or empty vector is returned as an unscaled copy.
func Normalize(v map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(v))
	n := norm(v)
	if n == 0 {
		for k, val := range v {
			out[k] = val
		}
		return out
	}
	for k, val := range v {
		out[k] = val / n
	}
	return out
}

func norm(v map[string]float64) float64 {
	var sum float64
	for _, val := range v {
		sum += val * val
	}
	return math.Sqrt(sum)
}
