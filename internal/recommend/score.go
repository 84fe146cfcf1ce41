// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package recommend

import (
	"math"
	"time"
)

// PopularityScore maps engagement counters onto [0, 1] on a log scale.
// Likes weigh five times heavier than views; the divisor puts typical
// catalog items in the middle of the range.
func PopularityScore(views, likes int64) float64 {
	if views < 0 {
		views = 0
	}
	if likes < 0 {
		likes = 0
	}
	s := (math.Log1p(float64(views)) + 5*math.Log1p(float64(likes))) / 20
	if s > 1 {
		return 1
	}
	return s
}

// FreshnessScore decays exponentially with content age, halving roughly
// every 17 hours with the default 24h scale. A zero publish time means the
// age is unknown and scores a neutral 0.5.
func FreshnessScore(publishTime, now time.Time, decayHours float64) float64 {
	if publishTime.IsZero() {
		return 0.5
	}
	if decayHours <= 0 {
		decayHours = 24
	}
	age := now.Sub(publishTime).Hours()
	if age < 0 {
		age = 0
	}
	return math.Exp(-age / decayHours)
}
