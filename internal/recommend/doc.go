// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package recommend contains the recommendation engine: it fans candidate
// generation out across the collaborative, content-based and popularity
// strategies, fuses their scores, hydrates content metadata, hands the list
// to the ranking stage, and caches the assembled result.
//
// Strategy failures are isolated: a strategy that errors or panics
// contributes nothing and the remaining strategies still serve the request.
// The subpackages implement the individual stages; this package only
// depends on their interfaces, wired together in cmd/server.
package recommend
