// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package store

import (
	"strings"

	json "github.com/goccy/go-json"
)

// ParseTags decodes a stored tag payload into a normalized tag list.
// Payloads are JSON string arrays; as a fallback, bare comma-separated text
// is accepted because early imports wrote tags unquoted. Malformed payloads
// degrade to an empty list with a non-nil error so callers can log and
// continue rather than fail the request.
func ParseTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, err
		}
		return normalizeTags(tags), nil
	}

	return normalizeTags(strings.Split(raw, ",")), nil
}

// EncodeTags serializes a tag list to its storage form.
func EncodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
