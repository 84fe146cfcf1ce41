// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

package store

import (
	"reflect"
	"testing"
)

func TestParseContentType(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   ContentType
		wantOK bool
	}{
		{name: "article", input: "article", want: ContentTypeArticle, wantOK: true},
		{name: "image", input: "image", want: ContentTypeImage, wantOK: true},
		{name: "video", input: "video", want: ContentTypeVideo, wantOK: true},
		{name: "unknown corpus", input: "podcast", wantOK: false},
		{name: "empty", input: "", wantOK: false},
		{name: "case sensitive", input: "Article", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseContentType(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseContentType(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseContentType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBehaviorTypeStrength(t *testing.T) {
	tests := []struct {
		behavior BehaviorType
		want     float64
	}{
		{BehaviorView, 1.0},
		{BehaviorLike, 3.0},
		{BehaviorCollect, 5.0},
		{BehaviorShare, 4.0},
		{BehaviorComment, 3.0},
		{BehaviorType(0), 0.0},
		{BehaviorType(99), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.behavior.String(), func(t *testing.T) {
			if got := tt.behavior.Strength(); got != tt.want {
				t.Errorf("Strength(%d) = %v, want %v", tt.behavior, got, tt.want)
			}
		})
	}
}

func TestBehaviorTypeValid(t *testing.T) {
	for b := BehaviorView; b <= BehaviorComment; b++ {
		if !b.Valid() {
			t.Errorf("Valid(%d) = false, want true", b)
		}
	}
	if BehaviorType(0).Valid() {
		t.Error("Valid(0) = true, want false")
	}
	if BehaviorType(6).Valid() {
		t.Error("Valid(6) = true, want false")
	}
}

func TestContentTypeHasQualityModel(t *testing.T) {
	if !ContentTypeArticle.HasQualityModel() {
		t.Error("article should carry a quality model")
	}
	if ContentTypeImage.HasQualityModel() || ContentTypeVideo.HasQualityModel() {
		t.Error("image and video must not carry a quality model")
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "json array", raw: `["tech","golang"]`, want: []string{"tech", "golang"}},
		{name: "empty payload", raw: "", want: nil},
		{name: "null payload", raw: "null", want: nil},
		{name: "empty array", raw: "[]", want: nil},
		{name: "comma fallback", raw: "tech, life", want: []string{"tech", "life"}},
		{name: "dedupes and trims", raw: `[" tech","tech","","life"]`, want: []string{"tech", "life"}},
		{name: "malformed json degrades", raw: `["tech"`, want: nil, wantErr: true},
		{name: "wrong element type degrades", raw: `[1,2]`, want: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTags(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTags(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTags(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEncodeTagsRoundTrip(t *testing.T) {
	in := []string{"tech", "golang", "distributed"}
	raw, err := EncodeTags(in)
	if err != nil {
		t.Fatalf("EncodeTags() error = %v", err)
	}
	out, err := ParseTags(raw)
	if err != nil {
		t.Fatalf("ParseTags() error = %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}

	empty, err := EncodeTags(nil)
	if err != nil {
		t.Fatalf("EncodeTags(nil) error = %v", err)
	}
	if empty != "[]" {
		t.Errorf("EncodeTags(nil) = %q, want %q", empty, "[]")
	}
}

func TestUserProfileIsActiveAt(t *testing.T) {
	p := &UserProfile{ActivePeriods: []int{9, 12, 21}}
	if !p.IsActiveAt(12) {
		t.Error("IsActiveAt(12) = false, want true")
	}
	if p.IsActiveAt(3) {
		t.Error("IsActiveAt(3) = true, want false")
	}
	empty := &UserProfile{}
	if empty.IsActiveAt(12) {
		t.Error("empty profile should not report active hours")
	}
}
