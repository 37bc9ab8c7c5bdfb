package model

import (
	"errors"
	"testing"
)

// TestParsePlatform_KnownValues は既知のプラットフォームが変換されることを検証する。
func TestParsePlatform_KnownValues(t *testing.T) {
	for _, s := range []string{"twitter", "instagram", "facebook"} {
		p, err := ParsePlatform(s)
		if err != nil {
			t.Fatalf("ParsePlatform(%q) returned error: %v", s, err)
		}
		if p.String() != s {
			t.Errorf("ParsePlatform(%q) = %q", s, p)
		}
	}
}

// TestParsePlatform_UnknownValue は未知の値でINVALID_PLATFORMが返ることを検証する。
func TestParsePlatform_UnknownValue(t *testing.T) {
	for _, s := range []string{"", "myspace", "Twitter", " twitter"} {
		_, err := ParsePlatform(s)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("ParsePlatform(%q): expected APIError, got %v", s, err)
		}
		if apiErr.Code != ErrCodeInvalidPlatform {
			t.Errorf("ParsePlatform(%q): code = %q, want %q", s, apiErr.Code, ErrCodeInvalidPlatform)
		}
	}
}

func TestPlatforms_AllValid(t *testing.T) {
	ps := Platforms()
	if len(ps) != 3 {
		t.Fatalf("len(Platforms()) = %d, want 3", len(ps))
	}
	for _, p := range ps {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
}

// TestPost_HasLiked はいいね済み判定を検証する。
func TestPost_HasLiked(t *testing.T) {
	p := &Post{Likes: []string{"user-1", "user-2"}}
	if !p.HasLiked("user-2") {
		t.Error("expected user-2 to have liked")
	}
	if p.HasLiked("user-3") {
		t.Error("expected user-3 not to have liked")
	}
}
