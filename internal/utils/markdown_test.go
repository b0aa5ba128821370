package utils

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		contains    []string
		notContains []string
	}{
		{
			name:     "emphasis",
			input:    "hello **world**",
			contains: []string{"<strong>world</strong>"},
		},
		{
			name:        "script stripped",
			input:       "hi <script>alert(1)</script>",
			notContains: []string{"<script>"},
		},
		{
			name:     "image enhanced",
			input:    "![cat](https://example.com/cat.png)",
			contains: []string{`loading="lazy"`, `referrerpolicy="no-referrer"`},
		},
		{
			name:     "external link gets nofollow",
			input:    "[site](https://example.com)",
			contains: []string{"nofollow", `target="_blank"`},
		},
		{
			name:     "youtube embed",
			input:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			contains: []string{"youtube-nocookie.com/embed/dQw4w9WgXcQ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderMarkdown(tt.input)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("RenderMarkdown(%q) = %q, missing %q", tt.input, got, want)
				}
			}
			for _, bad := range tt.notContains {
				if strings.Contains(got, bad) {
					t.Errorf("RenderMarkdown(%q) = %q, should not contain %q", tt.input, got, bad)
				}
			}
		})
	}

	if RenderMarkdown("") != "" {
		t.Error("empty input should render empty")
	}
}

func TestYouTubeIDRejectsJunk(t *testing.T) {
	if id := youTubeID(`https://youtu.be/abc"onload=x`); id != "" {
		t.Errorf("expected rejection, got %q", id)
	}
	if id := youTubeID("https://youtu.be/abc_DEF-1"); id != "abc_DEF-1" {
		t.Errorf("unexpected id %q", id)
	}
}
