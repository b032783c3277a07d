package utils

import (
	"errors"
	"testing"

	"terarelay/internal"
)

func TestShareLinkValidator_Normalize(t *testing.T) {
	validator := NewShareLinkValidator()

	tests := []struct {
		name        string
		url         string
		expectError bool
		wantSurl    string
	}{
		{
			name:     "path_form",
			url:      "https://terabox.com/s/1AbC123",
			wantSurl: "AbC123",
		},
		{
			name:     "path_form_www",
			url:      "https://www.terabox.com/s/1AbC123",
			wantSurl: "AbC123",
		},
		{
			name:     "query_form_wap",
			url:      "https://www.terabox.app/wap/share/filelist?surl=ABC123",
			wantSurl: "ABC123",
		},
		{
			name:     "query_form_sharing",
			url:      "https://terabox.com/sharing/link?surl=XyZ_9-8",
			wantSurl: "XyZ_9-8",
		},
		{
			name:     "mirror_domain",
			url:      "https://1024terabox.com/s/1abcdef",
			wantSurl: "abcdef",
		},
		{
			name:     "regional_subdomain",
			url:      "https://dm.terabox.app/s/1abcdef",
			wantSurl: "abcdef",
		},
		{
			name:     "http_scheme",
			url:      "http://terabox.com/s/1AbC123",
			wantSurl: "AbC123",
		},
		{
			name:     "surrounding_whitespace",
			url:      "  https://terabox.com/s/1AbC123  ",
			wantSurl: "AbC123",
		},
		{
			name:        "empty",
			url:         "",
			expectError: true,
		},
		{
			name:        "not_a_url",
			url:         "definitely not a url",
			expectError: true,
		},
		{
			name:        "wrong_scheme",
			url:         "ftp://terabox.com/s/1AbC123",
			expectError: true,
		},
		{
			name:        "unknown_domain",
			url:         "https://example.com/s/1AbC123",
			expectError: true,
		},
		{
			name:        "lookalike_domain",
			url:         "https://faketerabox.com/s/1AbC123",
			expectError: true,
		},
		{
			name:        "no_share_token",
			url:         "https://terabox.com/about",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := validator.Normalize(tt.url)

			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for %q, got none", tt.url)
				}
				var re *internal.ResolveError
				if !errors.As(err, &re) {
					t.Fatalf("expected *ResolveError, got %T", err)
				}
				if re.Kind != internal.KindInvalidLink {
					t.Errorf("expected KindInvalidLink, got %v", re.Kind)
				}
				if re.Soft() {
					t.Errorf("invalid link must be a hard failure")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.url, err)
			}
			if link.Surl != tt.wantSurl {
				t.Errorf("surl = %q, want %q", link.Surl, tt.wantSurl)
			}
			if link.ShortURL() != "1"+tt.wantSurl {
				t.Errorf("shorturl = %q, want %q", link.ShortURL(), "1"+tt.wantSurl)
			}
		})
	}
}

func TestShareLinkValidator_NormalizeIsDeterministic(t *testing.T) {
	validator := NewShareLinkValidator()
	url := "https://www.terabox.app/wap/share/filelist?surl=ABC123"

	first, err := validator.Normalize(url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := validator.Normalize(url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("normalization not deterministic: %+v vs %+v", first, second)
	}
}
