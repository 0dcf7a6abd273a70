package sanitizer

import "testing"

func TestSanitizeFreeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "trims surrounding whitespace",
			input:    "  how do I register a company?  ",
			expected: "how do I register a company?",
		},
		{
			name:     "collapses space runs",
			input:    "too   many    spaces",
			expected: "too many spaces",
		},
		{
			name:     "strips control characters",
			input:    "clean\x00 text\x1b here",
			expected: "clean text here",
		},
		{
			name:     "preserves paragraph break",
			input:    "first paragraph\n\nsecond paragraph",
			expected: "first paragraph\n\nsecond paragraph",
		},
		{
			name:     "collapses excessive newlines",
			input:    "first\n\n\n\n\nsecond",
			expected: "first\n\nsecond",
		},
		{
			name:     "normalizes CRLF",
			input:    "line one\r\nline two",
			expected: "line one\nline two",
		},
		{
			name:     "empty stays empty",
			input:    "",
			expected: "",
		},
		{
			name:     "keeps non-latin text",
			input:    "  أحتاج استشارة قانونية  ",
			expected: "أحتاج استشارة قانونية",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFreeText(tt.input); got != tt.expected {
				t.Errorf("SanitizeFreeText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeReason(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "flattens newlines",
			input:    "changed\nmy plans",
			expected: "changed my plans",
		},
		{
			name:     "trims and collapses",
			input:    "  no longer   needed ",
			expected: "no longer needed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeReason(tt.input); got != tt.expected {
				t.Errorf("SanitizeReason(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
