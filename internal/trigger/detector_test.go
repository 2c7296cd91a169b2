package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectorMatch(t *testing.T) {
	d := NewDetector("enrich")

	tests := []struct {
		name      string
		text      string
		wantURL   string
		qualifies bool
	}{
		{
			name:      "url and keyword",
			text:      "please enrich https://linkedin.com/in/jane-doe",
			wantURL:   "https://linkedin.com/in/jane-doe",
			qualifies: true,
		},
		{
			name:      "url with www and trailing slash",
			text:      "enrich http://www.linkedin.com/in/jane_doe/",
			wantURL:   "http://www.linkedin.com/in/jane_doe/",
			qualifies: true,
		},
		{
			name:      "keyword case insensitive",
			text:      "ENRICH https://linkedin.com/in/jane",
			wantURL:   "https://linkedin.com/in/jane",
			qualifies: true,
		},
		{
			name:      "keyword inside another word",
			text:      "enrichment run https://linkedin.com/in/jane",
			wantURL:   "https://linkedin.com/in/jane",
			qualifies: true,
		},
		{
			name:      "url casing preserved",
			text:      "enrich HTTPS://LinkedIn.com/in/Jane-Doe",
			wantURL:   "HTTPS://LinkedIn.com/in/Jane-Doe",
			qualifies: true,
		},
		{
			name:      "url without keyword",
			text:      "check out https://linkedin.com/in/jane-doe",
			wantURL:   "https://linkedin.com/in/jane-doe",
			qualifies: false,
		},
		{
			name:      "keyword without url",
			text:      "enrich this for me",
			wantURL:   "",
			qualifies: false,
		},
		{
			name:      "company page is not a profile",
			text:      "enrich https://linkedin.com/company/acme",
			wantURL:   "",
			qualifies: false,
		},
		{
			name:      "empty text",
			text:      "",
			wantURL:   "",
			qualifies: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, ok := d.Match(tt.text)
			assert.Equal(t, tt.qualifies, ok)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}

func TestDetectorFirstURLWins(t *testing.T) {
	d := NewDetector("enrich")

	url, ok := d.Match("enrich https://linkedin.com/in/first and also https://linkedin.com/in/second")
	assert.True(t, ok)
	assert.Equal(t, "https://linkedin.com/in/first", url)
}

func TestDetectorCustomKeyword(t *testing.T) {
	d := NewDetector("lookup")

	_, ok := d.Match("enrich https://linkedin.com/in/jane")
	assert.False(t, ok)

	url, ok := d.Match("Lookup https://linkedin.com/in/jane")
	assert.True(t, ok)
	assert.Equal(t, "https://linkedin.com/in/jane", url)
}
