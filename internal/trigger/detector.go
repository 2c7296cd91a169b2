// Package trigger decides whether an inbound message qualifies for
// enrichment.
package trigger

import (
	"regexp"
	"strings"
)

// profileURLPattern matches LinkedIn people-profile URLs. Handles are
// letters, digits, hyphen, underscore and percent-encoding, with an optional
// trailing slash.
var profileURLPattern = regexp.MustCompile(`(?i)https?://(?:www\.)?linkedin\.com/in/[A-Za-z0-9\-_%]+/?`)

// Detector matches messages that carry both a profile URL and the configured
// trigger keyword. It is a pure function over the message text.
type Detector struct {
	keyword string
}

// NewDetector creates a detector for the given keyword. Matching is
// case-insensitive.
func NewDetector(keyword string) *Detector {
	return &Detector{keyword: strings.ToLower(keyword)}
}

// Match returns the first profile URL in text, verbatim, and whether the
// message qualifies. When the text contains no URL the keyword is not
// checked; keyword-only messages never qualify. Additional URLs beyond the
// first are ignored.
func (d *Detector) Match(text string) (string, bool) {
	url := profileURLPattern.FindString(text)
	if url == "" {
		return "", false
	}

	if !strings.Contains(strings.ToLower(text), d.keyword) {
		return url, false
	}

	return url, true
}
