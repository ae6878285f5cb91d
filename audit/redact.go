package audit

import "regexp"

// piiPattern pairs a compiled regex with a replacement label.
type piiPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// Redactor masks contact and identity details in message content before it
// is summarized into a record.
type Redactor struct {
	patterns []piiPattern
}

// NewRedactor returns a Redactor over the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: []piiPattern{
		{
			regex:       regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
			replacement: "[EMAIL REDACTED]",
		},
		{
			// XXX-XX-XXXX
			regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			replacement: "[SSN REDACTED]",
		},
		{
			// 13-19 digits, optionally separated by spaces or dashes
			regex:       regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`),
			replacement: "[CARD REDACTED]",
		},
		{
			// (XXX) XXX-XXXX, XXX-XXX-XXXX, +1XXXXXXXXXX
			regex:       regexp.MustCompile(`(?:\+1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
			replacement: "[PHONE REDACTED]",
		},
	}}
}

// Mask replaces every match with its label.
func (r *Redactor) Mask(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}
