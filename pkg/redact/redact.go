// Package redact scrubs sensitive-looking substrings out of free text before
// it reaches a log sink. It is pattern-based defense in depth, not the primary
// privacy control: receipts already exclude payload content by construction.
package redact

import "regexp"

// Placeholders written in place of matched tokens.
const (
	PANPlaceholder    = "[PAN_REDACTED]"
	CVVPlaceholder    = "[CVV_REDACTED]"
	ExpiryPlaceholder = "[EXPIRY_REDACTED]"
	EmailPlaceholder  = "[EMAIL_REDACTED]"
)

// Rule pairs a pattern with its replacement. Replacement may use capture
// group references ($1 etc.).
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Redactor applies an ordered set of redaction rules to text. The zero value
// redacts nothing; use Default for the standard card-data and email rules.
type Redactor struct {
	rules []Rule
}

// New builds a Redactor from explicit rules. Exact pattern boundaries (PAN
// digit range, CVV adjacency) are product configuration, so callers may
// supply their own set instead of Default.
func New(rules ...Rule) *Redactor {
	return &Redactor{rules: rules}
}

// Default returns a Redactor with the standard rules:
//   - PAN: a 13–19 digit run
//   - CVV: 3–4 digits adjacent to a case-insensitive "cvv" marker
//     (the marker itself is kept)
//   - Expiry: an MM/YY token
//   - Email: an email-shaped token
func Default() *Redactor {
	return New(
		Rule{regexp.MustCompile(`\b\d{13,19}\b`), PANPlaceholder},
		Rule{regexp.MustCompile(`(?i)(cvv[:\s]*|card[:\s]*verification[:\s]*value[:\s]*)(\d{3,4})\b`), "${1}" + CVVPlaceholder},
		Rule{regexp.MustCompile(`\b\d{2}/\d{2}\b`), ExpiryPlaceholder},
		Rule{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), EmailPlaceholder},
	)
}

// Redact replaces every occurrence of every rule's pattern. Text without
// matches is returned unchanged; empty input is fine.
func (r *Redactor) Redact(s string) string {
	if r == nil || s == "" {
		return s
	}
	for _, rule := range r.rules {
		s = rule.Pattern.ReplaceAllString(s, rule.Replacement)
	}
	return s
}
