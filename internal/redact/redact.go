// Package redact scrubs secrets and personal contact details from free-text
// request notes before they are placed in a generation prompt.
package redact

import "regexp"

// Placeholder replaces every match.
const Placeholder = "[REDACTED]"

var patterns []*regexp.Regexp

func init() {
	raw := []string{
		// AWS access key IDs
		`AKIA[0-9A-Z]{16}`,
		// AWS secret access keys
		`(?i)(aws_secret_access_key|aws_secret)\s*[:=]\s*[A-Za-z0-9/+=]{40}`,
		// Private key blocks
		`-----BEGIN [A-Z ]+PRIVATE KEY-----[\s\S]*?-----END [A-Z ]+PRIVATE KEY-----`,
		// Bearer tokens
		`Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
		// Provider API keys
		`sk-(ant-)?[A-Za-z0-9_\-]{20,}`,
		`AIza[0-9A-Za-z_\-]{35}`,
		// Generic key/secret/token/password assignments
		`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|token|password|passwd|credentials)\s*[:=]\s*\S+`,
		// Email addresses
		`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
		// Phone numbers: +CC groups, or (NNN) NNN-NNNN style
		`\+\d{1,3}[\s.\-]?\(?\d{1,4}\)?([\s.\-]?\d{2,4}){2,4}`,
		`\(?\b\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`,
	}
	for _, r := range raw {
		patterns = append(patterns, regexp.MustCompile(r))
	}
}

// Redact replaces secret and contact patterns in text with [REDACTED].
func Redact(text string) string {
	out, _ := RedactCount(text)
	return out
}

// RedactCount is Redact that also reports how many matches were replaced.
func RedactCount(text string) (string, int) {
	n := 0
	for _, p := range patterns {
		n += len(p.FindAllStringIndex(text, -1))
		text = p.ReplaceAllString(text, Placeholder)
	}
	return text, n
}
