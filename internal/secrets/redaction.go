// Package secrets scrubs credentials from strings before they are logged.
package secrets

import (
	"net/url"
	"regexp"
	"strings"
)

const replacement = "[REDACTED]"

// Redactor provides redaction of sensitive data in logs and outputs
type Redactor struct {
	patterns    []*regexp.Regexp
	replacement string
}

// NewRedactor creates a new redactor with default sensitive patterns
func NewRedactor() *Redactor {
	defaultPatterns := []string{
		// Connection strings with inline credentials
		`(?i)(postgres(?:ql)?|redis|rediss)://[^:/\s]+:[^@\s]+@`,
		// key=value pairs in DSNs and query strings
		`(?i)\b(password|api[_-]?key|token|secret)=[^\s&'"]+`,
		`(?i)bearer\s+[a-zA-Z0-9\-\._~\+/]+=*`,
		// JWT tokens
		`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
	}

	patterns := make([]*regexp.Regexp, len(defaultPatterns))
	for i, pattern := range defaultPatterns {
		patterns[i] = regexp.MustCompile(pattern)
	}
	return &Redactor{patterns: patterns, replacement: replacement}
}

var defaultRedactor = NewRedactor()

// RedactString replaces every credential-looking span in input.
func (r *Redactor) RedactString(input string) string {
	result := input
	for i, pattern := range r.patterns {
		switch i {
		case 0:
			result = pattern.ReplaceAllString(result, "${1}://"+r.replacement+"@")
		case 1:
			result = pattern.ReplaceAllString(result, "${1}="+r.replacement)
		default:
			result = pattern.ReplaceAllString(result, r.replacement)
		}
	}
	return result
}

// RedactURL hides the password and any sensitive query parameters of raw.
// Unparseable input falls back to pattern redaction.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return defaultRedactor.RedactString(raw)
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), replacement)
	}
	q := u.Query()
	changed := false
	for k := range q {
		if IsSensitiveKey(k) {
			q.Set(k, replacement)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	out := u.String()
	// url.String escapes the brackets of the placeholder.
	out = strings.ReplaceAll(out, url.QueryEscape(replacement), replacement)
	return strings.ReplaceAll(out, url.PathEscape(replacement), replacement)
}

// Redact applies the default patterns to s.
func Redact(s string) string {
	return defaultRedactor.RedactString(s)
}

// IsSensitiveKey checks if a key name suggests sensitive content
func IsSensitiveKey(key string) bool {
	sensitiveKeys := []string{
		"password", "pwd", "secret", "token", "key", "auth", "dsn", "bearer",
	}
	lowerKey := strings.ToLower(key)
	for _, sensitiveKey := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitiveKey) {
			return true
		}
	}
	return false
}
