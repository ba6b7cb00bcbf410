// Package logging holds helpers for scrubbing sensitive material out of log
// output. Query text, connection strings, and driver errors all pass through
// here before reaching a zap field.
package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength bounds how much of a statement is ever logged.
	MaxQueryLogLength = 120
	// RedactedText replaces any value identified as sensitive.
	RedactedText = "[REDACTED]"
)

var (
	// password=..., pwd=..., pass=... pairs in key/value connection strings.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in URL-style DSNs (postgres://u:p@host/db).
	urlCredsPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// user:pass@tcp(host:port) in mysql DSNs.
	mysqlCredsPattern = regexp.MustCompile(`[^:/\s]+:[^@\s]+@(tcp|unix)\(`)

	// API keys in key=value form.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey)=[A-Za-z0-9-_]{16,}`)

	// Bearer tokens (three dot-separated base64url segments).
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)
)

// SanitizeDSN scrubs credentials from a connection string before logging.
// Handles URL-style (postgres, mssql) and mysql driver DSN forms.
func SanitizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	s := passwordPattern.ReplaceAllString(dsn, "${1}="+RedactedText)
	s = urlCredsPattern.ReplaceAllString(s, "://"+RedactedText+"@"+RedactedText)
	s = mysqlCredsPattern.ReplaceAllString(s, RedactedText+"@${1}(")
	return s
}

// SanitizeError scrubs driver and HTTP client errors, which can echo back
// connection strings, tokens, or key material.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	s := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = urlCredsPattern.ReplaceAllString(s, "://"+RedactedText+"@"+RedactedText)
	return s
}

// TruncateQuery bounds a statement for logging. Audit records keep the full
// length as a separate field; the text itself is cut at MaxQueryLogLength.
func TruncateQuery(query string) string {
	s := passwordPattern.ReplaceAllString(query, "${1}="+RedactedText)
	if len(s) > MaxQueryLogLength {
		return s[:MaxQueryLogLength] + "..."
	}
	return s
}
