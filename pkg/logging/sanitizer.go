// Package logging redacts credentials and trims SQL before they reach a log line.
package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter. JDBC URLs use ';' (SQL Server) or '&' (MySQL, PostgreSQL).
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Three base64 segments separated by dots
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// user:pass@host
	connStringPattern = regexp.MustCompile(`://[^:/@\s]+:[^@\s]+@`)

	// Oracle thin driver: jdbc:oracle:thin:user/pass@host
	oracleThinPattern = regexp.MustCompile(`(?i)(:thin:)[^/@\s]+/[^@\s]+@`)
)

// SanitizeConnectionString removes credentials from a JDBC or driver URL.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
	sanitized = oracleThinPattern.ReplaceAllString(sanitized, "${1}"+RedactedText+"@")

	return sanitized
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// Backend error bodies often echo the submitted connection URL.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := SanitizeConnectionString(err.Error())
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	return sanitized
}

// SanitizeQuery truncates and sanitizes a SQL query for logging
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := TruncateString(query, MaxQueryLogLength)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	return sanitized
}

// MaskPassword returns a fixed mask for a non-empty password.
func MaskPassword(password string) string {
	if password == "" {
		return ""
	}
	return "********"
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
