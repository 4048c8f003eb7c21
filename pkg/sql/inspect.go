// Package sql inspects SQL text and identifiers before they are placed in a
// request URL. Findings are advisory: callers log them and send the request anyway.
package sql

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// FindingKind classifies a Finding.
type FindingKind string

const (
	// FindingInjection means libinjection matched an SQL injection pattern.
	FindingInjection FindingKind = "sql_injection"
	// FindingMultipleStatements means a query holds more than one statement.
	FindingMultipleStatements FindingKind = "multiple_statements"
)

// Finding describes one suspicious input.
type Finding struct {
	Kind        FindingKind
	Subject     string // what was checked, e.g. "schema", "table", "query"
	Fingerprint string // libinjection fingerprint, empty for other kinds
}

// CheckIdentifier runs libinjection over an identifier such as a schema or
// table name. Returns nil when nothing matched.
func CheckIdentifier(subject, value string) *Finding {
	if value == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &Finding{
		Kind:        FindingInjection,
		Subject:     subject,
		Fingerprint: string(fingerprint),
	}
}

// CheckIdentifiers checks every subject/value pair and returns the matches.
func CheckIdentifiers(identifiers map[string]string) []Finding {
	var findings []Finding
	for subject, value := range identifiers {
		if f := CheckIdentifier(subject, value); f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}

// CheckQuery reports an ad-hoc query that carries more than one statement.
// A single trailing semicolon is allowed.
func CheckQuery(query string) []Finding {
	normalized := StripTrailingSemicolon(query)
	if normalized == "" || !hasSemicolonOutsideStrings(normalized) {
		return nil
	}
	return []Finding{{Kind: FindingMultipleStatements, Subject: "query"}}
}

// StripTrailingSemicolon trims whitespace and one trailing semicolon.
func StripTrailingSemicolon(query string) string {
	query = strings.TrimSpace(query)
	query = strings.TrimSuffix(query, ";")
	return strings.TrimRight(query, " \t\n\r")
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of quoted strings and identifiers. Handles both backslash (\')
// and doubled ('') quote escapes.
func hasSemicolonOutsideStrings(query string) bool {
	var quote rune
	var prev rune

	for _, ch := range query {
		switch {
		case quote == 0 && ch == ';':
			return true
		case quote == 0 && (ch == '\'' || ch == '"'):
			quote = ch
		case quote != 0 && ch == quote && prev != '\\':
			quote = 0
		}
		prev = ch
	}
	return false
}
