package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIdentifier_Clean(t *testing.T) {
	for _, value := range []string{"", "public", "orders", "orders_v2", "laptop computers"} {
		assert.Nil(t, CheckIdentifier("table", value), "value %q", value)
	}
}

func TestCheckIdentifier_Injection(t *testing.T) {
	f := CheckIdentifier("table", "'; DROP TABLE users--")

	require.NotNil(t, f)
	assert.Equal(t, FindingInjection, f.Kind)
	assert.Equal(t, "table", f.Subject)
	assert.NotEmpty(t, f.Fingerprint)
}

func TestCheckIdentifiers(t *testing.T) {
	findings := CheckIdentifiers(map[string]string{
		"schema": "public",
		"table":  "' OR '1'='1",
	})

	require.Len(t, findings, 1)
	assert.Equal(t, "table", findings[0].Subject)
}

func TestCheckQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantHits int
	}{
		{"empty", "", 0},
		{"single statement", "SELECT * FROM orders", 0},
		{"trailing semicolon", "SELECT 1;  ", 0},
		{"semicolon in single quotes", "SELECT * FROM t WHERE name = 'a;b'", 0},
		{"semicolon in double quotes", `SELECT * FROM "odd;name"`, 0},
		{"doubled quote escape", "SELECT * FROM t WHERE name = 'O''Brien'", 0},
		{"backslash escape", `SELECT * FROM t WHERE name = 'it\'s;fine'`, 0},
		{"two statements", "SELECT 1; SELECT 2", 1},
		{"stacked drop", "SELECT 1; DROP TABLE orders;", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := CheckQuery(tt.query)
			assert.Len(t, findings, tt.wantHits)
			for _, f := range findings {
				assert.Equal(t, FindingMultipleStatements, f.Kind)
			}
		})
	}
}

func TestStripTrailingSemicolon(t *testing.T) {
	assert.Equal(t, "SELECT 1", StripTrailingSemicolon("  SELECT 1 ;\n"))
	assert.Equal(t, "SELECT 1", StripTrailingSemicolon("SELECT 1"))
	assert.Equal(t, "", StripTrailingSemicolon(";"))
}
