package models

import "strings"

// TableDescriptor is derived from a backend "schema.table" string for
// display and search. It is never persisted.
type TableDescriptor struct {
	Schema        string `json:"schema"`
	TableName     string `json:"tableName"`
	FullName      string `json:"fullName"`
	FullNameLower string `json:"fullNameLower"`
}

// ParseTableDescriptor splits fullName at its first ".", so a table name
// that itself contains dots is kept whole ("public.orders.v2" yields schema
// "public", table "orders.v2"). A name without a dot has no schema.
func ParseTableDescriptor(fullName string) TableDescriptor {
	schema, table, found := strings.Cut(fullName, ".")
	if !found {
		schema, table = "", fullName
	}
	return TableDescriptor{
		Schema:        schema,
		TableName:     table,
		FullName:      fullName,
		FullNameLower: strings.ToLower(fullName),
	}
}

// Matches reports whether query is a case-insensitive substring of the full name.
func (t TableDescriptor) Matches(query string) bool {
	return strings.Contains(t.FullNameLower, strings.ToLower(query))
}

// TableSchema describes a table as reported by the backend.
type TableSchema struct {
	Name        string  `json:"name"`
	SchemaName  string  `json:"schemaName"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
}

// Field is a column of a TableSchema.
type Field struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	NativeDataType  string `json:"nativeDataType"`
	DerivedDataType string `json:"derivedDataType,omitempty"`
	PrimaryKey      bool   `json:"primaryKey"`
	Nullable        bool   `json:"nullable"`
	Precision       *int   `json:"precision,omitempty"`
	Scale           *int   `json:"scale,omitempty"`
}
