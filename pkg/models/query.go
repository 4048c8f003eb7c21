package models

// QueryResult holds rows returned by an ad-hoc query or a table preview.
type QueryResult struct {
	Query   string              `json:"query,omitempty"`
	Columns []QueryResultColumn `json:"columns"`
	Rows    []map[string]any    `json:"rows"`
}

// QueryResultColumn describes a column of a QueryResult.
type QueryResultColumn struct {
	Field       string `json:"field"`
	DisplayName string `json:"displayName,omitempty"`
	DataType    string `json:"dataType"`
	TableName   string `json:"tableName,omitempty"`
	Index       int    `json:"index"`
}

// RowCount returns the number of rows in the result.
func (r *QueryResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}
