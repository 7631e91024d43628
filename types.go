package sqlgate

// QueryRequest is the input of Execute. Params are bound positionally using
// the backend's placeholder syntax and are not checked against the query.
type QueryRequest struct {
	Query  string `json:"query"`
	Params []any  `json:"params,omitempty"`
}

// OutcomeKind tags which shape of QueryResponse is populated.
type OutcomeKind int

const (
	// OutcomeRead: Data, Columns and Message are set.
	OutcomeRead OutcomeKind = iota + 1
	// OutcomeWrite: RowsAffected and Message are set.
	OutcomeWrite
	// OutcomeDenied: the query was refused before reaching the database.
	OutcomeDenied
	// OutcomeFailed: the database or the pipeline reported an error.
	OutcomeFailed
	// OutcomeUnavailable: no database connection could be obtained.
	OutcomeUnavailable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRead:
		return "read"
	case OutcomeWrite:
		return "write"
	case OutcomeDenied:
		return "denied"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// QueryResponse is the output of Execute. Every failure is reported in
// Error; Execute never returns a Go error. Unused shape fields encode as
// null (data, columns, rows_affected) or are omitted (message, error).
type QueryResponse struct {
	Kind         OutcomeKind      `json:"-"`
	Success      bool             `json:"success"`
	Data         []map[string]any `json:"data"`
	Columns      []string         `json:"columns"`
	RowsAffected *int64           `json:"rows_affected"`
	Message      string           `json:"message,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// TableEntry is one table or view of the current database.
type TableEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "table" or "view"
}

// ListTablesOutput is the output of ListTables. Tables holds the names in
// catalog order; Details carries the same entries with their type.
type ListTablesOutput struct {
	Success bool         `json:"success"`
	Tables  []string     `json:"tables"`
	Count   int          `json:"count"`
	Details []TableEntry `json:"details"`
}

// DescribeTableInput is the input of DescribeTable.
type DescribeTableInput struct {
	Table string `json:"table"`
}

// ColumnInfo describes one column in the shape of MySQL's DESCRIBE output.
type ColumnInfo struct {
	Field   string  `json:"Field"`
	Type    string  `json:"Type"`
	Null    string  `json:"Null"` // "YES" or "NO"
	Key     string  `json:"Key"`  // "PRI", "UNI", "MUL" or ""
	Default *string `json:"Default"`
	Extra   string  `json:"Extra"`
}

// DescribeTableOutput is the output of DescribeTable.
type DescribeTableOutput struct {
	Success   bool         `json:"success"`
	TableName string       `json:"table_name"`
	Columns   []ColumnInfo `json:"columns"`
	RowCount  int64        `json:"row_count"`
}

// RowsOutput carries the rows of a fixed read query.
type RowsOutput struct {
	Success bool             `json:"success"`
	Data    []map[string]any `json:"data"`
	Count   int              `json:"count"`
}

// GenderCount is one group of the gender distribution.
type GenderCount struct {
	Gender string `json:"gender"`
	Count  int64  `json:"count"`
}

// Stats summarizes the employees database.
type Stats struct {
	TotalEmployees     int64         `json:"total_employees"`
	TotalDepartments   int64         `json:"total_departments"`
	AverageSalary      *float64      `json:"average_salary"` // null when no current salaries
	GenderDistribution []GenderCount `json:"gender_distribution"`
}

// StatsOutput is the output of Stats.
type StatsOutput struct {
	Success bool  `json:"success"`
	Stats   Stats `json:"stats"`
}

// HealthOutput is the output of Health.
type HealthOutput struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
