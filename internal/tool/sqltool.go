package tool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLDataSource opens a database/sql connection for the configured
// driver ("sqlite3", "postgres", "mysql"), grounded on the teacher's
// v2/rag.SQLSource ("direct port from legacy pkg/context/indexing/
// sql_source.go") which wires the same three drivers behind
// database/sql blank imports.
func OpenSQLDataSource(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "sqlite3", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("sqltool: unsupported driver %q (want sqlite3, postgres, or mysql)", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqltool: opening %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqltool: pinging %s: %w", driver, err)
	}
	return db, nil
}

// isReadOnlyQuery is the SELECT-only guardrail: the sql_query tool
// never accepts a write statement, since specialists only read the
// dataset corpus (spec.md's tool catalog has no write-back tool).
func isReadOnlyQuery(q string) bool {
	trimmed := strings.TrimSpace(strings.ToUpper(q))
	return strings.HasPrefix(trimmed, "SELECT") || strings.HasPrefix(trimmed, "WITH")
}

// NewSQLQueryDescriptor builds the sql_query tool over an opened
// database/sql handle, bounding result size to maxRows (spec.md §4.2
// "Non-goals" scope this engine out of write access entirely).
func NewSQLQueryDescriptor(db *sql.DB, maxRows int) Descriptor {
	if maxRows <= 0 {
		maxRows = 500
	}
	return Descriptor{
		Name:             "sql_query",
		HumanDescription: "Runs a read-only SQL query against the configured dataset database and returns rows as a table.",
		ParameterSchema: &ParameterSchema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]*ParameterSchema{
				"query": {Type: "string", Description: "A SELECT (or read-only WITH) statement."},
			},
		},
		CapabilitySet: []string{"sql", "dataset_read"},
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			query, _ := args["query"].(string)
			if !isReadOnlyQuery(query) {
				return Result{Success: false, Summary: "only SELECT/WITH statements are permitted"}, nil
			}

			rows, err := db.QueryContext(ctx, query)
			if err != nil {
				return Result{Success: false, Summary: fmt.Sprintf("query failed: %s", err)}, nil
			}
			defer rows.Close()

			cols, err := rows.Columns()
			if err != nil {
				return Result{}, err
			}

			var records []map[string]any
			for rows.Next() && len(records) < maxRows {
				values := make([]any, len(cols))
				ptrs := make([]any, len(cols))
				for i := range values {
					ptrs[i] = &values[i]
				}
				if err := rows.Scan(ptrs...); err != nil {
					return Result{}, err
				}
				record := make(map[string]any, len(cols))
				for i, c := range cols {
					record[c] = normalizeSQLValue(values[i])
				}
				records = append(records, record)
			}
			if err := rows.Err(); err != nil {
				return Result{}, err
			}

			return Result{
				Success: true,
				Summary: fmt.Sprintf("returned %d row(s)", len(records)),
				Data:    map[string]any{"columns": cols, "rows": records},
			}, nil
		},
	}
}

// normalizeSQLValue converts driver-specific byte-slice text results
// (sqlite3/mysql both return []byte for TEXT columns) into plain strings
// so the Environment/tool-result JSON stays readable.
func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
