package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SalesDB is a read-only handle to the sales database. The connection is
// opened with mode=ro and query_only, so even a statement that slipped past
// validation cannot modify data.
type SalesDB struct {
	db *sql.DB
}

// OpenSales opens the sales database read-only.
func OpenSales(path string) (*SalesDB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening sales database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sales database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting query_only: %w", err)
	}

	return &SalesDB{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SalesDB) Close() error {
	return s.db.Close()
}

// QueryResult holds the rows returned by a sales query, rendered as strings.
type QueryResult struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// Query runs a validated SELECT and returns at most maxRows rows.
func (s *SalesDB) Query(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := &QueryResult{Columns: cols}
	values := make([]sql.NullString, len(cols))
	scanArgs := make([]interface{}, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return result, nil
}

// Format renders the result as a compact pipe-separated table for prompts
// and traces.
func (r *QueryResult) Format() string {
	if len(r.Rows) == 0 {
		return "(no rows)"
	}

	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	b.WriteByte('\n')
	for _, row := range r.Rows {
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	if r.Truncated {
		b.WriteString("(additional rows omitted)\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
