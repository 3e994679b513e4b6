package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// salesColumns is the required CSV header, in any order.
var salesColumns = []string{"model", "year", "month", "units_sold", "region", "powertrain"}

const createSalesTable = `
CREATE TABLE IF NOT EXISTS sales (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model TEXT NOT NULL,
	year INTEGER NOT NULL,
	month INTEGER NOT NULL,
	units_sold INTEGER NOT NULL,
	region TEXT NOT NULL,
	powertrain TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sales_model_year ON sales(model, year);
`

// LoadSalesCSV creates the sales table at dbPath if needed and loads every
// row from the CSV file. Returns the number of rows inserted. This is the
// only code path that opens the sales database writable.
func LoadSalesCSV(ctx context.Context, dbPath, csvPath string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("reading csv header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return 0, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("opening sales database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createSalesTable); err != nil {
		return 0, fmt.Errorf("creating sales table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sales (model, year, month, units_sold, region, powertrain) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("reading csv line %d: %w", line, err)
		}

		year, err := strconv.Atoi(strings.TrimSpace(row[idx["year"]]))
		if err != nil {
			return 0, fmt.Errorf("line %d: invalid year %q", line, row[idx["year"]])
		}
		month, err := strconv.Atoi(strings.TrimSpace(row[idx["month"]]))
		if err != nil || month < 1 || month > 12 {
			return 0, fmt.Errorf("line %d: invalid month %q", line, row[idx["month"]])
		}
		units, err := strconv.Atoi(strings.TrimSpace(row[idx["units_sold"]]))
		if err != nil || units < 0 {
			return 0, fmt.Errorf("line %d: invalid units_sold %q", line, row[idx["units_sold"]])
		}

		_, err = stmt.ExecContext(ctx,
			strings.TrimSpace(row[idx["model"]]),
			year,
			month,
			units,
			strings.TrimSpace(row[idx["region"]]),
			strings.TrimSpace(row[idx["powertrain"]]),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting line %d: %w", line, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing sales load: %w", err)
	}
	return inserted, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, want := range salesColumns {
		if _, ok := idx[want]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", want)
		}
	}
	return idx, nil
}
