package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func seedSalesDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening seed database: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE sales (
			model TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			units_sold INTEGER NOT NULL,
			region TEXT NOT NULL,
			powertrain TEXT NOT NULL
		)`,
		`INSERT INTO sales VALUES ('RAV4 HEV', 2024, 1, 120, 'West', 'hybrid')`,
		`INSERT INTO sales VALUES ('RAV4 HEV', 2024, 2, 140, 'West', 'hybrid')`,
		`INSERT INTO sales VALUES ('Corolla', 2024, 1, 90, 'East', 'gas')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seeding sales database: %v", err)
		}
	}
	return path
}

func TestSalesQuery(t *testing.T) {
	sales, err := OpenSales(seedSalesDB(t))
	if err != nil {
		t.Fatalf("OpenSales: %v", err)
	}
	defer sales.Close()

	res, err := sales.Query(context.Background(),
		"SELECT model, SUM(units_sold) AS total FROM sales WHERE model = 'RAV4 HEV' GROUP BY model", 50)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(res.Rows))
	}
	if res.Rows[0][0] != "RAV4 HEV" || res.Rows[0][1] != "260" {
		t.Errorf("row = %v, want [RAV4 HEV 260]", res.Rows[0])
	}
}

func TestSalesQueryTruncation(t *testing.T) {
	sales, err := OpenSales(seedSalesDB(t))
	if err != nil {
		t.Fatalf("OpenSales: %v", err)
	}
	defer sales.Close()

	res, err := sales.Query(context.Background(), "SELECT model FROM sales", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("len(rows) = %d, want 2", len(res.Rows))
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
}

// TestSalesWriteRejected verifies the second line of defense: the read-only
// connection refuses writes even when handed one directly.
func TestSalesWriteRejected(t *testing.T) {
	sales, err := OpenSales(seedSalesDB(t))
	if err != nil {
		t.Fatalf("OpenSales: %v", err)
	}
	defer sales.Close()

	if _, err := sales.db.Exec("DELETE FROM sales"); err == nil {
		t.Fatal("write on read-only connection succeeded")
	}
}

func TestQueryResultFormat(t *testing.T) {
	res := &QueryResult{
		Columns: []string{"model", "total"},
		Rows:    [][]string{{"RAV4 HEV", "260"}},
	}
	got := res.Format()
	want := "model | total\nRAV4 HEV | 260"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	empty := &QueryResult{Columns: []string{"model"}}
	if empty.Format() != "(no rows)" {
		t.Errorf("empty Format() = %q, want (no rows)", empty.Format())
	}
}
