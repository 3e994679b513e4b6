package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the application SQLite database: rate-limit counters and the
// document vector table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the application database in dataDir and runs
// pending migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "askbridge.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// DB exposes the underlying handle for packages that share this database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Rate-limit counters ---

// IncrementUsage atomically records one interaction for the identifier on the
// given day, unless the count already reached limit. It returns the count
// after the call and whether the interaction was admitted. The check and the
// increment happen in one transaction so concurrent requests cannot both
// claim the last slot.
func (s *Store) IncrementUsage(ctx context.Context, identifier, day string, limit int) (int, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("beginning usage transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		"SELECT interaction_count FROM rate_limit WHERE identifier = ? AND day = ?",
		identifier, day,
	).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("reading usage: %w", err)
	}

	if count >= limit {
		return count, false, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rate_limit (identifier, day, interaction_count, last_interaction_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(identifier, day) DO UPDATE SET
			interaction_count = interaction_count + 1,
			last_interaction_at = excluded.last_interaction_at`,
		identifier, day, now,
	); err != nil {
		return 0, false, fmt.Errorf("incrementing usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing usage: %w", err)
	}
	return count + 1, true, nil
}

// Usage returns the interaction count for the identifier on the given day.
// A missing row reads as zero.
func (s *Store) Usage(ctx context.Context, identifier, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT interaction_count FROM rate_limit WHERE identifier = ? AND day = ?",
		identifier, day,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading usage: %w", err)
	}
	return count, nil
}

// ResetUsage deletes the identifier's counter for the given day.
func (s *Store) ResetUsage(ctx context.Context, identifier, day string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM rate_limit WHERE identifier = ? AND day = ?", identifier, day)
	if err != nil {
		return fmt.Errorf("resetting usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UsageStats returns all counters for the given day, busiest callers first.
func (s *Store) UsageStats(ctx context.Context, day string) ([]UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, day, interaction_count, last_interaction_at
		FROM rate_limit WHERE day = ? ORDER BY interaction_count DESC`, day)
	if err != nil {
		return nil, fmt.Errorf("querying usage stats: %w", err)
	}
	defer rows.Close()

	var results []UsageRecord
	for rows.Next() {
		var r UsageRecord
		var last string
		if err := rows.Scan(&r.Identifier, &r.Day, &r.InteractionCount, &last); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, last)
		if err != nil {
			return nil, fmt.Errorf("parsing last_interaction_at: %w", err)
		}
		r.LastInteractionAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}
