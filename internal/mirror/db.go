// Package mirror is a self-hosted implementation of the remote endpoint
// contract, backed by a SQLite table instead of a spreadsheet.
//
// Rows keep the spreadsheet's column set plus a customFields column holding
// the record's custom field map as JSON text. Rows are listed newest first,
// the same order the store keeps.
package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Columns is the stored column set, in order. id is always first.
var Columns = []string{
	"id",
	"company",
	"role",
	"status",
	"dateApplied",
	"lastUpdated",
	"link",
	"notes",
	"nextAction",
	"nextActionDate",
	"salary",
	"location",
	"contacts",
	CustomFieldsColumn,
}

// CustomFieldsColumn holds a JSON object of custom field values.
const CustomFieldsColumn = "customFields"

var (
	// ErrExists is returned when inserting a row whose id is taken.
	ErrExists = errors.New("id already exists")

	// ErrNotFound is returned when updating or deleting an unknown id.
	ErrNotFound = errors.New("job id not found")
)

// Row is one stored record keyed by column name.
type Row map[string]string

// DB holds the mirror rows.
type DB struct {
	conn *sql.DB

	// Serializes find-then-write sequences, like the sheet's script lock.
	mu sync.Mutex
}

// Open opens or creates the mirror database at path. Use ":memory:" for
// a throwaway database.
func Open(path string) (*DB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and writes ordered.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := conn.Exec(schema()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create jobs table: %w", err)
	}
	if err := addMissingColumns(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

// addMissingColumns upgrades tables created before a column existed.
func addMissingColumns(conn *sql.DB) error {
	rows, err := conn.Query("SELECT name FROM pragma_table_info('jobs')")
	if err != nil {
		return fmt.Errorf("failed to read jobs columns: %w", err)
	}
	have := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to read jobs columns: %w", err)
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read jobs columns: %w", err)
	}

	for _, c := range Columns {
		if have[c] {
			continue
		}
		if _, err := conn.Exec(fmt.Sprintf("ALTER TABLE jobs ADD COLUMN %q TEXT NOT NULL DEFAULT ''", c)); err != nil {
			return fmt.Errorf("failed to add column %s: %w", c, err)
		}
	}
	return nil
}

func schema() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS jobs (\n\tseq INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, c := range Columns {
		fmt.Fprintf(&b, ",\n\t%q TEXT NOT NULL DEFAULT ''", c)
	}
	b.WriteString(",\n\tUNIQUE(\"id\")\n);")
	return b.String()
}

func quotedColumns() string {
	q := make([]string, len(Columns))
	for i, c := range Columns {
		q[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(q, ", ")
}

// All returns every row, most recently inserted first.
func (d *DB) All(ctx context.Context) ([]Row, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT "+quotedColumns()+" FROM jobs ORDER BY seq DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		vals := make([]string, len(Columns))
		ptrs := make([]any, len(Columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r := make(Row, len(Columns))
		for i, c := range Columns {
			r[c] = vals[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Insert appends a row. Columns missing from r are stored empty.
func (d *DB) Insert(ctx context.Context, r Row) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	exists, err := d.exists(ctx, r["id"])
	if err != nil {
		return err
	}
	if exists {
		return ErrExists
	}

	args := make([]any, len(Columns))
	marks := make([]string, len(Columns))
	for i, c := range Columns {
		args[i] = r[c]
		marks[i] = "?"
	}
	_, err = d.conn.ExecContext(ctx,
		"INSERT INTO jobs ("+quotedColumns()+") VALUES ("+strings.Join(marks, ", ")+")", args...)
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

// Update overwrites the columns present in fields and leaves the rest.
// Keys that are not columns are ignored.
func (d *DB) Update(ctx context.Context, id string, fields Row) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	exists, err := d.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	var sets []string
	var args []any
	for _, c := range Columns {
		v, ok := fields[c]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%q = ?", c))
		args = append(args, v)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err = d.conn.ExecContext(ctx, "UPDATE jobs SET "+strings.Join(sets, ", ")+` WHERE "id" = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update row %s: %w", id, err)
	}
	return nil
}

// Delete removes the row with id.
func (d *DB) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.conn.ExecContext(ctx, `DELETE FROM jobs WHERE "id" = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete row %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE "id" = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", id, err)
	}
	return n > 0, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = d.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.conn = nil
	return nil
}
