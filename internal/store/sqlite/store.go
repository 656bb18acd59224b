// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	_ "modernc.org/sqlite"

	"github.com/staranto/tennisbet/internal/store"
)

// columnsTable records the Go kind of every column so ReadAll can hand back
// bools and times rather than their SQLite storage classes.
const columnsTable = "_tennisbet_columns"

// indexPrefix keeps created_at indexes out of the table namespace.
const indexPrefix = "_tennisbet_idx_"

func init() {
	store.Register("", open)
	store.Register("sqlite", open)
}

func open(_ context.Context, location string) (store.TableStore, error) {
	return Open(location)
}

// Store is a SQLite-backed store.TableStore. Each cached table is a real SQL
// table whose schema is inferred from the rows of the last Replace.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(`
CREATE TABLE IF NOT EXISTS ` + columnsTable + ` (
	tbl  TEXT NOT NULL,
	col  TEXT NOT NULL,
	kind TEXT NOT NULL,
	pos  INTEGER NOT NULL,
	PRIMARY KEY (tbl, col)
)`); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure column metadata: %w", err)
	}

	log.Debugf("opened sqlite store %s", cleanPath)
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := s.ready(ctx, name); err != nil {
		return false, err
	}
	var one int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return true, nil
}

// MaxCreatedAt is answered from the created_at index; rows are never loaded.
func (s *Store) MaxCreatedAt(ctx context.Context, name string) (string, error) {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", name, store.ErrNotFound)
	}

	var createdAt sql.NullString
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT MAX(`+quote(store.CreatedAtColumn)+`) FROM `+quote(name)).Scan(&createdAt)
	if err != nil {
		return "", fmt.Errorf("read created_at of %s: %w", name, err)
	}
	if !createdAt.Valid {
		return "", fmt.Errorf("%s has no rows: %w", name, store.ErrNotFound)
	}
	return createdAt.String, nil
}

func (s *Store) ReadAll(ctx context.Context, name string) (store.Rows, error) {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, store.ErrNotFound)
	}

	cols, err := s.columns(ctx, name)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quote(c.name)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+strings.Join(names, ", ")+` FROM `+quote(name)+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer rows.Close()

	result := store.Rows{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}

		row := make(store.Row, len(cols))
		for i, c := range cols {
			v, err := decode(c.kind, values[i])
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", name, c.name, err)
			}
			row[c.name] = v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return result, nil
}

// Replace drops and recreates name inside a single transaction. SQLite DDL is
// transactional, so a failure at any step leaves the previous table intact.
func (s *Store) Replace(ctx context.Context, name string, rows store.Rows) (err error) {
	if err := s.ready(ctx, name); err != nil {
		return err
	}

	cols, err := inferSchema(rows)
	if err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quote(c.name) + " " + affinityOf(c.kind)
		names[i] = quote(c.name)
		marks[i] = "?"
	}

	stmts := []string{
		`DROP TABLE IF EXISTS ` + quote(name),
		`CREATE TABLE ` + quote(name) + ` (` + strings.Join(defs, ", ") + `)`,
		`CREATE INDEX ` + quote(indexPrefix+name) + ` ON ` + quote(name) + ` (` + quote(store.CreatedAtColumn) + `)`,
	}
	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("replace %s: %w", name, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM `+columnsTable+` WHERE tbl = ?`, name); err != nil {
		return fmt.Errorf("replace %s metadata: %w", name, err)
	}
	for i, c := range cols {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO `+columnsTable+` (tbl, col, kind, pos) VALUES (?, ?, ?, ?)`,
			name, c.name, string(c.kind), i); err != nil {
			return fmt.Errorf("replace %s metadata: %w", name, err)
		}
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO `+quote(name)+` (`+strings.Join(names, ", ")+`) VALUES (`+strings.Join(marks, ", ")+`)`)
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", name, err)
	}
	defer insert.Close()

	for n, row := range rows {
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = encode(row[c.name])
		}
		if _, err = insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", name, n, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace %s: %w", name, err)
	}

	log.Debugf("replaced %s with %d rows", name, len(rows))
	return nil
}

func (s *Store) Tables(ctx context.Context) ([]store.TableInfo, error) {
	if s == nil || s.sqlDB == nil {
		return nil, store.ErrStoreNotAvailable
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != ?
ORDER BY name`, columnsTable)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	infos := make([]store.TableInfo, 0, len(names))
	for _, name := range names {
		info := store.TableInfo{Name: name}
		if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quote(name)).Scan(&info.Rows); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		createdAt, err := s.MaxCreatedAt(ctx, name)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			info.CreatedAt = createdAt
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *Store) ready(ctx context.Context, name string) error {
	if s == nil || s.sqlDB == nil {
		return store.ErrStoreNotAvailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return store.ValidateName(name)
}

type column struct {
	name string
	kind store.Kind
}

func (s *Store) columns(ctx context.Context, name string) ([]column, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT col, kind FROM `+columnsTable+` WHERE tbl = ? ORDER BY pos`, name)
	if err != nil {
		return nil, fmt.Errorf("read %s metadata: %w", name, err)
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var c column
		var kind string
		if err := rows.Scan(&c.name, &kind); err != nil {
			return nil, fmt.Errorf("scan %s metadata: %w", name, err)
		}
		c.kind = store.Kind(kind)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s metadata: %w", name, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s has no column metadata", name)
	}
	return cols, nil
}

// inferSchema derives one column per key across rows. The first non-null
// value fixes a column's kind; int and real widen to real, anything else
// mixed is rejected. created_at always exists so an empty fill still yields a
// queryable table.
func inferSchema(rows store.Rows) ([]column, error) {
	names := rows.Columns()
	if len(names) == 0 || names[len(names)-1] != store.CreatedAtColumn {
		names = append(names, store.CreatedAtColumn)
	}

	kinds := make(map[string]store.Kind, len(names))
	for _, row := range rows {
		for k, v := range row {
			kind, err := store.KindOf(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", k, err)
			}
			prev, seen := kinds[k]
			switch {
			case kind == store.KindNull:
			case !seen || prev == store.KindNull || prev == kind:
				kinds[k] = kind
			case (prev == store.KindInt && kind == store.KindReal) || (prev == store.KindReal && kind == store.KindInt):
				kinds[k] = store.KindReal
			default:
				return nil, fmt.Errorf("column %s mixes %s and %s: %w", k, prev, kind, store.ErrUnsupportedValue)
			}
		}
	}

	cols := make([]column, len(names))
	for i, n := range names {
		kind, ok := kinds[n]
		if !ok || kind == store.KindNull {
			kind = store.KindText
		}
		cols[i] = column{name: n, kind: kind}
	}
	return cols, nil
}

func encode(v any) any {
	switch v := v.(type) {
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case float32:
		return float64(v)
	default:
		return v
	}
}

func decode(kind store.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case store.KindBool:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("expected integer for bool, got %T", v)
		}
		return n != 0, nil
	case store.KindTime:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected text for time, got %T", v)
		}
		return time.Parse(time.RFC3339Nano, s)
	case store.KindReal:
		switch n := v.(type) {
		case int64:
			return float64(n), nil
		default:
			return n, nil
		}
	case store.KindText:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	default:
		return v, nil
	}
}

func affinityOf(k store.Kind) string {
	switch k {
	case store.KindInt, store.KindBool:
		return "INTEGER"
	case store.KindReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

var _ store.TableStore = (*Store)(nil)
