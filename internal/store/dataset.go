package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/franz/order-recon/internal/table"
)

// ErrNoDataset is returned by Load when nothing has been saved yet
var ErrNoDataset = errors.New("no dataset saved")

// Dataset persists the combined table. Save replaces whatever was stored.
type Dataset interface {
	Save(ctx context.Context, t *table.Table) error
	Load(ctx context.Context) (*table.Table, error)
}

// Save replaces the stored dataset with t in a single transaction
func (s *Store) Save(ctx context.Context, t *table.Table) error {
	columns := t.Columns()
	if len(columns) == 0 {
		return fmt.Errorf("cannot save dataset %q: no columns", t.Name())
	}

	// SQLite column names are case-insensitive
	seen := make(map[string]string, len(columns))
	for _, c := range columns {
		folded := strings.ToLower(c)
		if prev, ok := seen[folded]; ok {
			return fmt.Errorf("%w: %q and %q differ only in case", table.ErrColumnCollision, prev, c)
		}
		seen[folded] = c
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c)
		if typ := columnType(t, i); typ != "" {
			defs[i] += " " + typ
		}
	}

	name := quoteIdent(datasetTable)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	return s.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("failed to drop dataset table: %w", err)
		}
		create := fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("failed to create dataset table: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", name, placeholders))
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		args := make([]interface{}, len(columns))
		for i := 0; i < t.Len(); i++ {
			for j, v := range t.Row(i) {
				args[j] = v.Interface()
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", i, err)
			}
		}
		return nil
	})
}

// Load reads the stored dataset back, columns in saved order
func (s *Store) Load(ctx context.Context) (*table.Table, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name=?
	`, datasetTable).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNoDataset
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(datasetTable)+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t, err := table.New(datasetTable, columns)
	if err != nil {
		return nil, err
	}

	raw := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]table.Value, len(columns))
		for i, x := range raw {
			row[i] = table.FromInterface(x)
		}
		if err := t.Append(row); err != nil {
			return nil, err
		}
	}
	return t, rows.Err()
}

// columnType picks the declared type for column i from the kinds it holds.
// Mixed or all-null columns stay untyped so each value keeps its storage class.
func columnType(t *table.Table, col int) string {
	var ints, floats, strs int
	for i := 0; i < t.Len(); i++ {
		switch t.Row(i)[col].Kind() {
		case table.Int:
			ints++
		case table.Float:
			floats++
		case table.String:
			strs++
		}
	}
	switch {
	case strs > 0 && ints+floats > 0:
		return ""
	case strs > 0:
		return "TEXT"
	case floats > 0:
		return "REAL"
	case ints > 0:
		return "INTEGER"
	default:
		return ""
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
