// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/danielhkuo/taiyo/admintable"
	"github.com/danielhkuo/taiyo/models"
)

// TableQuery selects one page of an admin table.
type TableQuery struct {
	Page   int
	Size   int
	Sort   string
	Desc   bool
	Search string
}

// TablePage returns one page of t. Search matches any column as text;
// Sort must name a column and is ignored otherwise. Rows are ordered by
// the table key after the requested sort.
func (s *Store) TablePage(ctx context.Context, t admintable.Table, q TableQuery) (*models.TablePage, error) {
	size := admintable.ClampSize(q.Size)
	page := max(q.Page, 1)
	table := pq.QuoteIdentifier(t.SQLName)

	var where string
	var args []any
	if q.Search != "" {
		clauses := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			clauses[i] = fmt.Sprintf("CAST(%s AS TEXT) LIKE $1", pq.QuoteIdentifier(c.Name))
		}
		where = " WHERE " + strings.Join(clauses, " OR ")
		args = append(args, "%"+q.Search+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", t.Name, err)
	}

	order := pq.QuoteIdentifier(t.Key)
	if c, ok := t.Column(q.Sort); ok {
		expr := pq.QuoteIdentifier(c.Name)
		if c.Kind == admintable.String {
			expr = "lower(" + expr + ")"
		}
		dir := " ASC"
		if q.Desc {
			dir = " DESC"
		}
		order = expr + dir + ", " + order
	}

	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY %s LIMIT %d OFFSET %d`,
		selectList(t), table, where, order, size, (page-1)*size)
	rows, err := s.selectMaps(ctx, t, query, args...)
	if err != nil {
		return nil, err
	}

	return &models.TablePage{
		Data:     rows,
		LastPage: max(1, (total+size-1)/size),
		Total:    total,
	}, nil
}

// AdminUpdate writes a row validated for update. The row carries the
// table key; every other field is assigned.
func (s *Store) AdminUpdate(ctx context.Context, t admintable.Table, row map[string]any) error {
	key, ok := row[t.Key]
	if !ok {
		return fmt.Errorf("row has no %s", t.Key)
	}

	cols, vals := columnsOf(row, t.Key)
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), i+2)
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $1`,
			pq.QuoteIdentifier(t.SQLName), strings.Join(sets, ", "), pq.QuoteIdentifier(t.Key)),
		append([]any{key}, vals...)...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", t.Name, err)
	}
	return expectRow(res)
}

// AdminInsert inserts a row validated for insert and returns its key.
func (s *Store) AdminInsert(ctx context.Context, t admintable.Table, row map[string]any) (any, error) {
	cols, vals := columnsOf(row, "")
	table := pq.QuoteIdentifier(t.SQLName)
	key := pq.QuoteIdentifier(t.Key)

	query := `INSERT INTO ` + table + ` DEFAULT VALUES RETURNING ` + key
	if len(cols) > 0 {
		quoted := make([]string, len(cols))
		params := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = pq.QuoteIdentifier(c)
			params[i] = fmt.Sprintf("$%d", i+1)
		}
		query = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
			table, strings.Join(quoted, ", "), strings.Join(params, ", "), key)
	}

	var inserted any
	if err := s.db.QueryRowContext(ctx, query, vals...).Scan(&inserted); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", t.Name, err)
	}
	if b, ok := inserted.([]byte); ok {
		inserted = string(b)
	}
	return inserted, nil
}

// AdminDelete removes the row whose table key equals key.
func (s *Store) AdminDelete(ctx context.Context, t admintable.Table, key string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, pq.QuoteIdentifier(t.SQLName), pq.QuoteIdentifier(t.Key)),
		key)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", t.Name, err)
	}
	return nil
}

// exportSheets maps each export sheet to its table and owner column.
var exportSheets = []struct {
	sheet, table, owner string
}{
	{"account", "accounts", "id"},
	{"devices", "devices", "user_id"},
	{"results", "results", "user_id"},
	{"binds", "binds", "user_id"},
}

// ExportSheet is one named sheet of a data export.
type ExportSheet struct {
	Name    string
	Columns []string
	Rows    []map[string]any
}

// ExportData collects everything stored for the account, one sheet per
// table, in the order the export workbook lists them.
func (s *Store) ExportData(ctx context.Context, accountID int64) ([]ExportSheet, error) {
	sheets := make([]ExportSheet, 0, len(exportSheets))
	for _, e := range exportSheets {
		t, ok := admintable.Lookup(e.table)
		if !ok {
			return nil, fmt.Errorf("unknown export table %s", e.table)
		}
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s`,
			selectList(t), pq.QuoteIdentifier(t.SQLName), pq.QuoteIdentifier(e.owner), pq.QuoteIdentifier(t.Key))
		rows, err := s.selectMaps(ctx, t, query, accountID)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, ExportSheet{Name: e.sheet, Columns: t.ColumnNames(), Rows: rows})
	}
	return sheets, nil
}

func selectList(t admintable.Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = pq.QuoteIdentifier(c.Name)
	}
	return strings.Join(cols, ", ")
}

// selectMaps runs a query selecting every column of t, in order, and
// returns the rows keyed by column name.
func (s *Store) selectMaps(ctx context.Context, t admintable.Table, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.Name, err)
	}
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(t.Columns))
		ptrs := make([]any, len(t.Columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.Name, err)
		}
		m := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			m[c.Name] = cellValue(c.Kind, vals[i])
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// cellValue turns a driver value into its JSON form for the grid.
func cellValue(kind admintable.Kind, v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		switch kind {
		case admintable.JSON:
			return json.RawMessage(append([]byte(nil), x...))
		case admintable.IntArray:
			var a pq.Int64Array
			if err := a.Scan(x); err == nil {
				return []int64(a)
			}
		}
		return string(x)
	}
	return v
}

// columnsOf splits row into sorted column names and driver values,
// skipping skip.
func columnsOf(row map[string]any, skip string) ([]string, []any) {
	cols := make([]string, 0, len(row))
	for c := range row {
		if c != skip {
			cols = append(cols, c)
		}
	}
	slices.Sort(cols)

	vals := make([]any, len(cols))
	for i, c := range cols {
		v := row[c]
		if a, ok := v.([]int64); ok {
			v = pq.Int64Array(a)
		}
		vals[i] = v
	}
	return cols, vals
}
