package model

import (
	"database/sql"
	"fmt"
)

// ScanRows turns a result set into one map per row keyed by column name.
// Joined columns are selected as "<relation>.<column>", so the key keeps the
// path.
func ScanRows(rows *sql.Rows) ([]map[string]any, error) {
	if rows == nil {
		return nil, fmt.Errorf("rows is nil")
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, 64)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeScanned(vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
