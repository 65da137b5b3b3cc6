package database

import "github.com/koustreak/relschema/internal/errs"

// ScanRows reads all rows from the result set and returns them as a slice
// of maps keyed by column name. Values are whatever the driver produced;
// callers that know the column types normalise them.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows.
func ScanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errQuery("failed to read column names", err)
	}

	result := make([]map[string]any, 0)

	for rows.Next() {
		row, err := scanInto(rows.Scan, columns)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, passThrough(err, "error during row iteration")
	}

	return result, nil
}

// ScanRow reads a single row and returns it as a map.
// A missing row surfaces as ErrKindNotFound when the driver reports it so.
func ScanRow(row Row, columns []string) (map[string]any, error) {
	return scanInto(row.Scan, columns)
}

func scanInto(scan func(dest ...any) error, columns []string) (map[string]any, error) {
	// Allocate scan targets as *any so the driver can write any type.
	dest := make([]any, len(columns))
	destPtrs := make([]any, len(columns))
	for i := range dest {
		destPtrs[i] = &dest[i]
	}

	if err := scan(destPtrs...); err != nil {
		return nil, passThrough(err, "failed to scan row")
	}

	out := make(map[string]any, len(columns))
	for i, col := range columns {
		out[col] = dest[i]
	}
	return out, nil
}

// passThrough keeps errors a driver already classified and wraps the rest.
func passThrough(err error, msg string) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	return errQuery(msg, err)
}
