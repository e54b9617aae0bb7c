package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"keepsake/internal/logging"
)

// Insert adds one row and returns its row id. Structured values are encoded
// before binding. The row is not read back.
func (s *Store) Insert(ctx context.Context, table string, record Record) (int64, error) {
	info, err := s.table(ctx, "insert", table)
	if err != nil {
		return 0, err
	}
	stmt, args, err := buildInsert(info, record)
	if err != nil {
		return 0, s.reject(ctx, "insert", table, err)
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, s.fail(ctx, "insert", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, s.fail(ctx, "insert", table, fmt.Errorf("last insert id: %w", err))
	}
	return id, nil
}

// Fetch returns every row matching q.
func (s *Store) Fetch(ctx context.Context, table string, q Query) ([]Record, error) {
	return s.fetch(ctx, "fetch", table, q, 0)
}

// FetchOne returns the first row matching q, or nil when nothing matches.
func (s *Store) FetchOne(ctx context.Context, table string, q Query) (Record, error) {
	records, err := s.fetch(ctx, "fetch_one", table, q, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (s *Store) fetch(ctx context.Context, op, table string, q Query, limit int) ([]Record, error) {
	info, err := s.table(ctx, op, table)
	if err != nil {
		return nil, err
	}
	stmt, columns, args, err := buildSelect(info, q)
	if err != nil {
		return nil, s.reject(ctx, op, table, err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, s.fail(ctx, op, table, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		raw := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, s.fail(ctx, op, table, err)
		}
		record := make(Record, len(columns))
		for i, col := range columns {
			value, err := decodeValue(info.kinds[col], raw[i])
			if err != nil {
				return nil, s.fail(ctx, op, table, fmt.Errorf("decode %s: %w", col, err))
			}
			record[col] = value
		}
		records = append(records, record)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(ctx, op, table, err)
	}
	return records, nil
}

// FetchAsBool reads column from the first row matching where and coerces it
// to a boolean. Only the string "true" and the integer 1 are true. Values
// other than "true", "false", 1, and 0 are logged as errors and read as
// false. A missing row reads as false.
func (s *Store) FetchAsBool(ctx context.Context, table string, where Condition, column string) (bool, error) {
	info, err := s.table(ctx, "fetch_as_bool", table)
	if err != nil {
		return false, err
	}
	stmt, _, args, err := buildSelect(info, Query{Where: where, Columns: []string{column}, Extra: "LIMIT 1"})
	if err != nil {
		return false, s.reject(ctx, "fetch_as_bool", table, err)
	}
	var raw any
	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(ctx, "fetch_as_bool", table, err)
	}

	switch v := raw.(type) {
	case string:
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	case []byte:
		switch string(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	case int64:
		switch v {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
	}
	logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "unrecognised boolean value", "bool_coercion_failed",
		logging.String("table", table),
		logging.String("column", column),
		logging.String("value", fmt.Sprint(raw)),
		logging.String(logging.FieldErrorHint, `store "true"/"false" or 1/0`),
	)
	return false, nil
}

// Update sets values on every row matching q and returns the affected row
// count.
func (s *Store) Update(ctx context.Context, table string, values Record, q Query) (int64, error) {
	info, err := s.table(ctx, "update", table)
	if err != nil {
		return 0, err
	}
	stmt, args, err := buildUpdate(info, values, q)
	if err != nil {
		return 0, s.reject(ctx, "update", table, err)
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, s.fail(ctx, "update", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, s.fail(ctx, "update", table, err)
	}
	return affected, nil
}

// Delete removes rows matching where. With deleteAll the table is emptied;
// without it an empty condition is rejected.
func (s *Store) Delete(ctx context.Context, table string, where Condition, deleteAll bool) (int64, error) {
	info, err := s.table(ctx, "delete", table)
	if err != nil {
		return 0, err
	}
	stmt, args, err := buildDelete(info, where, deleteAll)
	if err != nil {
		return 0, s.reject(ctx, "delete", table, err)
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, s.fail(ctx, "delete", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, s.fail(ctx, "delete", table, err)
	}
	return affected, nil
}

// Count returns the number of rows matching where.
func (s *Store) Count(ctx context.Context, table string, where Condition) (int64, error) {
	info, err := s.table(ctx, "count", table)
	if err != nil {
		return 0, err
	}
	clause, args, err := info.renderWhere(where)
	if err != nil {
		return 0, s.reject(ctx, "count", table, err)
	}
	stmt := "SELECT COUNT(1) FROM " + quoteIdent(table)
	if clause != "" {
		stmt += " WHERE " + clause
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, s.fail(ctx, "count", table, err)
	}
	return count, nil
}
