package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"keepsake/internal/services"
)

// Query selects rows. Where is rendered from the condition tree; Extra is a
// raw trailing clause (ORDER BY, LIMIT, or predicates the tree cannot express)
// appended verbatim with its own bound arguments.
type Query struct {
	Where     Condition
	Columns   []string
	Extra     string
	ExtraArgs []any
}

// Where is shorthand for a Query with only a condition.
func Where(cond Condition) Query {
	return Query{Where: cond}
}

// ColumnInfo describes a live column as reported by the engine.
type ColumnInfo struct {
	Name       string
	Type       ColumnType
	Declared   string
	NotNull    bool
	PrimaryKey bool
}

type tableInfo struct {
	name    string
	columns []ColumnInfo
	kinds   map[string]ColumnType
}

func newTableInfo(name string, columns []ColumnInfo) *tableInfo {
	info := &tableInfo{name: name, columns: columns, kinds: make(map[string]ColumnType, len(columns))}
	for _, col := range columns {
		info.kinds[col.Name] = col.Type
	}
	return info
}

func (t *tableInfo) kind(column string) (ColumnType, error) {
	if err := checkIdentifier(column); err != nil {
		return "", err
	}
	kind, ok := t.kinds[column]
	if !ok {
		return "", fmt.Errorf("%w: unknown column %s.%s", services.ErrValidation, t.name, column)
	}
	return kind, nil
}

func (t *tableInfo) names() []string {
	names := make([]string, 0, len(t.columns))
	for _, col := range t.columns {
		names = append(names, col.Name)
	}
	return names
}

func (t *tableInfo) renderWhere(cond Condition) (string, []any, error) {
	if err := cond.Err(); err != nil {
		return "", nil, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	return cond.render(func(column string, value any) (any, error) {
		kind, err := t.kind(column)
		if err != nil {
			return nil, err
		}
		return encodeValue(kind, column, value)
	})
}

func (t *tableInfo) projection(columns []string) ([]string, error) {
	if len(columns) == 0 {
		return t.names(), nil
	}
	for _, col := range columns {
		if _, err := t.kind(col); err != nil {
			return nil, err
		}
	}
	return columns, nil
}

func buildSelect(t *tableInfo, q Query) (string, []string, []any, error) {
	columns, err := t.projection(q.Columns)
	if err != nil {
		return "", nil, nil, err
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(t.name))
	where, args, err := t.renderWhere(q.Where)
	if err != nil {
		return "", nil, nil, err
	}
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if extra := strings.TrimSpace(q.Extra); extra != "" {
		b.WriteString(" ")
		b.WriteString(extra)
		args = append(args, q.ExtraArgs...)
	}
	return b.String(), columns, args, nil
}

func sortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for key := range rec {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func buildInsert(t *tableInfo, rec Record) (string, []any, error) {
	if len(rec) == 0 {
		return "", nil, fmt.Errorf("%w: insert into %s without values", services.ErrValidation, t.name)
	}
	keys := sortedKeys(rec)
	quoted := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, key := range keys {
		kind, err := t.kind(key)
		if err != nil {
			return "", nil, err
		}
		encoded, err := encodeValue(kind, key, rec[key])
		if err != nil {
			return "", nil, err
		}
		quoted[i] = quoteIdent(key)
		args[i] = encoded
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.name), strings.Join(quoted, ", "), makePlaceholders(len(keys)))
	return stmt, args, nil
}

func buildUpdate(t *tableInfo, values Record, q Query) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("%w: update of %s without values", services.ErrValidation, t.name)
	}
	keys := sortedKeys(values)
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys))
	for i, key := range keys {
		kind, err := t.kind(key)
		if err != nil {
			return "", nil, err
		}
		encoded, err := encodeValue(kind, key, values[key])
		if err != nil {
			return "", nil, err
		}
		sets[i] = quoteIdent(key) + " = ?"
		args = append(args, encoded)
	}
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(quoteIdent(t.name))
	b.WriteString(" SET ")
	b.WriteString(strings.Join(sets, ", "))
	where, whereArgs, err := t.renderWhere(q.Where)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
		args = append(args, whereArgs...)
	}
	if extra := strings.TrimSpace(q.Extra); extra != "" {
		b.WriteString(" ")
		b.WriteString(extra)
		args = append(args, q.ExtraArgs...)
	}
	return b.String(), args, nil
}

func buildDelete(t *tableInfo, where Condition, deleteAll bool) (string, []any, error) {
	if deleteAll {
		return "DELETE FROM " + quoteIdent(t.name), nil, nil
	}
	if where.IsZero() {
		return "", nil, fmt.Errorf("%w: delete from %s requires a condition", services.ErrValidation, t.name)
	}
	clause, args, err := t.renderWhere(where)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + quoteIdent(t.name) + " WHERE " + clause, args, nil
}

func buildCreate(schema TableSchema) (string, error) {
	defs := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		def, err := columnDefinition(col, true)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", quoteIdent(schema.Table), strings.Join(defs, ",\n    ")), nil
}

// buildAddColumn returns the statements that add col to an existing table.
// SQLite cannot add a UNIQUE column, so uniqueness becomes an index.
func buildAddColumn(table string, col Column) ([]string, error) {
	add := col
	add.Unique = false
	def, err := columnDefinition(add, false)
	if err != nil {
		return nil, err
	}
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), def)}
	if col.Unique {
		index := quoteIdent("idx_" + table + "_" + col.Name)
		stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)", index, quoteIdent(table), quoteIdent(col.Name)))
	}
	return stmts, nil
}

func columnDefinition(col Column, allowKeys bool) (string, error) {
	parts := []string{quoteIdent(col.Name), col.Type.declared()}
	if allowKeys && col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
		if col.AutoIncrement {
			parts = append(parts, "AUTOINCREMENT")
		}
	}
	if !col.IsNullable() && !col.PrimaryKey {
		parts = append(parts, "NOT NULL")
	}
	if col.Unique && !col.PrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	if col.Default != nil {
		literal, err := defaultLiteral(col)
		if err != nil {
			return "", err
		}
		parts = append(parts, "DEFAULT "+literal)
	}
	return strings.Join(parts, " "), nil
}

// defaultLiteral renders a schema default. DDL cannot take bound parameters,
// so defaults come only from trusted schema definitions.
func defaultLiteral(col Column) (string, error) {
	encoded, err := encodeValue(col.Type, col.Name, col.Default)
	if err != nil {
		return "", err
	}
	switch v := encoded.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case bool:
		return strconv.Itoa(boolToInt(v)), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case json.Number:
		return v.String(), nil
	}
	return "", fmt.Errorf("%w: unsupported default %T for column %s", services.ErrValidation, encoded, col.Name)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
