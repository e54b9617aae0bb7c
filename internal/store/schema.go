package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tailscale/hujson"

	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// ColumnType is the logical kind of a column.
type ColumnType string

const (
	TypeInteger    ColumnType = "integer"
	TypeText       ColumnType = "text"
	TypeReal       ColumnType = "real"
	TypeBlob       ColumnType = "blob"
	TypeBoolean    ColumnType = "boolean"
	TypeTimestamp  ColumnType = "timestamp"
	TypeStructured ColumnType = "structured"
)

// Declared SQL types carry the logical kind so it survives a round trip
// through PRAGMA table_info. JSON_TEXT keeps TEXT affinity for structured
// values.
var declaredTypes = map[ColumnType]string{
	TypeInteger:    "INTEGER",
	TypeText:       "TEXT",
	TypeReal:       "REAL",
	TypeBlob:       "BLOB",
	TypeBoolean:    "BOOLEAN",
	TypeTimestamp:  "TIMESTAMP",
	TypeStructured: "JSON_TEXT",
}

func (t ColumnType) declared() string {
	return declaredTypes[t]
}

func (t ColumnType) valid() bool {
	_, ok := declaredTypes[t]
	return ok
}

func typeFromDeclared(declared string) ColumnType {
	upper := strings.ToUpper(strings.TrimSpace(declared))
	for kind, name := range declaredTypes {
		if upper == name {
			return kind
		}
	}
	switch {
	case strings.Contains(upper, "INT"):
		return TypeInteger
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"), strings.Contains(upper, "TEXT"):
		return TypeText
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"), strings.Contains(upper, "DOUB"):
		return TypeReal
	case strings.Contains(upper, "BOOL"):
		return TypeBoolean
	case strings.Contains(upper, "DATE"), strings.Contains(upper, "TIME"):
		return TypeTimestamp
	case strings.Contains(upper, "JSON"):
		return TypeStructured
	}
	return TypeBlob
}

// Column describes one column of a table.
type Column struct {
	Name          string     `json:"-"`
	Type          ColumnType `json:"type"`
	Nullable      *bool      `json:"nullable,omitempty"`
	PrimaryKey    bool       `json:"primary_key,omitempty"`
	Unique        bool       `json:"unique,omitempty"`
	AutoIncrement bool       `json:"auto_increment,omitempty"`
	Default       any        `json:"default,omitempty"`
}

// IsNullable reports whether NULL is allowed. Columns are nullable unless
// declared otherwise or part of the primary key.
func (c Column) IsNullable() bool {
	if c.PrimaryKey {
		return false
	}
	return c.Nullable == nil || *c.Nullable
}

// TableSchema is an ordered column definition plus rows seeded on creation.
type TableSchema struct {
	Table   string
	Columns []Column
	Rows    []Record
}

// Column returns the named column definition.
func (s TableSchema) Column(name string) (Column, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Names lists column names in declaration order.
func (s TableSchema) Names() []string {
	names := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		names = append(names, col.Name)
	}
	return names
}

// Normalize validates identifiers and column types and drops primary key
// declarations after the first one, logging a warning for each.
func (s TableSchema) Normalize(logger *slog.Logger) (TableSchema, error) {
	if err := checkIdentifier(s.Table); err != nil {
		return TableSchema{}, err
	}
	if len(s.Columns) == 0 {
		return TableSchema{}, fmt.Errorf("%w: table %q declares no columns", services.ErrValidation, s.Table)
	}
	out := TableSchema{Table: s.Table, Rows: s.Rows, Columns: make([]Column, 0, len(s.Columns))}
	seen := make(map[string]struct{}, len(s.Columns))
	hasPrimary := false
	for _, col := range s.Columns {
		if err := checkIdentifier(col.Name); err != nil {
			return TableSchema{}, err
		}
		if _, dup := seen[col.Name]; dup {
			return TableSchema{}, fmt.Errorf("%w: table %q declares column %q twice", services.ErrValidation, s.Table, col.Name)
		}
		seen[col.Name] = struct{}{}
		if col.Type == "" {
			col.Type = TypeText
		}
		col.Type = ColumnType(strings.ToLower(string(col.Type)))
		if !col.Type.valid() {
			return TableSchema{}, fmt.Errorf("%w: column %s.%s has unknown type %q", services.ErrValidation, s.Table, col.Name, col.Type)
		}
		if col.PrimaryKey {
			if hasPrimary {
				logging.WarnWithContext(logger, "ignoring extra primary key", "schema_duplicate_primary_key",
					logging.String("table", s.Table),
					logging.String("column", col.Name),
					logging.String(logging.FieldErrorHint, "declare a single primary key column"),
					logging.String(logging.FieldImpact, "column created without primary key"),
				)
				col.PrimaryKey = false
				col.AutoIncrement = false
			} else {
				hasPrimary = true
			}
		}
		if col.AutoIncrement && (!col.PrimaryKey || col.Type != TypeInteger) {
			return TableSchema{}, fmt.Errorf("%w: column %s.%s: auto_increment requires an integer primary key", services.ErrValidation, s.Table, col.Name)
		}
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

// ParseSchema decodes a JSON or JSONC schema document. Column order follows
// the document.
//
//	{
//	  "table": "items",
//	  "columns": {
//	    "id": {"type": "integer", "primary_key": true, "auto_increment": true},
//	    "file_name": {"type": "text", "nullable": false}
//	  },
//	  "rows": []
//	}
func ParseSchema(data []byte) (TableSchema, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return TableSchema{}, fmt.Errorf("%w: parse schema: %w", services.ErrValidation, err)
	}
	var doc struct {
		Table   string         `json:"table"`
		Columns orderedColumns `json:"columns"`
		Rows    []Record       `json:"rows"`
	}
	decoder := json.NewDecoder(bytes.NewReader(standardized))
	decoder.UseNumber()
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return TableSchema{}, fmt.Errorf("%w: decode schema: %w", services.ErrValidation, err)
	}
	if strings.TrimSpace(doc.Table) == "" {
		return TableSchema{}, fmt.Errorf("%w: schema is missing \"table\"", services.ErrValidation)
	}
	for i, row := range doc.Rows {
		doc.Rows[i] = normalizeNumbers(row)
	}
	for i, col := range doc.Columns {
		doc.Columns[i].Default = normalizeNumber(col.Default)
	}
	return TableSchema{Table: doc.Table, Columns: doc.Columns, Rows: doc.Rows}, nil
}

type orderedColumns []Column

func (o *orderedColumns) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	tok, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("columns must be an object")
	}
	var cols []Column
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected column key %v", keyTok)
		}
		var col Column
		if err := decoder.Decode(&col); err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		col.Name = name
		cols = append(cols, col)
	}
	if _, err := decoder.Token(); err != nil {
		return err
	}
	*o = cols
	return nil
}

func normalizeNumbers(row Record) Record {
	for key, value := range row {
		row[key] = normalizeNumber(value)
	}
	return row
}

func normalizeNumber(value any) any {
	num, ok := value.(json.Number)
	if !ok {
		return value
	}
	if i, err := num.Int64(); err == nil {
		return i
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}
