package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// Store is the single persistence handle shared by every component.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	tables map[string]*tableInfo
}

// Open initializes or connects to the SQLite database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps the single-writer model explicit.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	return &Store{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(logger, "store"),
		tables: make(map[string]*tableInfo),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// fail logs an engine error and wraps it as a storage failure.
func (s *Store) fail(ctx context.Context, op, table string, err error) error {
	logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "storage operation failed", "storage_failure",
		logging.String("operation", op),
		logging.String("table", table),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check database file permissions and free disk space"),
	)
	return services.Wrap(services.ErrStorage, "store", op, table, err)
}

// reject logs a validation problem at debug level and returns it unchanged.
func (s *Store) reject(ctx context.Context, op, table string, err error) error {
	logging.WithContext(ctx, s.logger).Debug("statement rejected",
		logging.String("operation", op),
		logging.String("table", table),
		logging.Error(err),
	)
	if errors.Is(err, services.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", services.ErrValidation, op, table, err)
}

// TableExists reports whether a table is present.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	if err := checkIdentifier(table); err != nil {
		return false, s.reject(ctx, "table_exists", table, err)
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name = ?", table,
	).Scan(&count)
	if err != nil {
		return false, s.fail(ctx, "table_exists", table, err)
	}
	return count > 0, nil
}

// Columns returns the live column set of a table in declaration order.
func (s *Store) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	info, err := s.table(ctx, "columns", table)
	if err != nil {
		return nil, err
	}
	return append([]ColumnInfo(nil), info.columns...), nil
}

// table returns cached column metadata for a table, loading it from the
// engine on first use. A missing table is reported as ErrNotFound.
func (s *Store) table(ctx context.Context, op, name string) (*tableInfo, error) {
	if err := checkIdentifier(name); err != nil {
		return nil, s.reject(ctx, op, name, err)
	}
	s.mu.Lock()
	info, ok := s.tables[name]
	s.mu.Unlock()
	if ok {
		return info, nil
	}

	columns, err := s.loadColumns(ctx, name)
	if err != nil {
		return nil, s.fail(ctx, op, name, err)
	}
	if len(columns) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "store", op, "table "+name, nil)
	}
	info = newTableInfo(name, columns)
	s.mu.Lock()
	s.tables[name] = info
	s.mu.Unlock()
	return info, nil
}

func (s *Store) loadColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, type, \"notnull\", pk FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			name     string
			declared string
			notNull  int
			pk       int
		)
		if err := rows.Scan(&name, &declared, &notNull, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, ColumnInfo{
			Name:       name,
			Type:       typeFromDeclared(declared),
			Declared:   declared,
			NotNull:    notNull != 0,
			PrimaryKey: pk > 0,
		})
	}
	return columns, rows.Err()
}

func (s *Store) forget(table string) {
	s.mu.Lock()
	delete(s.tables, table)
	s.mu.Unlock()
}

// CreateTable creates the table described by schema and seeds its default
// rows. An existing table is left untouched and reported with a warning.
func (s *Store) CreateTable(ctx context.Context, schema TableSchema) error {
	normalized, err := schema.Normalize(s.logger)
	if err != nil {
		return s.reject(ctx, "create_table", schema.Table, err)
	}
	schema = normalized

	exists, err := s.TableExists(ctx, schema.Table)
	if err != nil {
		return err
	}
	if exists {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "table already exists", "table_exists",
			logging.String("table", schema.Table),
			logging.String(logging.FieldErrorHint, "use EnsureSchema to add new columns"),
			logging.String(logging.FieldImpact, "existing table kept unchanged"),
		)
		return nil
	}

	stmt, err := buildCreate(schema)
	if err != nil {
		return s.reject(ctx, "create_table", schema.Table, err)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return s.fail(ctx, "create_table", schema.Table, err)
	}
	s.forget(schema.Table)

	exists, err = s.TableExists(ctx, schema.Table)
	if err != nil {
		return err
	}
	if !exists {
		return s.fail(ctx, "create_table", schema.Table, errors.New("table missing after creation"))
	}

	for _, row := range schema.Rows {
		if _, err := s.Insert(ctx, schema.Table, row); err != nil {
			return err
		}
	}
	s.logger.Debug("table created",
		logging.String("table", schema.Table),
		logging.Int("columns", len(schema.Columns)),
		logging.Int("default_rows", len(schema.Rows)),
	)
	return nil
}

// EnsureSchema adds any schema column missing from the live table. Existing
// columns are never altered or dropped. Missing columns that declare a
// primary key or auto increment cannot be added and are skipped with a
// warning.
func (s *Store) EnsureSchema(ctx context.Context, schema TableSchema) error {
	normalized, err := schema.Normalize(s.logger)
	if err != nil {
		return s.reject(ctx, "ensure_schema", schema.Table, err)
	}
	schema = normalized
	s.forget(schema.Table)
	info, err := s.table(ctx, "ensure_schema", schema.Table)
	if err != nil {
		return err
	}

	logger := logging.WithContext(ctx, s.logger)
	added := 0
	for _, col := range schema.Columns {
		if _, ok := info.kinds[col.Name]; ok {
			continue
		}
		if col.PrimaryKey || col.AutoIncrement {
			logging.WarnWithContext(logger, "cannot add key column to existing table", "schema_key_column_rejected",
				logging.String("table", schema.Table),
				logging.String("column", col.Name),
				logging.String(logging.FieldErrorHint, "recreate the table to change its primary key"),
				logging.String(logging.FieldImpact, "column not added"),
			)
			continue
		}
		if !col.IsNullable() && col.Default == nil {
			logging.WarnWithContext(logger, "adding NOT NULL column without default as nullable", "schema_not_null_relaxed",
				logging.String("table", schema.Table),
				logging.String("column", col.Name),
				logging.String(logging.FieldErrorHint, "declare a default for the column"),
				logging.String(logging.FieldImpact, "existing rows hold NULL"),
			)
			nullable := true
			col.Nullable = &nullable
		}
		stmts, err := buildAddColumn(schema.Table, col)
		if err != nil {
			return s.reject(ctx, "ensure_schema", schema.Table, err)
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				s.forget(schema.Table)
				return s.fail(ctx, "ensure_schema", schema.Table, err)
			}
		}
		added++
		logger.Info("column added",
			logging.String("table", schema.Table),
			logging.String("column", col.Name),
			logging.String("type", string(col.Type)),
		)
	}
	s.forget(schema.Table)
	if added > 0 {
		logger.Debug("schema migrated", logging.String("table", schema.Table), logging.Int("added", added))
	}
	return nil
}
