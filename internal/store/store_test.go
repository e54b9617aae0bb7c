package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"keepsake/internal/services"
	"keepsake/internal/store"
	"keepsake/internal/testsupport"
)

func itemSchema(t *testing.T) store.TableSchema {
	t.Helper()
	schema, err := store.ParseSchema([]byte(`{
		// test table
		"table": "items",
		"columns": {
			"id": {"type": "integer", "primary_key": true, "auto_increment": true},
			"file_name": {"type": "text", "nullable": false},
			"file_path": {"type": "text"},
			"tags": {"type": "structured"},
			"metadata_blob": {"type": "structured"},
			"favourite": {"type": "boolean", "default": false},
			"created_at": {"type": "timestamp"}, // trailing comma allowed
		},
	}`))
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	return schema
}

func openWithItems(t *testing.T) (*store.Store, context.Context) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := st.CreateTable(ctx, itemSchema(t)); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return st, ctx
}

func columnNames(t *testing.T, st *store.Store, table string) []string {
	t.Helper()
	cols, err := st.Columns(context.Background(), table)
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	names := make([]string, 0, len(cols))
	for _, col := range cols {
		names = append(names, col.Name)
	}
	return names
}

func TestParseSchemaKeepsDeclarationOrder(t *testing.T) {
	schema := itemSchema(t)
	want := []string{"id", "file_name", "file_path", "tags", "metadata_blob", "favourite", "created_at"}
	if diff := cmp.Diff(want, schema.Names()); diff != "" {
		t.Fatalf("column order mismatch (-want +got):\n%s", diff)
	}
	col, ok := schema.Column("file_name")
	if !ok || col.IsNullable() {
		t.Fatalf("expected file_name to be NOT NULL, got %+v", col)
	}
}

func TestInsertFetchStructuredRoundTrip(t *testing.T) {
	st, ctx := openWithItems(t)

	id, err := st.Insert(ctx, "items", store.Record{"tags": []string{"a", "b"}, "file_name": "x.mp4"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id == 0 {
		t.Fatal("expected row id")
	}

	rec, err := st.FetchOne(ctx, "items", store.Where(store.Equals("file_name", "x.mp4")))
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a row")
	}
	if diff := cmp.Diff([]string{"a", "b"}, rec.Strings("tags")); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	if rec.Int64("id") != id {
		t.Fatalf("unexpected id %d", rec.Int64("id"))
	}
}

func TestStructuredMapAndTypedColumnsRoundTrip(t *testing.T) {
	st, ctx := openWithItems(t)
	created := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	meta := map[string]any{"uploader": "alice", "duration": 12.5, "chapters": []any{"intro", "outro"}}

	if _, err := st.Insert(ctx, "items", store.Record{
		"file_name":     "y.mp4",
		"metadata_blob": meta,
		"favourite":     true,
		"created_at":    created,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rec, err := st.FetchOne(ctx, "items", store.Where(store.Equals("favourite", true)))
	if err != nil || rec == nil {
		t.Fatalf("FetchOne: rec=%v err=%v", rec, err)
	}
	if diff := cmp.Diff(meta, rec.Map("metadata_blob")); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}
	if !rec.Bool("favourite") {
		t.Fatal("expected favourite to decode as true")
	}
	if got := rec.Time("created_at"); !got.Equal(created) {
		t.Fatalf("created_at mismatch: got %s want %s", got, created)
	}
}

func TestFetchReturnsNilWhenNothingMatches(t *testing.T) {
	st, ctx := openWithItems(t)
	rec, err := st.FetchOne(ctx, "items", store.Where(store.Equals("file_name", "missing")))
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %v", rec)
	}
}

func TestFetchWithProjectionAndExtra(t *testing.T) {
	st, ctx := openWithItems(t)
	for _, name := range []string{"c.mp4", "a.mp4", "b.mp4"} {
		if _, err := st.Insert(ctx, "items", store.Record{"file_name": name, "tags": []string{name}}); err != nil {
			t.Fatalf("Insert %s: %v", name, err)
		}
	}
	rows, err := st.Fetch(ctx, "items", store.Query{Columns: []string{"file_name"}, Extra: "ORDER BY file_name LIMIT ?", ExtraArgs: []any{2}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 2 || rows[0].String("file_name") != "a.mp4" || rows[1].String("file_name") != "b.mp4" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if _, ok := rows[0]["tags"]; ok {
		t.Fatal("projection should exclude tags")
	}

	member, err := st.FetchOne(ctx, "items", store.Query{
		Extra:     "WHERE EXISTS (SELECT 1 FROM json_each(tags) WHERE value = ?)",
		ExtraArgs: []any{"c.mp4"},
	})
	if err != nil || member == nil || member.String("file_name") != "c.mp4" {
		t.Fatalf("json membership lookup failed: rec=%v err=%v", member, err)
	}
}

func TestCreateTableTwiceKeepsColumns(t *testing.T) {
	st, ctx := openWithItems(t)
	before := columnNames(t, st, "items")
	if err := st.CreateTable(ctx, itemSchema(t)); err != nil {
		t.Fatalf("second CreateTable: %v", err)
	}
	if diff := cmp.Diff(before, columnNames(t, st, "items")); diff != "" {
		t.Fatalf("columns changed (-before +after):\n%s", diff)
	}
}

func TestCreateTableSeedsDefaultRows(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	schema, err := store.ParseSchema([]byte(`{
		"table": "settings",
		"columns": {
			"key": {"type": "text", "primary_key": true},
			"value": {"type": "text"}
		},
		"rows": [
			{"key": "schema_version", "value": "1"},
			{"key": "prune_missing_locations", "value": "true"}
		]
	}`))
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	if err := st.CreateTable(ctx, schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	count, err := st.Count(ctx, "settings", store.Condition{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 seeded rows, got %d", count)
	}
}

func TestCreateTableIgnoresDuplicatePrimaryKey(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	schema := store.TableSchema{
		Table: "pairs",
		Columns: []store.Column{
			{Name: "left_id", Type: store.TypeInteger, PrimaryKey: true},
			{Name: "right_id", Type: store.TypeInteger, PrimaryKey: true},
		},
	}
	if err := st.CreateTable(ctx, schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	cols, err := st.Columns(ctx, "pairs")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if !cols[0].PrimaryKey || cols[1].PrimaryKey {
		t.Fatalf("expected only the first primary key to survive: %+v", cols)
	}
}

func TestEnsureSchemaIsAdditive(t *testing.T) {
	st, ctx := openWithItems(t)
	narrower := store.TableSchema{
		Table: "items",
		Columns: []store.Column{
			{Name: "file_name", Type: store.TypeText},
			{Name: "content_hash", Type: store.TypeText, Unique: true},
			{Name: "view_count", Type: store.TypeInteger, Default: int64(0)},
			{Name: "rowkey", Type: store.TypeInteger, PrimaryKey: true},
		},
	}
	if err := st.EnsureSchema(ctx, narrower); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	want := []string{"id", "file_name", "file_path", "tags", "metadata_blob", "favourite", "created_at", "content_hash", "view_count"}
	if diff := cmp.Diff(want, columnNames(t, st, "items")); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}

	if _, err := st.Insert(ctx, "items", store.Record{"file_name": "a", "content_hash": "h1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_, err := st.Insert(ctx, "items", store.Record{"file_name": "b", "content_hash": "h1"})
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected unique violation as storage error, got %v", err)
	}

	rec, err := st.FetchOne(ctx, "items", store.Where(store.Equals("file_name", "a")))
	if err != nil || rec == nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if rec.Int64("view_count") != 0 {
		t.Fatalf("expected default view_count, got %v", rec["view_count"])
	}
}

func TestUnknownIdentifiersAreRejected(t *testing.T) {
	st, ctx := openWithItems(t)

	_, err := st.Insert(ctx, "items", store.Record{"nope": 1})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown column, got %v", err)
	}
	_, err = st.Fetch(ctx, "items", store.Where(store.Equals("nope", 1)))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown condition column, got %v", err)
	}
	_, err = st.Fetch(ctx, "missing_table", store.Query{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown table, got %v", err)
	}
	_, err = st.Fetch(ctx, "items; DROP TABLE items", store.Query{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for malformed table, got %v", err)
	}
	_, err = st.Insert(ctx, "items", store.Record{"file_name": "x", "file_path": []string{"not", "structured"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for list in text column, got %v", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	st, ctx := openWithItems(t)
	for _, name := range []string{"a", "b", "c"} {
		if _, err := st.Insert(ctx, "items", store.Record{"file_name": name, "file_path": "/p"}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	affected, err := st.Update(ctx, "items", store.Record{"tags": []string{"x"}}, store.Where(store.AnyOf(
		map[string]any{"file_name": "a"},
		map[string]any{"file_name": "b"},
	)))
	if err != nil || affected != 2 {
		t.Fatalf("Update: affected=%d err=%v", affected, err)
	}

	if _, err := st.Delete(ctx, "items", store.Condition{}, false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected unconditional delete to be rejected, got %v", err)
	}
	deleted, err := st.Delete(ctx, "items", store.Equals("file_name", "c"), false)
	if err != nil || deleted != 1 {
		t.Fatalf("Delete: deleted=%d err=%v", deleted, err)
	}
	deleted, err = st.Delete(ctx, "items", store.Condition{}, true)
	if err != nil || deleted != 2 {
		t.Fatalf("Delete all: deleted=%d err=%v", deleted, err)
	}
}

func TestFetchAsBoolNarrowCoercion(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	schema := store.TableSchema{
		Table: "flags",
		Columns: []store.Column{
			{Name: "key", Type: store.TypeText, PrimaryKey: true},
			{Name: "value", Type: store.TypeText},
			{Name: "number", Type: store.TypeInteger},
		},
		Rows: []store.Record{
			{"key": "on", "value": "true"},
			{"key": "off", "value": "false"},
			{"key": "yes", "value": "yes"},
			{"key": "upper", "value": "TRUE"},
			{"key": "one", "number": 1},
			{"key": "two", "number": 2},
		},
	}
	if err := st.CreateTable(ctx, schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	cases := []struct {
		key    string
		column string
		want   bool
	}{
		{"on", "value", true},
		{"off", "value", false},
		{"yes", "value", false},
		{"upper", "value", false},
		{"one", "number", true},
		{"two", "number", false},
		{"absent", "value", false},
	}
	for _, tc := range cases {
		got, err := st.FetchAsBool(ctx, "flags", store.Equals("key", tc.key), tc.column)
		if err != nil {
			t.Fatalf("FetchAsBool %s: %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("FetchAsBool %s: got %v want %v", tc.key, got, tc.want)
		}
	}
}
