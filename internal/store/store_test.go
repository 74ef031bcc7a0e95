package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.bml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.bml")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := s1.AddFile(context.Background(), "/src/main.c"); err != nil {
		t.Fatalf("AddFile() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	if _, err := s2.LookupPath(context.Background(), "/src/main.c"); err != nil {
		t.Errorf("path did not survive reopen: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.bml")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"meta", "paths", "roots", "actions", "accesses"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}

	// Exactly one root directory row, however often the schema ran.
	var roots int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM paths WHERE id = 0").Scan(&roots); err != nil {
		t.Fatalf("count root rows: %v", err)
	}
	if roots != 1 {
		t.Errorf("root path rows = %d, want 1", roots)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/build.bml")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}

	_, err = Open("")
	if err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() failed: %v", err)
	}
	defer s.Close()

	if s.Path() != "" {
		t.Errorf("Path() = %q, want empty for an unsaved store", s.Path())
	}
	if _, err := s.AddFile(context.Background(), "/a.c"); err != nil {
		t.Errorf("AddFile() on memory store failed: %v", err)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.bml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}

	// Second close may error but must not panic
	_ = s.Close()
}

func TestInfo_BuildIDStableAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.bml")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	info1, err := s1.Info(ctx)
	if err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	s1.Close()

	if _, err := uuid.Parse(info1.BuildID); err != nil {
		t.Errorf("build id %q is not a UUID: %v", info1.BuildID, err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	info2, err := s2.Info(ctx)
	if err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	if info2.BuildID != info1.BuildID {
		t.Errorf("build id changed across opens: %q -> %q", info1.BuildID, info2.BuildID)
	}
}

func TestInfo_Counts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := mustRootAction(t, s)
	file := mustAddFile(t, s, "/src/cat.c")
	a := mustAddAction(t, s, root, graphRoot, "gcc -c cat.c")
	mustAccess(t, s, a, file, opRead)

	info, err := s.Info(ctx)
	if err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	if info.Files != 1 || info.Dirs != 2 || info.Actions != 2 || info.Accesses != 1 {
		t.Errorf("Info() = %+v, want 1 file, 2 dirs, 2 actions, 1 access", info)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)
	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Schema table tests

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		table   string
		columns []string
	}{
		{"paths", []string{"id", "parent_id", "name", "kind", "trashed"}},
		{"roots", []string{"name", "path_id"}},
		{"actions", []string{"id", "parent_id", "directory_id", "command", "trashed"}},
		{"accesses", []string{"action_id", "path_id", "op"}},
		{"meta", []string{"key", "value"}},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			columns := getTableColumns(t, s.db, tt.table)
			for _, col := range tt.columns {
				if !contains(columns, col) {
					t.Errorf("%s table missing column %q", tt.table, col)
				}
			}
		})
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	if idx := getTableIndexes(t, s.db, "paths"); !contains(idx, "idx_paths_parent_name") {
		t.Errorf("paths table missing idx_paths_parent_name, got %v", idx)
	}
	idx := getTableIndexes(t, s.db, "accesses")
	for _, want := range []string{"idx_accesses_path", "idx_accesses_op_path"} {
		if !contains(idx, want) {
			t.Errorf("accesses table missing index %q, got %v", want, idx)
		}
	}
}

// Constraint tests

func TestConstraint_SiblingNamesUnique(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO paths (parent_id, name, kind) VALUES (0, 'x', 1)`)
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	_, err = s.db.Exec(`INSERT INTO paths (parent_id, name, kind) VALUES (0, 'x', 0)`)
	if err == nil {
		t.Error("expected UNIQUE violation for duplicate sibling name")
	}
}

func TestConstraint_AccessForeignKeys(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO accesses (action_id, path_id, op) VALUES (99, 0, 1)`)
	if err == nil {
		t.Error("expected FK violation for unknown action")
	}
}

func TestConstraint_IDsNeverReused(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := mustAddFile(t, s, "/tmp.o")
	if err := s.TrashPath(ctx, first); err != nil {
		t.Fatalf("TrashPath() failed: %v", err)
	}
	if _, err := s.PurgeTrash(ctx); err != nil {
		t.Fatalf("PurgeTrash() failed: %v", err)
	}

	second := mustAddFile(t, s, "/tmp.o")
	if second <= first {
		t.Errorf("new id %d should be greater than purged id %d", second, first)
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	// Simulate a database created before the op index existed
	path := filepath.Join(t.TempDir(), "build.bml")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("DROP INDEX idx_accesses_op_path"); err != nil {
		t.Fatalf("failed to drop index: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}
	if idx := getTableIndexes(t, s.db, "accesses"); !contains(idx, "idx_accesses_op_path") {
		t.Errorf("expected idx_accesses_op_path after migration, got %v", idx)
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
