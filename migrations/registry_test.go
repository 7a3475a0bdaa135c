package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	whatsapp "github.com/goliatone/go-whatsapp"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_ResolvesBothDialects(t *testing.T) {
	sources, err := Sources(nil)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Dialect != DialectPostgres || sources[1].Dialect != DialectSQLite {
		t.Fatalf("unexpected dialect order %q %q", sources[0].Dialect, sources[1].Dialect)
	}
	if sources[1].Path != "data/sql/migrations/sqlite" {
		t.Fatalf("unexpected sqlite path %q", sources[1].Path)
	}
	for _, source := range sources {
		matches, err := fs.Glob(source.FS, "*.up.sql")
		if err != nil || len(matches) != len(Tables) {
			t.Fatalf("expected one up migration per table for %s, got %v %v", source.Dialect, matches, err)
		}
	}
}

func TestSources_RejectsUnpairedMigration(t *testing.T) {
	root := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_a.down.sql":      {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.up.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Sources(root); err == nil || !strings.Contains(err.Error(), "no down migration") {
		t.Fatalf("expected unpaired migration error, got %v", err)
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	registered, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		calls = append(calls, dialect+":"+label)
		return nil
	}, WithValidationTargets(" SQLite "))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != DialectSQLite+":"+DefaultSourceLabel {
		t.Fatalf("expected a single sqlite registration, got %v", calls)
	}
	if len(registered) != 1 || registered[0].Dialect != DialectSQLite {
		t.Fatalf("unexpected registered sources %#v", registered)
	}
}

func TestRegister_PropagatesRegisterErrors(t *testing.T) {
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return errors.New("boom")
	}, WithSourceLabel("custom"))
	if err == nil || !strings.Contains(err.Error(), "register postgres") {
		t.Fatalf("expected wrapped register error, got %v", err)
	}
}

func TestRegister_RequiresRegisterFuncAndKnownDialect(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected missing register func to fail")
	}
	noop := func(context.Context, string, string, fs.FS) error { return nil }
	if _, err := Register(context.Background(), noop, WithValidationTargets("mysql")); err == nil {
		t.Fatalf("expected unknown dialect to fail")
	}
}

func TestDialectForDriver(t *testing.T) {
	cases := map[string]string{
		"sqlite3":  DialectSQLite,
		"sqlite":   DialectSQLite,
		"postgres": DialectPostgres,
		"pg":       DialectPostgres,
		"PGX":      DialectPostgres,
	}
	for driver, want := range cases {
		got, err := DialectForDriver(driver)
		if err != nil || got != want {
			t.Fatalf("%s: expected %s, got %q %v", driver, want, got, err)
		}
	}
	if _, err := DialectForDriver("oracle"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := whatsapp.GetMigrationsFS()
	for _, name := range []string{"00001_whatsapp_dedupe", "00002_whatsapp_queue"} {
		for _, dir := range []string{"data/sql/migrations", "data/sql/migrations/sqlite"} {
			for _, suffix := range []string{".up.sql", ".down.sql"} {
				migrationPath := dir + "/" + name + suffix
				content, err := fs.ReadFile(root, migrationPath)
				if err != nil {
					t.Fatalf("read migration %s: %v", migrationPath, err)
				}
				if strings.TrimSpace(string(content)) == "" {
					t.Fatalf("expected migration %s to have SQL content", migrationPath)
				}
			}
		}
	}
}

func TestSQLiteDedupeMigration_EnforcesKeyUniquenessAndRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-dedupe?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(whatsapp.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	for _, migration := range []string{"00001_whatsapp_dedupe.up.sql", "00002_whatsapp_queue.up.sql"} {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply %s: %v", migration, err)
		}
	}

	insert := `INSERT INTO whatsapp_dedupe (id, partition_key, row_key, status) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "a", "16505551234", "wamid.1", "completed"); err != nil {
		t.Fatalf("insert first row: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "b", "16505551234", "wamid.1", "processing"); err == nil {
		t.Fatalf("expected duplicate dedupe key to be rejected")
	}
	if _, err := db.ExecContext(ctx, insert, "c", "16505551234", "wamid.2", "bogus"); err == nil {
		t.Fatalf("expected unknown status to be rejected")
	}

	for _, migration := range []string{"00002_whatsapp_queue.down.sql", "00001_whatsapp_dedupe.down.sql"} {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("rollback %s: %v", migration, err)
		}
	}
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('whatsapp_dedupe', 'whatsapp_queue_messages')`,
	).Scan(&count); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to drop both tables, got %d", count)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
