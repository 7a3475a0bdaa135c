package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	whatsapp "github.com/goliatone/go-whatsapp"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "go-whatsapp"

	rootPath = "data/sql/migrations"
)

// Tables lists the tables the embedded migrations create, in apply order.
var Tables = []string{"whatsapp_dedupe", "whatsapp_queue_messages"}

// Source is one dialect's migration directory.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type registration struct {
	label    string
	dialects []string
	root     fs.FS
}

type Option func(*registration)

func WithSourceLabel(label string) Option {
	return func(r *registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.label = trimmed
		}
	}
}

// WithValidationTargets limits registration to the given dialects.
func WithValidationTargets(dialects ...string) Option {
	return func(r *registration) {
		targets := make([]string, 0, len(dialects))
		for _, dialect := range dialects {
			dialect = strings.ToLower(strings.TrimSpace(dialect))
			if dialect != "" && !slices.Contains(targets, dialect) {
				targets = append(targets, dialect)
			}
		}
		if len(targets) > 0 {
			r.dialects = targets
		}
	}
}

// WithRoot replaces the embedded migration tree.
func WithRoot(fsys fs.FS) Option {
	return func(r *registration) {
		if fsys != nil {
			r.root = fsys
		}
	}
}

// DialectForDriver maps a database/sql driver name, or a bun dialect name,
// to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("migrations: unsupported driver %q", driver)
}

// Sources resolves the postgres and sqlite directories under root. Every
// up migration must have a matching down migration.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = whatsapp.GetMigrationsFS()
	}
	base, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite directory: %w", err)
	}
	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: path.Join(rootPath, "sqlite"), FS: sqliteFS},
	}
	for _, source := range sources {
		if err := checkPairs(source); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// Register hands each selected dialect directory to registerFn, typically a
// go-persistence-bun client's RegisterSQLMigrations, and returns what it
// registered.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) ([]Source, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	reg := registration{
		label:    DefaultSourceLabel,
		dialects: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	sources, err := Sources(reg.root)
	if err != nil {
		return nil, err
	}
	registered := make([]Source, 0, len(reg.dialects))
	for _, source := range sources {
		if !slices.Contains(reg.dialects, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.label, source.FS); err != nil {
			return registered, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		registered = append(registered, source)
	}
	if len(registered) == 0 {
		return nil, fmt.Errorf("migrations: no sources for dialects %v", reg.dialects)
	}
	return registered, nil
}

func checkPairs(source Source) error {
	ups, err := fs.Glob(source.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s: %w", source.Path, err)
	}
	if len(ups) == 0 {
		return fmt.Errorf("migrations: %s has no *.up.sql files", source.Path)
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(source.FS, down); err != nil {
			return fmt.Errorf("migrations: %s/%s has no down migration", source.Path, up)
		}
	}
	return nil
}
