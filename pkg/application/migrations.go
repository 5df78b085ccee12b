package application

import (
	"embed"
	"io/fs"
	"path"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// NewMigrationManager creates a goose-backed manager applying every
// registered embedded schema against the pool's database.
func NewMigrationManager(pool *pgxpool.Pool) MigrationManager {
	return &migrationManager{pool: pool}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	schemas []*embed.FS
}

func (m *migrationManager) RegisterSchema(fs *embed.FS) {
	m.schemas = append(m.schemas, fs)
}

func (m *migrationManager) Run() error {
	return m.each(func(dir string) error {
		db := stdlib.OpenDBFromPool(m.pool)
		defer func() { _ = db.Close() }()
		return goose.Up(db, dir)
	})
}

func (m *migrationManager) Rollback() error {
	return m.each(func(dir string) error {
		db := stdlib.OpenDBFromPool(m.pool)
		defer func() { _ = db.Close() }()
		return goose.DownTo(db, dir, 0)
	})
}

func (m *migrationManager) each(apply func(dir string) error) error {
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	for _, schema := range m.schemas {
		dir, err := schemaDir(schema)
		if err != nil {
			return err
		}
		goose.SetBaseFS(schema)
		err = apply(dir)
		goose.SetBaseFS(nil)
		if err != nil {
			return err
		}
	}
	return nil
}

// schemaDir locates the directory holding the .sql files inside an embedded
// schema FS. go:embed keeps the module-relative path as a prefix, so the
// files are not at the FS root.
func schemaDir(fsys fs.FS) (string, error) {
	dir := "."
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".sql") {
			dir = path.Dir(p)
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return dir, nil
}
