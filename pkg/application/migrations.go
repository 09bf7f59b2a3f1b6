package application

import (
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

// MigrationManager collects per-module embedded schemas and applies them with
// goose. Each module tracks its own version table so schemas stay independent.
type MigrationManager interface {
	RegisterSchema(module string, fsys fs.FS, dir string)
	Run() error
	Rollback() error
}

type moduleSchema struct {
	module string
	fsys   fs.FS
	dir    string
}

func NewMigrationManager(pool *pgxpool.Pool, logger *logrus.Logger) MigrationManager {
	return &migrationManager{pool: pool, logger: logger}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	logger  *logrus.Logger
	schemas []moduleSchema
}

func (m *migrationManager) RegisterSchema(module string, fsys fs.FS, dir string) {
	m.schemas = append(m.schemas, moduleSchema{module: module, fsys: fsys, dir: dir})
}

func (m *migrationManager) Run() error {
	return m.each(func(s moduleSchema) error {
		db := stdlib.OpenDBFromPool(m.pool)
		defer func() { _ = db.Close() }()
		goose.SetBaseFS(s.fsys)
		goose.SetTableName(fmt.Sprintf("goose_db_version_%s", s.module))
		if err := goose.Up(db, s.dir); err != nil {
			return fmt.Errorf("migrate %s: %w", s.module, err)
		}
		return nil
	})
}

func (m *migrationManager) Rollback() error {
	return m.each(func(s moduleSchema) error {
		db := stdlib.OpenDBFromPool(m.pool)
		defer func() { _ = db.Close() }()
		goose.SetBaseFS(s.fsys)
		goose.SetTableName(fmt.Sprintf("goose_db_version_%s", s.module))
		if err := goose.DownTo(db, s.dir, 0); err != nil {
			return fmt.Errorf("rollback %s: %w", s.module, err)
		}
		return nil
	})
}

func (m *migrationManager) each(fn func(moduleSchema) error) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetLogger(m.gooseLogger())
	for _, s := range m.schemas {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *migrationManager) gooseLogger() goose.Logger {
	if m.logger == nil {
		return goose.NopLogger()
	}
	return &gooseLogrus{logger: m.logger}
}

type gooseLogrus struct {
	logger *logrus.Logger
}

func (l *gooseLogrus) Fatalf(format string, v ...interface{}) { l.logger.Fatalf(format, v...) }
func (l *gooseLogrus) Printf(format string, v ...interface{}) { l.logger.Infof(format, v...) }
