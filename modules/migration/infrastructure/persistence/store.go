package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
	"github.com/iota-uz/classbook/pkg/configuration"
)

//go:embed schema/*.sql
var schemaFS embed.FS

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is a dataset.Repository over database/sql. The same statements run
// on Postgres (through pgx) and SQLite; both accept $N placeholders.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	onClose func()
}

var _ dataset.Repository = (*SQLStore)(nil)

func New(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Open connects to the store described by opts.
func Open(ctx context.Context, opts configuration.DatabaseOptions) (*SQLStore, error) {
	switch opts.Driver {
	case configuration.DriverPostgres:
		return OpenPostgres(ctx, opts.ConnectionString())
	case configuration.DriverSQLite, "":
		return OpenSQLite(ctx, opts.SQLitePath)
	default:
		return nil, errors.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// OpenSQLite opens the database file at path with foreign keys enforced.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one connection keeps pragmas and transactions on the same handle
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	return New(db, DialectSQLite), nil
}

// OpenPostgres builds a pgx pool for dsn and exposes it through database/sql.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "db connect failed")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "db connect failed")
	}
	s := New(stdlib.OpenDBFromPool(pool), DialectPostgres)
	s.onClose = pool.Close
	return s, nil
}

func (s *SQLStore) DB() *sql.DB       { return s.db }
func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) Close() error {
	err := s.db.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}

// Migrate applies the embedded schema migrations.
func (s *SQLStore) Migrate(ctx context.Context) ([]*goose.MigrationResult, error) {
	dialect := goose.DialectSQLite3
	if s.dialect == DialectPostgres {
		dialect = goose.DialectPostgres
	}
	sub, err := fs.Sub(schemaFS, "schema")
	if err != nil {
		return nil, errors.Wrap(err, "schema fs")
	}
	provider, err := goose.NewProvider(dialect, s.db, sub)
	if err != nil {
		return nil, errors.Wrap(err, "goose provider")
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return results, errors.Wrap(err, "apply schema")
	}
	return results, nil
}

func (s *SQLStore) InTx(ctx context.Context, fn func(ctx context.Context, tx dataset.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &sqlTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	committed = true
	return nil
}

func (s *SQLStore) Count(ctx context.Context, c entitygraph.Collection) (int, error) {
	return count(ctx, s.db, c)
}

func (s *SQLStore) Counts(ctx context.Context) (dataset.Counts, error) {
	out := make(dataset.Counts, len(tables))
	for _, c := range entitygraph.SeedOrder() {
		n, err := count(ctx, s.db, c)
		if err != nil {
			return nil, err
		}
		out[c] = n
	}
	return out, nil
}

// Snapshot reads every table inside one transaction so the result is a
// consistent view even if someone else writes concurrently.
func (s *SQLStore) Snapshot(ctx context.Context) (*dataset.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin snapshot tx")
	}
	defer func() { _ = tx.Rollback() }()
	return readSnapshot(ctx, tx)
}

// DanglingReferences counts, for every edge, the child rows whose foreign key
// has no parent row.
func (s *SQLStore) DanglingReferences(ctx context.Context) ([]dataset.Dangling, error) {
	edges := entitygraph.Edges()
	out := make([]dataset.Dangling, 0, len(edges))
	for _, e := range edges {
		child, err := tableName(e.Child)
		if err != nil {
			return nil, err
		}
		parent, err := tableName(e.Parent)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf(
			`SELECT COUNT(*) FROM %s c LEFT JOIN %s p ON p.id = c.%s WHERE c.%s IS NOT NULL AND p.id IS NULL`,
			child, parent, e.Column, e.Column,
		)
		var n int
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, errors.Wrapf(err, "scan %s", e)
		}
		out = append(out, dataset.Dangling{Edge: e, Count: n})
	}
	return out, nil
}

var tables = func() map[entitygraph.Collection]string {
	out := map[entitygraph.Collection]string{}
	for _, c := range entitygraph.Classbook().Collections() {
		out[c] = string(c)
	}
	return out
}()

// tableName guards every identifier that is formatted into SQL.
func tableName(c entitygraph.Collection) (string, error) {
	t, ok := tables[c]
	if !ok {
		return "", errors.Errorf("unknown collection %q", c)
	}
	return t, nil
}

func count(ctx context.Context, q querier, c entitygraph.Collection) (int, error) {
	table, err := tableName(c)
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count %s", table)
	}
	return n, nil
}
