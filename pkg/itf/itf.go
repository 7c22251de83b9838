// Package itf holds fixtures shared by the integration-style tests of the
// migration engine.
package itf

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/classbook/modules/migration/infrastructure/persistence"
	"github.com/iota-uz/classbook/pkg/configuration"
)

// NewSQLiteStore returns a migrated store backed by a file in a temp dir.
func NewSQLiteStore(tb testing.TB) *persistence.SQLStore {
	tb.Helper()
	ctx := context.Background()

	store, err := persistence.OpenSQLite(ctx, filepath.Join(tb.TempDir(), "classbook.db"))
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = store.Close() })

	_, err = store.Migrate(ctx)
	require.NoError(tb, err)
	return store
}

// CanDialPostgres reports whether DB_HOST:DB_PORT accepts connections.
func CanDialPostgres(tb testing.TB) bool {
	tb.Helper()
	opts := databaseOptions(tb)
	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	conn, err := dialer.Dial("tcp", net.JoinHostPort(opts.Host, opts.Port))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// NewPostgresStore creates a dedicated database named after the test, migrates
// it and drops it on cleanup. The test is skipped when Postgres is not reachable.
func NewPostgresStore(tb testing.TB) *persistence.SQLStore {
	tb.Helper()
	if !CanDialPostgres(tb) {
		tb.Skip("postgres not reachable; set DB_HOST/DB_PORT to run")
	}
	ctx := context.Background()
	opts := databaseOptions(tb)
	dbName := sanitizeDBName(tb.Name())

	admin, err := pgx.Connect(ctx, opts.ConnectionString())
	require.NoError(tb, err)
	quoted := pgx.Identifier{dbName}.Sanitize()
	_, err = admin.Exec(ctx, "DROP DATABASE IF EXISTS "+quoted)
	require.NoError(tb, err)
	_, err = admin.Exec(ctx, "CREATE DATABASE "+quoted)
	require.NoError(tb, err)

	opts.Name = dbName
	store, err := persistence.OpenPostgres(ctx, opts.ConnectionString())
	require.NoError(tb, err)

	tb.Cleanup(func() {
		_ = store.Close()
		_, _ = admin.Exec(context.Background(), "DROP DATABASE IF EXISTS "+quoted)
		_ = admin.Close(context.Background())
	})

	_, err = store.Migrate(ctx)
	require.NoError(tb, err)
	return store
}

func databaseOptions(tb testing.TB) configuration.DatabaseOptions {
	tb.Helper()
	opts, err := env.ParseAs[configuration.DatabaseOptions]()
	require.NoError(tb, err)
	return opts
}

// PostgreSQL limits identifiers to 63 bytes.
const maxDBNameLength = 63

func sanitizeDBName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "test_db"
	}
	if len(sanitized) <= maxDBNameLength {
		return sanitized
	}
	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(name)))[:8]
	return sanitized[:maxDBNameLength-len(hash)-1] + "_" + hash
}
