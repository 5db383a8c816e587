// Package dbtest opens isolated in-memory databases for repository and
// service tests.
package dbtest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a fresh SQLite database with the given models migrated. The
// pool is pinned to a single connection so transactions never contend on the
// shared cache.
func Open(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	dsn := "file:techloans_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		if err := conn.AutoMigrate(models...); err != nil {
			t.Fatalf("failed to migrate sqlite: %v", err)
		}
	}
	return conn
}

// OpenShared returns a file-backed SQLite database that several connections
// can use at once. Transactions start with BEGIN IMMEDIATE and wait on the
// busy timeout, so concurrent writers queue on the database lock.
func OpenShared(t *testing.T, conns int, models ...any) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "techloans.db")
	dsn := "file:" + path + "?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	if conns < 1 {
		conns = 1
	}
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		if err := conn.AutoMigrate(models...); err != nil {
			t.Fatalf("failed to migrate sqlite: %v", err)
		}
	}
	return conn
}
