package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/hesapla-backend/internal/auth"
	"github.com/tbourn/hesapla-backend/internal/domain"
	"github.com/tbourn/hesapla-backend/internal/repo"
)

var admin = auth.Identity{Subject: "admin@example.com", Email: "admin@example.com"}

// newTestDB opens a migrated in-memory database unique to the test. A single
// connection keeps PRAGMAs and transactions on one session.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedAuthor(t *testing.T, db *gorm.DB, name string) *domain.Author {
	t.Helper()
	a := &domain.Author{Name: name}
	if err := repo.CreateAuthor(t.Context(), db, a); err != nil {
		t.Fatalf("seed author: %v", err)
	}
	return a
}

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	cur := start
	return func() time.Time {
		now := cur
		cur = cur.Add(step)
		return now
	}
}

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }
