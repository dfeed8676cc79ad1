package repo

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/hesapla-backend/internal/domain"
)

// newTestDB opens a unique in-memory database per test to avoid schema
// leaking across tests. With no models it leaves the schema empty.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func allModels() []any {
	return []any{&domain.Author{}, &domain.Post{}, &domain.ViewReceipt{}}
}

func seedAuthor(t *testing.T, db *gorm.DB, id, name string) *domain.Author {
	t.Helper()
	a := &domain.Author{ID: id, Name: name}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("seed author: %v", err)
	}
	return a
}
