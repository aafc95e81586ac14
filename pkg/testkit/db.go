package testkit

import (
	"context"
	"io"
	"testing"

	"gorm.io/gorm"

	_ "github.com/datajunction/djqs/database/migrations" // register migrations
	"github.com/datajunction/djqs/pkg/database"
	"github.com/datajunction/djqs/pkg/migration"
)

// DB returns an in-memory SQLite index database with every migration
// applied. It is closed when the test ends.
func DB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(context.Background(), "sqlite://", database.DefaultOptions())
	if err != nil {
		t.Fatalf("testkit: open index db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := migration.New(db).WithOutput(io.Discard).Run(); err != nil {
		t.Fatalf("testkit: migrate: %v", err)
	}
	return db
}
