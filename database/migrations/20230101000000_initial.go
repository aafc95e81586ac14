package migrations

import (
	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/pkg/migration"
	"github.com/datajunction/djqs/pkg/queue"
)

func init() {
	migration.Register("20230101000000_create_engines_table", &CreateEnginesTable{})
	migration.Register("20230101000001_create_catalogs_table", &CreateCatalogsTable{})
	migration.Register("20230101000002_create_queries_table", &CreateQueriesTable{})
	migration.Register("20230101000003_create_failed_jobs_table", &CreateFailedJobsTable{})
}

// -------- 0001: engines --------

type CreateEnginesTable struct{}

func (m *CreateEnginesTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Engine{})
}

func (m *CreateEnginesTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("engines")
}

// -------- 0002: catalogs + catalog_engines --------

type CreateCatalogsTable struct{}

func (m *CreateCatalogsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Catalog{})
}

func (m *CreateCatalogsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("catalog_engines", "catalogs")
}

// -------- 0003: queries --------

type CreateQueriesTable struct{}

func (m *CreateQueriesTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Query{})
}

func (m *CreateQueriesTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("queries")
}

// -------- 0004: failed jobs --------

type CreateFailedJobsTable struct{}

func (m *CreateFailedJobsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&queue.FailedJobRecord{})
}

func (m *CreateFailedJobsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&queue.FailedJobRecord{})
}
