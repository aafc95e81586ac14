package migrations_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/datajunction/djqs/database/migrations"
	"github.com/datajunction/djqs/pkg/database"
	"github.com/datajunction/djqs/pkg/migration"
)

var tables = []string{"engines", "catalogs", "catalog_engines", "queries", "djqs_failed_jobs"}

func TestUpgradeAndRollback(t *testing.T) {
	db, err := database.Open(context.Background(), "sqlite://", database.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	var out bytes.Buffer
	runner := migration.New(db).WithOutput(&out)

	require.NoError(t, runner.Run())
	for _, table := range tables {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	pending, err := runner.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// upgrading again is a no-op
	require.NoError(t, runner.Run())
	assert.Contains(t, out.String(), "Nothing to migrate.")

	list, err := runner.List()
	require.NoError(t, err)
	require.Len(t, list, 4)
	for _, s := range list {
		assert.True(t, s.Ran, s.Name)
		assert.Equal(t, 1, s.Batch)
	}

	require.NoError(t, runner.Rollback())
	for _, table := range tables {
		assert.False(t, db.Migrator().HasTable(table), table)
	}

	pending, err = runner.Pending()
	require.NoError(t, err)
	assert.Equal(t, migration.Registered(), pending)
}
