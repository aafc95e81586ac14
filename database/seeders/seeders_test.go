package seeders_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/database/seeders"
	"github.com/datajunction/djqs/pkg/testkit"
)

const seed = `
engines:
  - name: sqlite
    version: "3.39"
    uri: sqlite://
  - name: postgres
    version: "15"
    uri: postgresql://dj:dj@postgres-roads:5432/roads
catalogs:
  - name: default
    engines:
      - name: sqlite
        version: "3.39"
`

func TestParseValidates(t *testing.T) {
	_, err := seeders.Parse([]byte("engines:\n  - name: sqlite\n"))
	assert.ErrorContains(t, err, "engines[0]")
	assert.ErrorContains(t, err, "uri")

	_, err = seeders.Parse([]byte("engines: [unclosed"))
	assert.ErrorContains(t, err, "seeders: parse")
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testkit.DB(t)

	f, err := seeders.Parse([]byte(seed))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, seeders.Run(ctx, db, f, &out))
	assert.Contains(t, out.String(), "Catalog default … created")

	// second run adds postgres to the catalog and updates the sqlite URI
	f.Engines[0].URI = "sqlite:///roads.db"
	f.Catalogs[0].Engines = append(f.Catalogs[0].Engines, models.EngineRef{Name: "postgres", Version: "15"})
	out.Reset()
	require.NoError(t, seeders.Run(ctx, db, f, &out))
	assert.Contains(t, out.String(), "Engine sqlite 3.39 … updated")
	assert.Contains(t, out.String(), "Catalog default … updated")

	engine, err := services.NewEngineService(db).Get(ctx, "sqlite", "3.39")
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///roads.db", engine.URI)

	catalog, err := services.NewCatalogService(db).Get(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, catalog.Engines, 2)
}

func TestRunRollsBackOnUnknownEngine(t *testing.T) {
	ctx := context.Background()
	db := testkit.DB(t)

	f, err := seeders.Parse([]byte(`
engines:
  - {name: sqlite, version: "1", uri: "sqlite://"}
catalogs:
  - name: broken
    engines: [{name: druid, version: "0.23"}]
`))
	require.NoError(t, err)

	err = seeders.Run(ctx, db, f, &bytes.Buffer{})
	assert.ErrorIs(t, err, services.ErrEngineNotFound)

	engines, err := services.NewEngineService(db).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, engines)
}

func TestLoadShippedSeedFile(t *testing.T) {
	f, err := seeders.Load("../../config/djqs.yaml")
	require.NoError(t, err)

	assert.Len(t, f.Engines, 2)
	require.Len(t, f.Catalogs, 1)
	assert.Equal(t, "default", f.Catalogs[0].Name)
	assert.Len(t, f.Catalogs[0].Engines, 2)
}
