package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/metrico/healpipe/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
datasets:
  - name: seabass
    url: s3://tracks/seabass.parquet
    nside: 4096
  - name: species
    kind: species
    url: https://example.org/species.parquet
    nside: 1024
  - name: sst
    kind: destine
    url: duckdb:/data/sst.parquet
    nside: 64
    color:
      policy: inferno
      extent: [270, 310]
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	require.Len(t, c.Datasets, 3)

	ds, ok := c.Get("seabass")
	require.True(t, ok)
	assert.Equal(t, model.KindIndividual, ds.Kind)
	assert.Equal(t, model.PolicyTimestep, ds.Color.Policy)
	assert.Equal(t, "cell_ids", ds.Columns.Cell)
	assert.Equal(t, "ns", ds.Columns.TimeUnit)

	ds, _ = c.Get("species")
	assert.Equal(t, model.PolicyLog, ds.Color.Policy)

	ds, _ = c.Get("sst")
	assert.Equal(t, []float64{270, 310}, ds.Color.Extent)
	assert.Equal(t, "avg_tos", ds.Columns.EnvTemperature)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestParseCatalogErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"duplicate": "datasets: [{name: a, url: x, nside: 1}, {name: a, url: y, nside: 1}]",
		"no name":   "datasets: [{url: x, nside: 1}]",
		"kind":      "datasets: [{name: a, kind: whale, url: x, nside: 1}]",
		"nside":     "datasets: [{name: a, url: x}]",
		"extent":    "datasets: [{name: a, url: x, nside: 1, color: {policy: fixed, extent: [1]}}]",
		"yaml":      "datasets: {",
	} {
		_, err := ParseCatalog([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Datasets, 3)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
workers: 2
s3:
  endpoint: localhost:9001
  secure: false
`), 0o644))
	t.Setenv("HEALPIPE_LOG_LEVEL", "debug")

	InitConfig(path)
	assert.Equal(t, "9000", Config.Server.Port)
	assert.Equal(t, "0.0.0.0", Config.Server.Host)
	assert.Equal(t, 2, Config.Workers)
	assert.Equal(t, "localhost:9001", Config.S3.Endpoint)
	assert.False(t, Config.S3.Secure)
	assert.Equal(t, int64(64*1024), Config.Source.BatchSize)
	assert.Equal(t, "debug", Config.LogLevel)

	assert.Panics(t, func() { InitConfig(filepath.Join(t.TempDir(), "none.yaml")) })
}
