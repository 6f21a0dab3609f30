package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/jx"
	"github.com/metrico/healpipe/columnar"
	"github.com/metrico/healpipe/config"
	"github.com/metrico/healpipe/model"
	"github.com/metrico/healpipe/router"
	"github.com/metrico/healpipe/source"
	"github.com/metrico/healpipe/transport"
	"github.com/metrico/healpipe/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalog = `
datasets:
  - name: seabass
    url: mem://seabass
    nside: 8
  - name: species
    kind: species
    url: mem://species
    nside: 8
`

func opener(ctx context.Context, ds model.Dataset) (source.RowSource, error) {
	rows := make([]model.Row, 20)
	for i := range rows {
		rows[i] = model.Row{Cell: int64(i * 3), Time: int64(i/5) * 1_000_000, Value: float64(i+1) * 1e-4}
		if i%5 == 2 {
			rows[i].Aux = &model.Auxiliary{Temperature: 11, Pressure: 3}
		}
	}
	return source.Limit(source.NewMemory(rows), ds.Limit), nil
}

func server(t *testing.T) *router.Router {
	t.Helper()
	c, err := config.ParseCatalog([]byte(catalog))
	require.NoError(t, err)
	r := router.NewRouter()
	Init(r, &Handlers{Catalog: c, Pool: worker.NewPool(2, opener)})
	return r
}

func get(t *testing.T, r http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestListDatasets(t *testing.T) {
	rec := get(t, server(t), "/datasets")
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	var legends []int
	err := jx.DecodeBytes(rec.Body.Bytes()).Arr(func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "name":
				s, err := d.Str()
				names = append(names, s)
				return err
			case "legend":
				n := 0
				err := d.Arr(func(d *jx.Decoder) error {
					n++
					return d.Skip()
				})
				legends = append(legends, n)
				return err
			}
			return d.Skip()
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"seabass", "species"}, names)
	assert.Equal(t, []int{legendStops, legendStops}, legends)
}

func readTable(t *testing.T, rec *httptest.ResponseRecorder) *transport.Table {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, arrowStream, rec.Header().Get("Content-Type"))
	tbl, err := transport.ReadIPC(rec.Body)
	require.NoError(t, err)
	return tbl
}

func TestTable(t *testing.T) {
	r := server(t)
	tbl := readTable(t, get(t, r, "/datasets/seabass/table"))
	defer tbl.Release()
	assert.Equal(t, 20, tbl.NumRows())
	assert.Equal(t, "seabass", tbl.Name())
	ring, err := tbl.Ring(columnar.ColGeometry, 0)
	require.NoError(t, err)
	assert.Len(t, ring, 5)

	limited := readTable(t, get(t, r, "/datasets/seabass/table?limit=5&nside=4"))
	defer limited.Release()
	assert.Equal(t, 5, limited.NumRows())
}

func TestTrackAndLine(t *testing.T) {
	r := server(t)
	tbl := readTable(t, get(t, r, "/datasets/seabass/track"))
	defer tbl.Release()
	assert.Equal(t, 4, tbl.NumRows())

	rec := get(t, r, "/datasets/seabass/line")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `"LineString"`)
	assert.Contains(t, string(body), `"bbox"`)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/datasets/species/track").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/datasets/species/line").Code)
}

func TestErrors(t *testing.T) {
	r := server(t)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/datasets/whale/table").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/datasets/seabass/table?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/datasets/seabass/table?nside=3").Code)
}

func TestServiceRoutes(t *testing.T) {
	r := server(t)
	assert.Equal(t, http.StatusNoContent, get(t, r, "/ping").Code)
	assert.Equal(t, http.StatusOK, get(t, r, "/health").Code)

	readTable(t, get(t, r, "/datasets/species/table")).Release()
	rec := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healpipe_rows_built_total")
}
