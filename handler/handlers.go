package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/metrico/healpipe/colormap"
	"github.com/metrico/healpipe/config"
	"github.com/metrico/healpipe/healpix"
	"github.com/metrico/healpipe/model"
	"github.com/metrico/healpipe/modules"
	"github.com/metrico/healpipe/router"
	"github.com/metrico/healpipe/transport"
	"github.com/metrico/healpipe/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	arrowStream = "application/vnd.apache.arrow.stream"
	legendStops = 5
)

// Handlers serves the dataset catalog and the tables built from it.
type Handlers struct {
	API     modules.Api
	Catalog *config.Catalog
	Pool    *worker.Pool
}

// Init registers the routes of h on api.
func Init(api modules.Api, h *Handlers) {
	h.API = api
	api.RegisterRoute(&modules.Route{
		Path:    "/datasets",
		Methods: []string{"GET"},
		Handler: h.ListDatasets,
	})
	api.RegisterRoute(&modules.Route{
		Path:    "/datasets/{name}/table",
		Methods: []string{"GET"},
		Handler: h.Table,
	})
	api.RegisterRoute(&modules.Route{
		Path:    "/datasets/{name}/track",
		Methods: []string{"GET"},
		Handler: h.Track,
	})
	api.RegisterRoute(&modules.Route{
		Path:    "/datasets/{name}/line",
		Methods: []string{"GET"},
		Handler: h.Line,
	})
	api.RegisterRoute(&modules.Route{
		Path:    "/metrics",
		Methods: []string{"GET"},
		Handler: func(w http.ResponseWriter, r *http.Request) error {
			promhttp.Handler().ServeHTTP(w, r)
			return nil
		},
	})
	api.RegisterRoute(&modules.Route{
		Path:    "/health",
		Methods: []string{"GET"},
		Handler: func(w http.ResponseWriter, r *http.Request) error {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": "pass", "message": "Service is healthy", "name": "healpipe"}` + "\n"))
			return nil
		},
	})
	api.RegisterRoute(&modules.Route{
		Path:    "/ping",
		Methods: []string{"GET"},
		Handler: func(w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		},
	})
}

func legend(p model.PolicyName) []colormap.Tick {
	if p == model.PolicyInferno {
		return colormap.Legend(colormap.InfernoAt, legendStops)
	}
	return colormap.Legend(colormap.Viridis, legendStops)
}

func (h *Handlers) ListDatasets(w http.ResponseWriter, r *http.Request) error {
	var e jx.Encoder
	e.ArrStart()
	for _, ds := range h.Catalog.Datasets {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(ds.Name)
		e.FieldStart("kind")
		e.Str(string(ds.Kind))
		e.FieldStart("nside")
		e.Int(ds.Nside)
		e.FieldStart("policy")
		e.Str(string(ds.Color.Policy))
		e.FieldStart("track")
		e.Bool(ds.Kind.HasTrack())
		e.FieldStart("legend")
		e.ArrStart()
		for _, tick := range legend(ds.Color.Policy) {
			e.ObjStart()
			e.FieldStart("value")
			e.Float64(tick.Value)
			e.FieldStart("color")
			e.Str(tick.Color.Hex())
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	}
	e.ArrEnd()
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write(e.Bytes())
	return err
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, router.BadRequest(fmt.Errorf("%s must be a non negative integer", name))
	}
	return v, nil
}

// fetch builds the dataset named in the path with the nside and limit
// query overrides.
func (h *Handlers) fetch(r *http.Request) (*worker.Result, error) {
	name := h.API.GetPathParams(r)["name"]
	ds, ok := h.Catalog.Get(name)
	if !ok {
		return nil, router.NotFound(fmt.Errorf("dataset %q not found", name))
	}
	req := worker.NewRequest(ds)
	var err error
	if req.Nside, err = intParam(r, "nside"); err != nil {
		return nil, err
	}
	if req.Limit, err = intParam(r, "limit"); err != nil {
		return nil, err
	}
	res, err := h.Pool.Fetch(r.Context(), req)
	if errors.Is(err, healpix.ErrInvalidResolution) {
		return nil, router.BadRequest(err)
	}
	return res, err
}

func writeTable(w http.ResponseWriter, t *transport.Table) error {
	w.Header().Set("Content-Type", arrowStream)
	w.Header().Set("X-Rows", strconv.Itoa(t.NumRows()))
	return transport.WriteIPC(w, t)
}

func (h *Handlers) Table(w http.ResponseWriter, r *http.Request) error {
	res, err := h.fetch(r)
	if err != nil {
		return err
	}
	defer res.Release()
	return writeTable(w, res.Data)
}

func (h *Handlers) Track(w http.ResponseWriter, r *http.Request) error {
	res, err := h.fetch(r)
	if err != nil {
		return err
	}
	defer res.Release()
	if res.MostProbable == nil {
		return router.NotFound(fmt.Errorf("dataset has no track"))
	}
	return writeTable(w, res.MostProbable)
}

func (h *Handlers) Line(w http.ResponseWriter, r *http.Request) error {
	res, err := h.fetch(r)
	if err != nil {
		return err
	}
	defer res.Release()
	if res.Line == nil {
		return router.NotFound(fmt.Errorf("dataset has no track"))
	}
	body, err := res.Line.Feature().MarshalJSON()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, err = w.Write(body)
	return err
}
