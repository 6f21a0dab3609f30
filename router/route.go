package router

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/metrico/healpipe/modules"
	"github.com/metrico/healpipe/utils"
)

// HTTPError carries the status code a handler error is answered with.
type HTTPError struct {
	Code int
	Err  error
}

func (e *HTTPError) Error() string {
	return e.Err.Error()
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NotFound(err error) error {
	return &HTTPError{Code: http.StatusNotFound, Err: err}
}

func BadRequest(err error) error {
	return &HTTPError{Code: http.StatusBadRequest, Err: err}
}

func WithErrorHandle(hndl func(w http.ResponseWriter, r *http.Request) error,
) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		err := hndl(w, r)
		if err == nil {
			return
		}
		code := http.StatusInternalServerError
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			code = httpErr.Code
		}
		utils.Logger().Warn("request failed", "path", r.URL.Path, "code", code, "error", err)
		w.WriteHeader(code)
		w.Write([]byte(err.Error()))
	}
}

// Router is the mux backed implementation of modules.Api.
type Router struct {
	*mux.Router
}

var _ modules.Api = &Router{}

func NewRouter() *Router {
	return &Router{Router: mux.NewRouter()}
}

func (r *Router) RegisterRoute(route *modules.Route) {
	r.HandleFunc(route.Path, WithErrorHandle(route.Handler)).Methods(route.Methods...)
}

func (r *Router) GetPathParams(req *http.Request) map[string]string {
	return mux.Vars(req)
}
