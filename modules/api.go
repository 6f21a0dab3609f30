package modules

import "net/http"

// Api is the surface a module registers its routes on.
type Api interface {
	RegisterRoute(r *Route)
	GetPathParams(r *http.Request) map[string]string
}

type Route struct {
	Path    string
	Methods []string
	Handler func(w http.ResponseWriter, r *http.Request) error
}
