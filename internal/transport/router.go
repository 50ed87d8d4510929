package transport

import "net/http"

type Handler interface {
	presign(w http.ResponseWriter, r *http.Request)
	confirm(w http.ResponseWriter, r *http.Request)
	listUploads(w http.ResponseWriter, r *http.Request)
	getUpload(w http.ResponseWriter, r *http.Request)
	deleteUpload(w http.ResponseWriter, r *http.Request)
	parse(w http.ResponseWriter, r *http.Request)
	createAnalysis(w http.ResponseWriter, r *http.Request)
	listAnalyses(w http.ResponseWriter, r *http.Request)
	getAnalysis(w http.ResponseWriter, r *http.Request)
	render(w http.ResponseWriter, r *http.Request)
	healthz(w http.ResponseWriter, r *http.Request)
}

type router struct {
	h        Handler
	withAuth func(http.Handler) http.Handler
}

func NewRouter(h Handler, withAuth func(http.Handler) http.Handler) *router {
	return &router{h: h, withAuth: withAuth}
}

// MountRoutes registers the API surface. Everything except /healthz sits
// behind the auth middleware.
func (r *router) MountRoutes(mux *http.ServeMux) *http.ServeMux {
	api := http.NewServeMux()
	api.HandleFunc("POST /uploads/presign", r.h.presign)
	api.HandleFunc("POST /uploads/confirm", r.h.confirm)
	api.HandleFunc("GET /uploads", r.h.listUploads)
	api.HandleFunc("GET /uploads/{uploadId}", r.h.getUpload)
	api.HandleFunc("DELETE /uploads/{uploadId}", r.h.deleteUpload)
	api.HandleFunc("POST /uploads/{uploadId}/parse", r.h.parse)
	api.HandleFunc("POST /uploads/{uploadId}/analyses", r.h.createAnalysis)
	api.HandleFunc("GET /uploads/{uploadId}/analyses", r.h.listAnalyses)
	api.HandleFunc("GET /uploads/{uploadId}/analyses/{analysisId}", r.h.getAnalysis)
	api.HandleFunc("POST /uploads/{uploadId}/analyses/{analysisId}/render", r.h.render)

	mux.HandleFunc("GET /healthz", r.h.healthz)
	mux.Handle("/", r.withAuth(api))

	return mux
}
