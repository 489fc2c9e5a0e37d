package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
)

// NewRouter builds the mux router and wraps it in the request middleware
// chain. The chain sits outside the router so unmatched paths and methods
// (404/405) and CORS preflight requests get request ids, access logs and
// panic recovery too.
func NewRouter(h *Handler, requestTimeout time.Duration) http.Handler {
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		cors,
		middleware.Timeout(requestTimeout),
	}
	var out http.Handler = r
	for i := len(chain) - 1; i >= 0; i-- {
		out = chain[i](out)
	}
	return out
}

// cors allows any origin, method and header.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
			hdr.Set("Access-Control-Allow-Headers", req)
		} else {
			hdr.Set("Access-Control-Allow-Headers", "*")
		}
		hdr.Set("Access-Control-Expose-Headers", SessionHeader)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
