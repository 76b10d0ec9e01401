package request

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// HTTP adapts an *http.Request. Query values take precedence; Input falls back
// to chi route parameters so handlers can read `{id}` the same way.
type HTTP struct {
	req    *http.Request
	params map[string]string
}

// FromHTTP builds a Request view of r. Repeated query values are joined with ",".
func FromHTTP(r *http.Request) *HTTP {
	query := r.URL.Query()
	params := make(map[string]string, len(query))
	for name, values := range query {
		params[name] = strings.Join(values, ",")
	}
	return &HTTP{req: r, params: params}
}

func (h *HTTP) Params() map[string]string {
	cp := make(map[string]string, len(h.params))
	for k, v := range h.params {
		cp[k] = v
	}
	return cp
}

func (h *HTTP) Input(name string) string {
	if v, ok := h.params[name]; ok {
		return v
	}
	return chi.URLParam(h.req, name)
}

func (h *HTTP) Path() string {
	return normalizePath(h.req.URL.Path)
}

// Middleware stores a Request view of every inbound request on its context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithRequest(r.Context(), FromHTTP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
