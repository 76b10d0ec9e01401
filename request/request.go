// Package request adapts inbound requests to the small view repositories need:
// the parameters, a single input and the path.
package request

import (
	"context"
	"sort"
	"strings"
)

// Request is the request context a repository reads cache fingerprints,
// cache policy inputs and preparer parameters from.
type Request interface {
	// Params returns every parameter of the request.
	Params() map[string]string
	// Input returns the named parameter or "" when it is missing.
	Input(name string) string
	// Path returns the request path without its leading slash, "/" for the root.
	Path() string
}

// Present reports whether name was supplied with a value other than "" or "0".
func Present(req Request, name string) bool {
	if req == nil {
		return false
	}
	v := req.Input(name)
	return v != "" && v != "0"
}

// AnyPresent reports whether at least one of names is present.
func AnyPresent(req Request, names ...string) bool {
	for _, name := range names {
		if Present(req, name) {
			return true
		}
	}
	return false
}

// Static is a Request backed by a map. It is used by tests and by callers
// running repositories outside of an HTTP handler.
type Static struct {
	path   string
	params map[string]string
}

// NewStatic copies params into a new Static request.
func NewStatic(path string, params map[string]string) *Static {
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return &Static{path: normalizePath(path), params: cp}
}

func (s *Static) Params() map[string]string {
	cp := make(map[string]string, len(s.params))
	for k, v := range s.params {
		cp[k] = v
	}
	return cp
}

func (s *Static) Input(name string) string { return s.params[name] }

func (s *Static) Path() string { return s.path }

// String renders the request as path?k=v&..., keys sorted.
func (s *Static) String() string {
	if len(s.params) == 0 {
		return s.path
	}
	keys := make([]string, 0, len(s.params))
	for k := range s.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + s.params[k]
	}
	return s.path + "?" + strings.Join(pairs, "&")
}

type ctxKey struct{}

// WithRequest stores req on ctx.
func WithRequest(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, ctxKey{}, req)
}

// FromContext returns the request stored by WithRequest or Middleware.
func FromContext(ctx context.Context) (Request, bool) {
	if ctx == nil {
		return nil, false
	}
	req, ok := ctx.Value(ctxKey{}).(Request)
	return req, ok && req != nil
}

func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return p
}
