package request

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestPresent(t *testing.T) {
	req := NewStatic("/users", map[string]string{
		"q":     "ann",
		"empty": "",
		"zero":  "0",
	})

	tests := []struct {
		name string
		want bool
	}{
		{"q", true},
		{"empty", false},
		{"zero", false},
		{"missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Present(req, tt.name); got != tt.want {
				t.Errorf("Present(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if Present(nil, "q") {
		t.Error("nil request has no inputs")
	}
	if !AnyPresent(req, "zero", "q") {
		t.Error("AnyPresent should find q")
	}
	if AnyPresent(req, "zero", "empty") {
		t.Error("AnyPresent should ignore absent inputs")
	}
}

func TestStatic(t *testing.T) {
	params := map[string]string{"b": "2", "a": "1"}
	req := NewStatic("/users/", params)
	params["a"] = "changed"

	if req.Path() != "users" {
		t.Errorf("Path() = %q", req.Path())
	}
	if req.Input("a") != "1" {
		t.Errorf("params were not copied")
	}
	if got := req.String(); got != "users?a=1&b=2" {
		t.Errorf("String() = %q", got)
	}
	if NewStatic("", nil).Path() != "/" {
		t.Error("root path should be /")
	}
}

func TestFromHTTP(t *testing.T) {
	var got Request

	r := chi.NewRouter()
	r.With(Middleware).Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/7?page=2&tag=a&tag=b", nil))

	if got == nil {
		t.Fatal("request was not stored on the context")
	}
	if got.Path() != "users/7" {
		t.Errorf("Path() = %q", got.Path())
	}
	if got.Input("page") != "2" {
		t.Errorf("Input(page) = %q", got.Input("page"))
	}
	if got.Input("tag") != "a,b" {
		t.Errorf("Input(tag) = %q", got.Input("tag"))
	}
	if got.Input("id") != "7" {
		t.Errorf("Input(id) = %q, want route param", got.Input("id"))
	}
	if _, ok := got.Params()["id"]; ok {
		t.Error("route params must not leak into Params")
	}
}

func TestFromContext_Empty(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no request")
	}
}
