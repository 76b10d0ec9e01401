package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/pkg/di"
	"github.com/goliatone/go-repository-kit/prepare"
	"github.com/goliatone/go-repository-kit/repository"
	"github.com/goliatone/go-repository-kit/request"
)

const (
	defaultPerPage = 15
	maxPerPage     = 100
)

type api struct {
	users  *repository.Repository[User]
	logger *zap.Logger
}

func newAPI(c *di.Container, db bun.IDB) (*api, error) {
	users, err := di.NewRepository[User](c, db,
		repository.WithTransformer(userTransformer),
		repository.WithMutator(userMutator{db: db}),
		repository.WithPreparer(prepare.ForModel(db, User{}, prepare.WithLogger(c.Logger()))),
		repository.WithRelations(repository.Relations("Posts")...),
	)
	if err != nil {
		return nil, err
	}
	return &api{users: users, logger: c.Logger()}, nil
}

func (a *api) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(request.Middleware)
	r.Use(a.logRequests)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", a.listUsers)
		r.Post("/", a.createUser)
		r.Get("/{id}", a.showUser)
		r.Patch("/{id}", a.updateUser)
		r.Delete("/{id}", a.deleteUser)
	})
	r.Post("/cache/flush", a.flushCache)
	return r
}

// repo returns a copy of the users repository bound to the current request.
func (a *api) repo(r *http.Request) (*repository.Repository[User], request.Request) {
	req, _ := request.FromContext(r.Context())
	return a.users.Scoped().ForRequest(req), req
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	repo, req := a.repo(r)

	perPage := defaultPerPage
	if request.Present(req, "per_page") {
		n, err := strconv.Atoi(req.Input("per_page"))
		if err != nil || n < 1 || n > maxPerPage {
			a.writeError(w, r, goerrors.New("per_page must be between 1 and 100", goerrors.CategoryBadInput))
			return
		}
		perPage = n
	}

	if request.Present(req, "active") {
		repo.PushCriteria(activeUsers())
	}
	if request.Present(req, "search") {
		repo.PushCriteria(search(req.Input("search")))
	}

	repo.AfterPaginated(func(p *repository.Page[User]) {
		if perPage != defaultPerPage {
			p.Append("per_page", strconv.Itoa(perPage))
		}
	})

	// free text searches are too sparse to be worth caching
	repo.DoNotCacheWhenInputs("search").
		CacheByTTLWhenInputs([]string{prepare.FilterParam + "[status]"}, 0).
		Cachable("", nil, 0)

	res, err := repo.Paginate(r.Context(), perPage)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, res.Resource)
}

func (a *api) showUser(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	repo, _ := a.repo(r)

	res, err := repo.Cachable("", nil, 0).Find(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if res.Empty() {
		a.writeError(w, r, goerrors.New("user not found", goerrors.CategoryNotFound))
		return
	}
	a.writeJSON(w, http.StatusOK, res.Resource)
}

func (a *api) createUser(w http.ResponseWriter, r *http.Request) {
	attrs, ok := a.decodeAttributes(w, r)
	if !ok {
		return
	}
	repo, _ := a.repo(r)

	res, err := repo.Create(r.Context(), attrs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, res.Resource)
}

func (a *api) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	attrs, ok := a.decodeAttributes(w, r)
	if !ok {
		return
	}
	repo, _ := a.repo(r)

	res, err := repo.UpdateByID(r.Context(), id, attrs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, res.Resource)
}

func (a *api) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	repo, _ := a.repo(r)

	n, err := repo.Delete(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if n == 0 {
		a.writeError(w, r, goerrors.New("user not found", goerrors.CategoryNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) flushCache(w http.ResponseWriter, r *http.Request) {
	if err := a.users.FlushCache(r.Context()); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		a.writeError(w, r, goerrors.New("id must be a positive integer", goerrors.CategoryBadInput))
		return 0, false
	}
	return id, true
}

func (a *api) decodeAttributes(w http.ResponseWriter, r *http.Request) (repository.Attributes, bool) {
	var attrs repository.Attributes
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		a.writeError(w, r, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid JSON body"))
		return nil, false
	}
	// clients never pick ids
	delete(attrs, "id")
	return attrs, true
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	var e *goerrors.Error
	if !errors.As(err, &e) {
		e = goerrors.Wrap(err, goerrors.CategoryInternal, "internal error")
	}
	e = e.Clone().WithCode(status).WithRequestID(middleware.GetReqID(r.Context()))
	a.writeJSON(w, status, map[string]any{"error": e})
}

func statusFor(err error) int {
	switch {
	case repository.IsNotFound(err), goerrors.IsNotFound(err):
		return http.StatusNotFound
	case repository.IsInvalidArgument(err), goerrors.IsCategory(err, goerrors.CategoryBadInput):
		return http.StatusBadRequest
	case goerrors.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
