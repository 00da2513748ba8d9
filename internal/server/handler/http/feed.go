// Package http provides the HTTP handlers of the remote document service.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/atinyakov/OfficeSync/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ChangeFeedService defines the operations required by the FeedHandler.
type ChangeFeedService interface {
	// Users returns one page of users changed since the query watermark.
	Users(ctx context.Context, q feed.Query) (feed.Page[models.User], error)
	// Tasks returns one page of an owner's tasks changed since the query watermark.
	Tasks(ctx context.Context, q feed.Query) (feed.Page[models.Task], error)
	// PutUsers inserts or replaces users.
	PutUsers(ctx context.Context, users []models.User) error
	// PutTasks inserts or replaces tasks.
	PutTasks(ctx context.Context, tasks []models.Task) error
	// TaskCounts returns the task count of each owner.
	TaskCounts(ctx context.Context, owners []string) (map[string]int, error)
}

// FeedHandler serves the change feeds and writes of the document collections.
type FeedHandler struct {
	Service ChangeFeedService
	Logger  *zap.Logger
}

func (h *FeedHandler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Changes handles GET /api/{entity}/changes.
//
// Query parameters: since (RFC 3339 watermark), owner, limit, token.
// It responds with {"data": [...], "token": "...", "hasMore": bool}.
func (h *FeedHandler) Changes(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	params := r.URL.Query()

	since, err := models.ParseTime(params.Get("since"))
	if err != nil {
		http.Error(w, "invalid since", http.StatusBadRequest)
		return
	}
	var limit int
	if s := params.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	q := feed.Query{
		Entity:   entity,
		Owner:    params.Get("owner"),
		Since:    since,
		PageSize: limit,
		Token:    params.Get("token"),
	}

	var page any
	switch entity {
	case models.EntityUsers:
		page, err = h.Service.Users(r.Context(), q)
	case models.EntityTasks:
		page, err = h.Service.Tasks(r.Context(), q)
	default:
		err = &feed.UnsupportedEntityError{Entity: entity}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Put handles PUT /api/{entity} with a JSON array of records.
func (h *FeedHandler) Put(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	var err error
	switch entity {
	case models.EntityUsers:
		var users []models.User
		if err := json.NewDecoder(r.Body).Decode(&users); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		err = h.Service.PutUsers(r.Context(), users)
	case models.EntityTasks:
		var tasks []models.Task
		if err := json.NewDecoder(r.Body).Decode(&tasks); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		err = h.Service.PutTasks(r.Context(), tasks)
	default:
		err = &feed.UnsupportedEntityError{Entity: entity}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TaskStats handles GET /api/tasks/stats?owner=U1&owner=U2.
func (h *FeedHandler) TaskStats(w http.ResponseWriter, r *http.Request) {
	owners := r.URL.Query()["owner"]
	if len(owners) == 0 {
		http.Error(w, feed.ErrMissingFilter.Error(), http.StatusBadRequest)
		return
	}
	counts, err := h.Service.TaskCounts(r.Context(), owners)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": counts})
}

// Health handles GET /api/health. Clients use it as their connectivity probe.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *FeedHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var unsupported *feed.UnsupportedEntityError
	switch {
	case errors.As(err, &unsupported):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, feed.ErrMissingFilter),
		errors.Is(err, feed.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidDocument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log().Error("feed request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
