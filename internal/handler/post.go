package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"bapmate/internal/httputil"
	"bapmate/internal/model"
)

// Posts is the post registry.
type Posts interface {
	Create(ctx context.Context, authorID string, req model.CreatePostRequest) (*model.Post, error)
	GetByID(ctx context.Context, postID string) (*model.Post, error)
	List(ctx context.Context, before *time.Time, limit int) (*model.PostListResponse, error)
	Delete(ctx context.Context, postID, userID string) error
}

// Hotspots ranks regions by recent posts.
type Hotspots interface {
	Hotspots(ctx context.Context, days, topN int) (*model.HotspotListResponse, error)
}

type PostHandler struct {
	posts    Posts
	hotspots Hotspots
}

func NewPostHandler(posts Posts, hotspots Hotspots) *PostHandler {
	return &PostHandler{posts: posts, hotspots: hotspots}
}

// Create handles POST /posts
// The body's region and coordinates may come under several field names;
// they are canonicalised here.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	req, err := model.ParseCreatePostRequest(body)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	post, err := h.posts.Create(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, "PostHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, post)
}

// List handles GET /posts?before=<RFC3339>&limit=<n>
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteBadRequest(w, "before must be an RFC3339 timestamp")
			return
		}
		before = &t
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	resp, err := h.posts.List(r.Context(), before, limit)
	if err != nil {
		writeServiceError(w, "PostHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// GetByID handles GET /posts/{id}
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, "PostHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), id, userID); err != nil {
		writeServiceError(w, "PostHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Hotspots handles GET /posts/hotspots?days=<n>&top=<n>
func (h *PostHandler) Hotspots(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, "days")
	if !ok {
		return
	}
	top, ok := queryInt(w, r, "top")
	if !ok {
		return
	}

	resp, err := h.hotspots.Hotspots(r.Context(), days, top)
	if err != nil {
		writeServiceError(w, "PostHandler", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// queryInt parses an optional non-negative integer query parameter; absent is 0.
func queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		httputil.WriteBadRequest(w, "Invalid "+key+" parameter")
		return 0, false
	}
	return n, true
}
