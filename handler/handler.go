// Package handler provides the HTTP handlers for the item store.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/stevemurr/item-store/metrics"
	"github.com/stevemurr/item-store/schema"
	"github.com/stevemurr/item-store/store"
)

// Items is the part of *store.ItemStore the handlers use.
type Items interface {
	List() []store.Item
	Len() int
	Get(id int64) (store.Item, error)
	Create(fields map[string]any) (store.Item, error)
	Update(id int64, patch map[string]any) (store.Item, error)
	Delete(id int64) error
	DeleteAll() error
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	items          Items
	schema         *schema.Validator
	log            zerolog.Logger
	metrics        *metrics.Metrics
	maxBodyBytes   int64
	allowedOrigins []string

	mux  *http.ServeMux
	root http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the base logger for access and error logs.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithSchema validates create and update bodies against s.
func WithSchema(s *schema.Validator) Option {
	return func(h *Handler) { h.schema = s }
}

// WithMetrics records request metrics and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) { h.maxBodyBytes = n }
}

// WithAllowedOrigins sets the CORS origins. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.allowedOrigins = origins }
}

// New creates a Handler and wires up all routes.
func New(items Items, opts ...Option) *Handler {
	h := &Handler{
		items:          items,
		log:            zerolog.Nop(),
		maxBodyBytes:   1 << 20,
		allowedOrigins: []string{"*"},
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.routes()
	h.root = h.middleware(h.mux)
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /{$}", h.index)
	h.mux.HandleFunc("GET /health", h.health)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics.Handler())
	}

	h.mux.HandleFunc("GET /items", h.listItems)
	h.mux.HandleFunc("POST /items", h.createItem)
	h.mux.HandleFunc("DELETE /items", h.deleteAllItems)
	h.mux.HandleFunc("GET /items/{id}", h.getItem)
	h.mux.HandleFunc("PUT /items/{id}", h.updateItem)
	h.mux.HandleFunc("PATCH /items/{id}", h.updateItem)
	h.mux.HandleFunc("DELETE /items/{id}", h.deleteItem)
}

// ---------- helpers ----------

const msgNotFound = "Item not found"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeStoreError maps store errors onto HTTP responses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, store.ErrIDImmutable):
		writeError(w, http.StatusBadRequest, "Item id cannot be changed")
	case errors.Is(err, store.ErrStorageWrite):
		hlog.FromRequest(r).Error().Err(err).Msg("persist failed")
		writeError(w, http.StatusInternalServerError, "Failed to persist items")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("store error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// readObject decodes a request body that must be a single JSON object.
// On failure it writes the response and returns false.
func (h *Handler) readObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))

	var obj map[string]any
	err := dec.Decode(&obj)
	if err == nil && obj == nil {
		err = errors.New("body is null")
	}
	if err == nil {
		if extra := dec.Decode(&struct{}{}); extra != io.EOF {
			err = errors.New("unexpected data after JSON object")
			var tooLarge *http.MaxBytesError
			if errors.As(extra, &tooLarge) {
				err = extra
			}
		}
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object: "+err.Error())
		return nil, false
	}
	return obj, true
}

// pathID parses the {id} path value. A malformed id can never match an item.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// ---------- status endpoints ----------

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Item Store",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"items":  h.items.Len(),
	})
}

// ---------- item CRUD ----------

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.items.List())
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	it, err := h.items.Get(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.readObject(w, r)
	if !ok {
		return
	}
	delete(fields, store.IDField)
	if err := h.schema.Validate(fields); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Schema validation failed: "+err.Error())
		return
	}
	it, err := h.items.Create(fields)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	patch, ok := h.readObject(w, r)
	if !ok {
		return
	}
	// id is checked by the store, not the schema.
	check := make(map[string]any, len(patch))
	for k, v := range patch {
		if k != store.IDField {
			check[k] = v
		}
	}
	if err := h.schema.ValidatePatch(check); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Schema validation failed: "+err.Error())
		return
	}
	it, err := h.items.Update(id, patch)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err := h.items.Delete(id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAllItems(w http.ResponseWriter, r *http.Request) {
	if err := h.items.DeleteAll(); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
