// Package mediahttp exposes a media.Store over HTTP with a chi router.
//
// Routes, relative to where the router is mounted:
//
//	POST   /{ownerType}/{ownerID}/media   multipart upload, 201
//	GET    /{ownerType}/{ownerID}/media   list, ?group= filters
//	DELETE /{ownerType}/{ownerID}/media   delete a group (?group=) or all
//	GET    /media/{id}                    one record
//	PATCH  /media/{id}                    JSON attrs, 204
//	DELETE /media/{id}                    204, or 404 when unknown
//
// Replies use the {"data": ..., "error": {"code", "message"}} envelope.
package mediahttp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/mediakit/pkg/media"
	"github.com/dmitrymomot/mediakit/pkg/requestid"
)

// DefaultMaxMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const DefaultMaxMemory = 32 << 20

// Handler serves one media.Store.
type Handler struct {
	store     *media.Store
	log       *slog.Logger
	metrics   *Metrics
	maxMemory int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger logs server-side failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMetrics records request and upload metrics.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMaxMemory overrides DefaultMaxMemory.
func WithMaxMemory(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxMemory = n
		}
	}
}

// New creates a Handler for store.
func New(store *media.Store, opts ...Option) *Handler {
	h := &Handler{
		store:     store,
		log:       slog.New(slog.DiscardHandler),
		maxMemory: DefaultMaxMemory,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the routes ready to be mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}

	r.Post("/{ownerType}/{ownerID}/media", h.upload)
	r.Get("/{ownerType}/{ownerID}/media", h.list)
	r.Delete("/{ownerType}/{ownerID}/media", h.deleteGroup)

	r.Get("/media/{id}", h.get)
	r.Patch("/media/{id}", h.update)
	r.Delete("/media/{id}", h.deleteOne)

	return r
}

// typeLabel bounds metric cardinality to the owner type directory name.
func typeLabel(typ string) string {
	return media.Transliterate(path.Base(strings.ReplaceAll(typ, `\`, "/")))
}

func ownerFrom(r *http.Request) media.OwnerRef {
	typ, err := url.PathUnescape(chi.URLParam(r, "ownerType"))
	if err != nil {
		typ = ""
	}
	id, err := url.PathUnescape(chi.URLParam(r, "ownerID"))
	if err != nil {
		id = ""
	}
	return media.OwnerRef{Type: typ, ID: id}
}

func (h *Handler) view(rec media.Record) RecordResponse {
	return RecordResponse{Record: rec, URL: h.store.URL(rec), DisplayTitle: rec.DisplayTitle()}
}

// upload saves every "file" part in order. A multi-file request is not
// atomic: when part N fails, parts before it stay attached and are returned
// in the data field of the error response.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if err := owner.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	if limit := h.store.Config().MaxFileSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+h.maxMemory)
	}
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		h.writeError(w, r, fmt.Errorf("%w: missing file part", media.ErrInvalidUpload))
		return
	}

	mode, err := media.ParseMode(r.FormValue("mode"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	attrs, err := formAttrs(r.MultipartForm)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	group := r.FormValue("group")

	saved := make([]RecordResponse, 0, len(files))
	for i, fh := range files {
		// Only the first file may replace the group; the rest join it.
		m := mode
		if i > 0 {
			m = media.Multiple
		}
		rec, err := h.save(r, owner, fh, group, m, attrs)
		if err != nil {
			// Files saved so far stay attached; report them with the error.
			if len(saved) > 0 {
				h.writePartialError(w, r, fmt.Errorf("%s: %w", fh.Filename, err), saved)
				return
			}
			h.writeError(w, r, err)
			return
		}
		h.metrics.observeUpload(typeLabel(owner.Type), rec.Size)
		saved = append(saved, h.view(*rec))
	}

	if len(saved) == 1 {
		writeJSON(w, http.StatusCreated, Response{Data: saved[0]})
		return
	}
	writeJSON(w, http.StatusCreated, Response{Data: saved})
}

func (h *Handler) save(r *http.Request, owner media.OwnerRef, fh *multipart.FileHeader, group string, mode media.Mode, attrs media.Attrs) (*media.Record, error) {
	up, closeFn, err := media.UploadFromFileHeader(fh)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeFn() }()

	return h.store.Save(r.Context(), owner, up, group, mode, attrs)
}

func formAttrs(form *multipart.Form) (media.Attrs, error) {
	var attrs media.Attrs
	value := func(key string) *string {
		if v, ok := form.Value[key]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}

	attrs.Name = value("name")
	attrs.Alt = value("alt")
	attrs.Title = value("title")
	if w := value("weight"); w != nil {
		n, err := strconv.Atoi(*w)
		if err != nil {
			return attrs, fmt.Errorf("%w: weight must be an integer", ErrInvalidRequest)
		}
		attrs.Weight = &n
	}

	return attrs, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.List(r.Context(), ownerFrom(r), r.URL.Query().Get("group"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, h.view(rec))
	}
	writeJSON(w, http.StatusOK, Response{Data: out})
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Delete(r.Context(), ownerFrom(r), r.URL.Query().Get("group"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: map[string]int{"deleted": n}})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: h.view(*rec)})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var attrs media.Attrs
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&attrs); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	if err := h.store.UpdateMetadata(r.Context(), chi.URLParam(r, "id"), attrs); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteOne(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		h.writeError(w, r, media.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
