// Package api serves a read-only HTTP view of the catalog.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"omnia/internal/catalog"
)

// Catalog is the part of catalog.Service the API reads from.
type Catalog interface {
	Ping(ctx context.Context) error
	ListCollections(ctx context.Context) ([]*catalog.Collection, error)
	FindCollection(ctx context.Context, name string) (*catalog.Collection, error)
	CollectionFiles(ctx context.Context, name string) (*catalog.Collection, []*catalog.FileObject, error)
	CountCollectionFiles(ctx context.Context, c *catalog.Collection) (int, error)
	DescribeFile(ctx context.Context, path string) ([]catalog.FileDetail, error)
	Query(ctx context.Context, kind string, filter catalog.Filter, caseSensitive bool) ([]catalog.Document, error)
}

var _ Catalog = (*catalog.Service)(nil)

// MaxQueryBody bounds the size of a query request body.
const MaxQueryBody = 1 << 20

// CountTTL is how long a collection's file count is served from memory.
const CountTTL = 10 * time.Second

// Handler serves the catalog endpoints.
type Handler struct {
	cat     Catalog
	logger  *slog.Logger
	version string
	counts  *gocache.Cache
}

// NewHandler creates a handler over cat. A nil logger discards logs.
func NewHandler(cat Catalog, logger *slog.Logger, version string) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		cat:     cat,
		logger:  logger,
		version: version,
		counts:  gocache.New(CountTTL, time.Minute),
	}
}

// countFiles returns the member count of c, cached by collection pk.
func (h *Handler) countFiles(ctx context.Context, c *catalog.Collection) (int, error) {
	if n, ok := h.counts.Get(c.PK()); ok {
		return n.(int), nil
	}
	n, err := h.cat.CountCollectionFiles(ctx, c)
	if err != nil {
		return 0, err
	}
	h.counts.SetDefault(c.PK(), n)
	return n, nil
}

// Routes returns the API with request-ID and logging middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/healthz", h.Liveness)
	mux.HandleFunc("GET /v1/readyz", h.Readiness)

	mux.HandleFunc("GET /v1/collections", h.ListCollections)
	mux.HandleFunc("GET /v1/collections/{name}", h.GetCollection)
	mux.HandleFunc("GET /v1/collections/{name}/files", h.CollectionFiles)

	mux.HandleFunc("GET /v1/files", h.DescribeFile)

	mux.HandleFunc("POST /v1/query/{kind}", limitBody(MaxQueryBody, h.Query))

	return withRequestID(logging(h.logger)(mux))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, env := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", "req_id", RequestIDFromContext(r.Context()), "error", err)
	}
	writeEnvelope(w, r, status, env)
}

// Liveness reports that the process is serving.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, map[string]string{"status": "ok", "version": h.version})
}

// Readiness reports whether the store answers.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.cat.Ping(ctx); err != nil {
		h.logger.Error("store ping failed", "req_id", RequestIDFromContext(r.Context()), "error", err)
		writeFail(w, r, http.StatusServiceUnavailable, CodeInternal, "store unavailable")
		return
	}
	writeData(w, r, map[string]string{"status": "ready"})
}

// ListCollections returns every collection with its file count.
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	all, err := h.cat.ListCollections(r.Context())
	if err != nil {
		h.fail(w, r, "list collections", err)
		return
	}
	views := make([]CollectionView, 0, len(all))
	for _, c := range all {
		n, err := h.countFiles(r.Context(), c)
		if err != nil {
			h.fail(w, r, "list collections", err)
			return
		}
		v := collectionView(c)
		v.Files = &n
		views = append(views, v)
	}
	writeData(w, r, views)
}

// GetCollection returns one collection by name.
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	c, err := h.cat.FindCollection(r.Context(), name)
	if err != nil {
		h.fail(w, r, "get collection", err)
		return
	}
	if c == nil {
		writeFail(w, r, http.StatusNotFound, CodeNotFound, "collection "+strconv.Quote(name)+" not found")
		return
	}
	n, err := h.countFiles(r.Context(), c)
	if err != nil {
		h.fail(w, r, "get collection", err)
		return
	}
	v := collectionView(c)
	v.Files = &n
	writeData(w, r, v)
}

// CollectionFiles returns the files of a collection.
func (h *Handler) CollectionFiles(w http.ResponseWriter, r *http.Request) {
	_, files, err := h.cat.CollectionFiles(r.Context(), r.PathValue("name"))
	if err != nil {
		h.fail(w, r, "collection files", err)
		return
	}
	views := make([]FileView, 0, len(files))
	for _, f := range files {
		views = append(views, fileView(f))
	}
	writeData(w, r, views)
}

// DescribeFile returns the records registered at ?path=.
func (h *Handler) DescribeFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeFail(w, r, http.StatusBadRequest, CodeBadRequest, "path query parameter is required")
		return
	}
	details, err := h.cat.DescribeFile(r.Context(), path)
	if err != nil {
		h.fail(w, r, "describe file", err)
		return
	}
	views := make([]FileView, 0, len(details))
	for _, d := range details {
		views = append(views, fileDetailView(d))
	}
	writeData(w, r, views)
}

// QueryRequest is the body of POST /v1/query/{kind}.
type QueryRequest struct {
	Filter        catalog.Filter `json:"filter"`
	CaseSensitive bool           `json:"case_sensitive,omitempty"`
}

// Query runs a filter against one document kind.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFail(w, r, http.StatusRequestEntityTooLarge, CodeBadRequest, "request body too large")
			return
		}
		writeFail(w, r, http.StatusBadRequest, CodeInvalidJSON, "invalid JSON body: "+err.Error())
		return
	}
	if req.Filter == nil {
		req.Filter = catalog.Filter{}
	}

	docs, err := h.cat.Query(r.Context(), r.PathValue("kind"), req.Filter, req.CaseSensitive)
	if err != nil {
		h.fail(w, r, "query", err)
		return
	}
	if docs == nil {
		docs = []catalog.Document{}
	}
	writeData(w, r, docs)
}
