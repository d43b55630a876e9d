package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnia/internal/catalog"
	"omnia/internal/testutil"
)

type rawEnvelope struct {
	Error *APIError       `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// seeded returns a catalog with collections GWAS (two files) and eQTL (empty)
// and the directory holding the files.
func seeded(t *testing.T) (*testutil.TestService, string) {
	t.Helper()
	ctx := context.Background()

	svc := testutil.NewTestService(t)
	_, err := svc.CreateCollection(ctx, "GWAS", catalog.WithDescription("height study"), catalog.WithTags("gwas"))
	require.NoError(t, err)
	_, err = svc.CreateCollection(ctx, "eQTL")
	require.NoError(t, err)

	dir := t.TempDir()
	a := testutil.WriteFile(t, dir, "a.vcf", "A")
	b := testutil.WriteFile(t, dir, "b.vcf", "B")
	_, err = svc.Register(ctx, []string{a, b}, "GWAS", catalog.RegisterOptions{ComputeMetadata: true})
	require.NoError(t, err)
	return svc, dir
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, rawEnvelope) {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env rawEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w, env
}

func TestHandler_Health(t *testing.T) {
	svc, _ := seeded(t)
	h := NewHandler(svc, nil, "1.2.3").Routes()

	w, env := do(t, h, http.MethodGet, "/v1/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, string(env.Data))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w, _ = do(t, h, http.MethodGet, "/v1/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

type downCatalog struct{ Catalog }

func (downCatalog) Ping(context.Context) error { return errors.New("connection refused") }

func TestHandler_ReadinessDown(t *testing.T) {
	svc, _ := seeded(t)
	h := NewHandler(downCatalog{svc}, nil, "").Routes()

	w, env := do(t, h, http.MethodGet, "/v1/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeInternal, env.Error.Code)
}

func TestHandler_RequestIDPropagates(t *testing.T) {
	svc, _ := seeded(t)
	h := NewHandler(svc, nil, "").Routes()

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestHandler_ListCollections(t *testing.T) {
	svc, _ := seeded(t)
	h := NewHandler(svc, nil, "").Routes()

	w, env := do(t, h, http.MethodGet, "/v1/collections", "")
	require.Equal(t, http.StatusOK, w.Code)

	var views []CollectionView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 2)
	assert.Equal(t, "GWAS", views[0].Name)
	require.NotNil(t, views[0].Files)
	assert.Equal(t, 2, *views[0].Files)
	assert.Equal(t, "eQTL", views[1].Name)
	assert.Equal(t, 0, *views[1].Files)
}

func TestHandler_GetCollection(t *testing.T) {
	svc, _ := seeded(t)
	h := NewHandler(svc, nil, "").Routes()

	w, env := do(t, h, http.MethodGet, "/v1/collections/GWAS", "")
	require.Equal(t, http.StatusOK, w.Code)
	var v CollectionView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, "height study", v.Description)
	assert.Equal(t, []string{"gwas"}, v.Tags)
	assert.NotEmpty(t, v.Key)

	w, env = do(t, h, http.MethodGet, "/v1/collections/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeNotFound, env.Error.Code)
}

func TestHandler_CollectionFiles(t *testing.T) {
	svc, dir := seeded(t)
	h := NewHandler(svc, nil, "").Routes()

	w, env := do(t, h, http.MethodGet, "/v1/collections/GWAS/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	var files []FileView
	require.NoError(t, json.Unmarshal(env.Data, &files))
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.vcf"), files[0].Path)
	require.NotNil(t, files[0].Checksum)
	assert.Equal(t, testutil.SHA256Hex([]byte("A")), *files[0].Checksum)

	w, env = do(t, h, http.MethodGet, "/v1/collections/eQTL/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	w, _ = do(t, h, http.MethodGet, "/v1/collections/nope/files", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_DescribeFile(t *testing.T) {
	svc, dir := seeded(t)
	h := NewHandler(svc, nil, "").Routes()

	target := "/v1/files?path=" + url.QueryEscape(filepath.Join(dir, "b.vcf"))
	w, env := do(t, h, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, w.Code)
	var files []FileView
	require.NoError(t, json.Unmarshal(env.Data, &files))
	require.Len(t, files, 1)
	assert.Equal(t, []string{"GWAS"}, files[0].Collections)
	assert.Equal(t, "test-host", files[0].Host)

	w, env = do(t, h, http.MethodGet, "/v1/files", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeBadRequest, env.Error.Code)
}

func TestHandler_Query(t *testing.T) {
	svc, _ := seeded(t)
	h := NewHandler(svc, nil, "").Routes()

	tests := []struct {
		name     string
		kind     string
		body     string
		wantCode int
		wantErr  string
		wantN    int
	}{
		{name: "by name", kind: "collections", body: `{"filter": {"name": "GWAS"}}`, wantCode: http.StatusOK, wantN: 1},
		{name: "case folded", kind: "collections", body: `{"filter": {"name": "gwas"}}`, wantCode: http.StatusOK, wantN: 1},
		{name: "case sensitive", kind: "collections", body: `{"filter": {"name": "gwas"}, "case_sensitive": true}`, wantCode: http.StatusOK, wantN: 0},
		{name: "empty filter", kind: "file_objects", body: `{}`, wantCode: http.StatusOK, wantN: 2},
		{name: "unknown kind", kind: "widgets", body: `{}`, wantCode: http.StatusBadRequest, wantErr: CodeBadRequest},
		{name: "invalid json", kind: "collections", body: `{"filter":`, wantCode: http.StatusBadRequest, wantErr: CodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, h, http.MethodPost, "/v1/query/"+tt.kind, tt.body)
			require.Equal(t, tt.wantCode, w.Code, "body: %s", w.Body.String())
			if tt.wantErr != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantErr, env.Error.Code)
				return
			}
			var docs []map[string]any
			require.NoError(t, json.Unmarshal(env.Data, &docs))
			assert.Len(t, docs, tt.wantN)
		})
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	svc, _ := seeded(t)
	h := NewHandler(svc, nil, "").Routes()

	req := httptest.NewRequest(http.MethodDelete, "/v1/collections/GWAS", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: catalog.ErrValidation, status: http.StatusBadRequest, code: CodeBadRequest},
		{err: catalog.ErrNotFound, status: http.StatusNotFound, code: CodeNotFound},
		{err: catalog.ErrConflict, status: http.StatusConflict, code: CodeConflict},
		{err: catalog.ErrIntegrity, status: http.StatusInternalServerError, code: CodeIntegrity},
		{err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, env := mapError(tt.err)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	_, env := mapError(errors.New("secret path /etc/x"))
	assert.NotContains(t, env.Error.Text, "secret", "internal errors must not leak detail")
}

func TestServer_ServeAndShutdown(t *testing.T) {
	svc, _ := seeded(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), NewHandler(svc, nil, "v"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/v1/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

type countingCatalog struct {
	Catalog
	calls int
}

func (c *countingCatalog) CountCollectionFiles(ctx context.Context, col *catalog.Collection) (int, error) {
	c.calls++
	return c.Catalog.CountCollectionFiles(ctx, col)
}

func TestHandler_FileCountsAreCached(t *testing.T) {
	svc, _ := seeded(t)
	cat := &countingCatalog{Catalog: svc}
	h := NewHandler(cat, nil, "").Routes()

	for i := 0; i < 3; i++ {
		w, _ := do(t, h, http.MethodGet, "/v1/collections", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, _ := do(t, h, http.MethodGet, "/v1/collections/GWAS", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, cat.calls, "one count per collection")
}
