package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/blobstore"
	"github.com/hupe1980/spfresh/prommetrics"
	"github.com/hupe1980/spfresh/testutil"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) do(method, path string, body any) (int, envelope) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func newTestServer(t *testing.T, opts Options) (*Server, *spfresh.Index) {
	t.Helper()
	idx, err := spfresh.New(4, spfresh.WithThreads(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return New(idx, opts), idx
}

func TestServer_Lifecycle(t *testing.T) {
	store := blobstore.NewMemoryStore()
	srv, _ := newTestServer(t, Options{Store: store, MaxBodyBytes: 1 << 20})
	c := &client{t: t, h: srv.Handler()}

	code, env := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", env.Status)

	// Search before build.
	code, env = c.do(http.MethodPost, "/api/search", searchRequest{Vector: []float32{0, 0, 0, 0}, K: 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", env.Status)

	vecs := testutil.NewRNG(1).UniformVectors(200, 4)
	meta := make([]string, len(vecs))
	for i := range meta {
		meta[i] = "doc"
	}
	meta[7] = "seven"
	code, env = c.do(http.MethodPost, "/api/vectors", addRequest{Vectors: vecs, Metadata: meta})
	require.Equal(t, http.StatusOK, code, env.Error)
	var added struct {
		IDs    []uint64 `json:"ids"`
		Staged bool     `json:"staged"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &added))
	assert.Len(t, added.IDs, 200)
	assert.True(t, added.Staged)

	code, env = c.do(http.MethodPost, "/api/build", nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = c.do(http.MethodPost, "/api/search", searchRequest{Vector: vecs[7], K: 3, IncludeMetadata: true})
	require.Equal(t, http.StatusOK, code, env.Error)
	var found struct {
		Results []searchHit `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &found))
	require.Len(t, found.Results, 3)
	assert.Equal(t, uint64(7), found.Results[0].ID)
	assert.Equal(t, "seven", found.Results[0].Metadata)

	code, env = c.do(http.MethodPost, "/api/search", searchRequest{Vector: vecs[7], K: 3, Allow: []uint64{1, 2}, MaxHeads: 1 << 10})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &found))
	assert.Len(t, found.Results, 2)

	code, env = c.do(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, code)
	var st statsResponse
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "ready", st.State)
	assert.Equal(t, 200, st.Vectors)

	code, env = c.do(http.MethodPost, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	loaded, err := spfresh.OpenFrom(context.Background(), store)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, 200, loaded.Len())
}

func TestServer_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, Options{MaxBodyBytes: 64})
	c := &client{t: t, h: srv.Handler()}

	code, env := c.do(http.MethodPost, "/api/vectors", addRequest{Vectors: [][]float32{{1, 2}}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "dimension")

	code, _ = c.do(http.MethodPost, "/api/vectors", map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	big := addRequest{Vectors: testutil.NewRNG(2).UniformVectors(50, 4)}
	code, _ = c.do(http.MethodPost, "/api/vectors", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)

	code, _ = c.do(http.MethodPost, "/api/build", nil)
	assert.Equal(t, http.StatusBadRequest, code, "no vectors to build from")

	code, env = c.do(http.MethodPost, "/api/snapshot", nil)
	assert.Equal(t, http.StatusNotImplemented, code)
	assert.Equal(t, ErrNoStore.Error(), env.Error)
}

func TestServer_JWT(t *testing.T) {
	const secret = "s3cret"
	srv, _ := newTestServer(t, Options{JWTSecret: secret})
	c := &client{t: t, h: srv.Handler()}

	code, _ := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code, "health is public")

	code, env := c.do(http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "authorization header required", env.Error)

	c.token = "garbage"
	code, _ = c.do(http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	wrongIssuer, err := GenerateToken(secret, "someone-else", "test", 0)
	require.NoError(t, err)
	c.token = wrongIssuer
	code, _ = c.do(http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	wrongSecret, err := GenerateToken("other", DefaultIssuer, "test", 0)
	require.NoError(t, err)
	c.token = wrongSecret
	code, _ = c.do(http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	valid, err := GenerateToken(secret, "", "test", time.Hour)
	require.NoError(t, err)
	c.token = valid
	code, _ = c.do(http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, code)

	_, err = GenerateToken("", "", "x", 0)
	assert.Error(t, err)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc := prommetrics.MustNew(reg, "")
	idx, err := spfresh.New(4, spfresh.WithMetricsCollector(mc))
	require.NoError(t, err)
	defer idx.Close()
	srv := New(idx, Options{Gatherer: reg})

	_, err = idx.Add(context.Background(), testutil.NewRNG(3).UniformVectors(20, 4), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spfresh_operations_total")
}

func TestServer_RunSnapshots(t *testing.T) {
	store := blobstore.NewMemoryStore()
	srv, idx := newTestServer(t, Options{Store: store})
	ctx := context.Background()
	_, err := idx.Add(ctx, testutil.NewRNG(4).UniformVectors(50, 4), nil)
	require.NoError(t, err)
	require.NoError(t, idx.Build(ctx))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		srv.RunSnapshots(runCtx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		names, err := store.List(ctx, "CURRENT")
		return err == nil && len(names) == 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

// Distances between these vectors overflow to +Inf, which JSON cannot carry.
func TestServer_UnencodableResponse(t *testing.T) {
	var logs bytes.Buffer
	logger := spfresh.NewLogger(slog.NewTextHandler(&logs, nil))
	srv, _ := newTestServer(t, Options{Logger: logger})
	c := &client{t: t, h: srv.Handler()}

	vecs := make([][]float32, 20)
	for i := range vecs {
		f := float32(i+1) * 1e19
		vecs[i] = []float32{f, -f, f, -f}
	}
	code, _ := c.do(http.MethodPost, "/api/vectors", map[string]any{"vectors": vecs})
	require.Equal(t, http.StatusOK, code)
	code, _ = c.do(http.MethodPost, "/api/build", nil)
	require.Equal(t, http.StatusOK, code)

	code, env := c.do(http.MethodPost, "/api/search", map[string]any{
		"vector": vecs[3], "k": 1, "max_check": 1 << 20, "max_heads": 1 << 20,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"id":3`)

	code, env = c.do(http.MethodPost, "/api/search", map[string]any{
		"vector": vecs[3], "k": 2, "max_check": 1 << 20, "max_heads": 1 << 20,
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "failed to encode response", env.Error)
	assert.Contains(t, logs.String(), "failed to encode response")
	assert.Contains(t, logs.String(), "/api/search")
}
