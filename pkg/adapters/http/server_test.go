package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/blocksync/pkg/adapters/memory"
	"github.com/aretw0/blocksync/pkg/autosave"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, opts ...Option) (http.Handler, *autosave.Manager) {
	t.Helper()
	mgr := autosave.NewManager(memory.NewSnapshotStore())
	return NewHandler(mgr, opts...), mgr
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSnapshots_Lifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPut, "/snapshots/doc-1",
		`[{"id":"p","attributes":{"content":"Hello"},"children":[{"id":"c"}]}]`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/snapshots/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents":["doc-1"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/snapshots/doc-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var tree domain.Tree
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tree))
	require.Equal(t, 1, tree.Len())
	assert.Equal(t, "Hello", tree.At(0).Attributes["content"])
	assert.Equal(t, 1, tree.At(0).Children.Len())

	w = do(t, h, http.MethodGet, "/snapshots/doc-1/graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph TD")
	assert.Contains(t, w.Body.String(), `p[["p <br/> Hello"]]`)

	w = do(t, h, http.MethodDelete, "/snapshots/doc-1", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/snapshots/doc-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSnapshots_EmptyList(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, http.MethodGet, "/snapshots/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents":[]}`, w.Body.String())
}

func TestPutSnapshot_Rejections(t *testing.T) {
	h, mgr := newTestHandler(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"id":`, http.StatusBadRequest},
		{"not an array", `{"id":"a"}`, http.StatusBadRequest},
		{"duplicate ids", `[{"id":"a"},{"id":"a"}]`, http.StatusUnprocessableEntity},
		{"missing id", `[{"attributes":{"x":1}}]`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPut, "/snapshots/doc", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	ids, err := mgr.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStores(t *testing.T) {
	reg := registry.NewRegistry()
	store := memory.NewStore(memory.WithRoot(domain.NewTree(
		domain.NewNode("gallery", nil, domain.NewNode("img", nil)),
	)))
	require.NoError(t, store.SetControlled("gallery", true))
	reg.Register("editor", store)

	h, _ := newTestHandler(t, WithRegistry(reg))

	w := do(t, h, http.MethodGet, "/stores/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stores":["editor"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/stores/editor/root", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"gallery","children":[{"id":"img","children":[]}]}]`, w.Body.String())

	w = do(t, h, http.MethodGet, "/stores/editor/graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class gallery controlled;")

	w = do(t, h, http.MethodGet, "/stores/missing/root", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetrics(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "blocksync_test_total"})
	reg.MustRegister(counter)
	counter.Inc()

	h, _ = newTestHandler(t, WithGatherer(reg))
	w = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "blocksync_test_total 1")
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, http.MethodOptions, "/snapshots/doc", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStoreEvents_StreamsChanges(t *testing.T) {
	reg := registry.NewRegistry()
	store := memory.NewStore()
	reg.Register("editor", store)

	h, _ := newTestHandler(t, WithRegistry(reg))
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stores/editor/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	// The subscription is live once the preamble arrives.
	require.NoError(t, store.ResetRoot(domain.NewTree(domain.NewNode("a", nil))))

	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			data = strings.TrimSpace(rest)
		}
	}
	assert.JSONEq(t, `{"persistent":true,"ignored":false,"size":1}`, data)
}
