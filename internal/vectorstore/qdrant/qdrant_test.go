package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
	"ragbench/internal/vectorstore"
)

// fakeQdrant keeps just enough state to answer the calls Storage makes.
type fakeQdrant struct {
	mu     sync.Mutex
	size   int
	points []map[string]any
	apiKey string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKey = r.Header.Get("api-key")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections/docs":
		if f.size == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"points_count":` + itoa(len(f.points)) + `,"config":{"params":{"vectors":{"size":` + itoa(f.size) + `}}}}}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.size = body.Vectors.Size
	case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
		var body struct {
			Points []map[string]any `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
	case r.Method == http.MethodPost && r.URL.Path == "/collections/docs/points/search":
		out := map[string]any{"result": []map[string]any{{"score": 0.9, "payload": f.points[0]["payload"]}}}
		_ = json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodDelete && r.URL.Path == "/collections/docs":
		if f.size == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.size = 0
		f.points = nil
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "docs", APIKey: "k"})
	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Init(ctx, 2))
	chunk := domain.Chunk{DocumentID: "d", ChunkID: "d:0", Text: "hello", Metadata: map[string]string{domain.MetaSource: "a.txt"}}
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk}, [][]float64{{1, 0}}))
	assert.Equal(t, "k", fake.apiKey)

	_, err = uuid.Parse(fake.points[0]["id"].(string))
	assert.NoError(t, err)

	ok, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := s.Search(ctx, []float64{1, 0}, 4)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, chunk, res[0].Chunk)
	assert.Equal(t, 0.9, res[0].Score)

	s2 := NewStorage(Config{URL: srv.URL, Collection: "docs"})
	assert.ErrorIs(t, s2.Init(ctx, 3), vectorstore.ErrDimensionMismatch)

	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Reset(ctx))
	ok, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPointIDIsStable(t *testing.T) {
	a := pointID(domain.Chunk{ChunkID: "x:1"})
	assert.Equal(t, a, pointID(domain.Chunk{ChunkID: "x:1"}))
	assert.NotEqual(t, a, pointID(domain.Chunk{ChunkID: "x:2"}))
}
