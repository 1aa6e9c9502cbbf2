// Package weaviate stores chunks in a Weaviate class with self-provided
// vectors and searches them with nearVector queries.
package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"ragbench/internal/domain"
	"ragbench/internal/vectorstore"
)

// Options is the shape of the weaviate vectordb args in configuration.
type Options struct {
	Host      string `yaml:"host"`
	Scheme    string `yaml:"scheme"`
	APIKeyEnv string `yaml:"api_key_env"`
	Class     string `yaml:"class"`
}

// Storage is a VectorStore over one Weaviate class.
type Storage struct {
	client    *weaviate.Client
	class     string
	dimension int
}

// NewStorage creates the client. No request is made until first use.
func NewStorage(host, scheme, apiKey, class string) (*Storage, error) {
	if host == "" {
		host = "localhost:8080"
	}
	if scheme == "" {
		scheme = "http"
	}
	cfg := weaviate.Config{Host: host, Scheme: scheme}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &Storage{client: client, class: ClassName(class)}, nil
}

// ClassName normalizes a configured class name; Weaviate classes start
// with an upper-case letter.
func ClassName(name string) string {
	if name == "" {
		return "RagbenchChunk"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (s *Storage) Name() string { return "weaviate" }

// Exists reports whether the class exists and holds at least one object.
func (s *Storage) Exists(ctx context.Context) (bool, error) {
	ok, err := s.classExists(ctx)
	if err != nil || !ok {
		return false, err
	}
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return false, fmt.Errorf("weaviate count failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return false, fmt.Errorf("weaviate count failed: %s", result.Errors[0].Message)
	}
	return parseCount(result.Data, s.class) > 0, nil
}

func (s *Storage) classExists(ctx context.Context) (bool, error) {
	return s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
}

// storedDimension returns the vector length of any object in the class, or
// 0 when the class is empty.
func (s *Storage) storedDimension(ctx context.Context) (int, error) {
	result, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "vector"}}}).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate read vector failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("weaviate read vector failed: %s", result.Errors[0].Message)
	}
	return parseVectorLen(result.Data, s.class), nil
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("%w: got %d, class %s has %d", vectorstore.ErrDimensionMismatch, dimension, s.class, s.dimension)
	}
	ok, err := s.classExists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		if err := s.client.Schema().ClassCreator().WithClass(classDefinition(s.class)).Do(ctx); err != nil {
			return fmt.Errorf("create class %s: %w", s.class, err)
		}
	} else if s.dimension == 0 {
		stored, err := s.storedDimension(ctx)
		if err != nil {
			return err
		}
		if stored != 0 && stored != dimension {
			return fmt.Errorf("%w: got %d, class %s has %d", vectorstore.ErrDimensionMismatch, dimension, s.class, stored)
		}
	}
	s.dimension = dimension
	return nil
}

func classDefinition(class string) *models.Class {
	return &models.Class{
		Class:       class,
		Description: "Document chunks indexed by ragbench",
		Vectorizer:  "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "documentId", DataType: []string{"text"}},
			{Name: "chunkId", DataType: []string{"text"}},
			{Name: "index", DataType: []string{"int"}},
			{Name: "metadata", DataType: []string{"text"}},
		},
	}
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if s.dimension == 0 {
		return vectorstore.ErrNotInitialized
	}
	if err := vectorstore.CheckBatch(chunks, vectors, s.dimension); err != nil {
		return err
	}
	objects := make([]*models.Object, len(chunks))
	for i, c := range chunks {
		obj, err := toObject(s.class, c, vectors[i])
		if err != nil {
			return err
		}
		objects[i] = obj
	}
	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate batch: %w", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("weaviate batch object %s: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func toObject(class string, c domain.Chunk, vector []float64) (*models.Object, error) {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, err
	}
	return &models.Object{
		Class: class,
		ID:    strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.ChunkID)).String()),
		Properties: map[string]interface{}{
			"text":       c.Text,
			"documentId": c.DocumentID,
			"chunkId":    c.ChunkID,
			"index":      c.Index,
			"metadata":   string(meta),
		},
		Vector: toFloat32(vector),
	}, nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 4
	}
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(toFloat32(vector))
	result, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithNearVector(nearVector).
		WithFields(
			graphql.Field{Name: "text"},
			graphql.Field{Name: "documentId"},
			graphql.Field{Name: "chunkId"},
			graphql.Field{Name: "index"},
			graphql.Field{Name: "metadata"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search failed: %s", result.Errors[0].Message)
	}
	return parseHits(result.Data, s.class), nil
}

// parseHits reads Get.<class>[] from a GraphQL response. Scores are
// 1 - cosine distance.
func parseHits(data map[string]models.JSONObject, class string) []domain.SearchResult {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, _ := get[class].([]interface{})
	out := make([]domain.SearchResult, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var c domain.Chunk
		c.Text, _ = m["text"].(string)
		c.DocumentID, _ = m["documentId"].(string)
		c.ChunkID, _ = m["chunkId"].(string)
		if v, ok := m["index"].(float64); ok {
			c.Index = int(v)
		}
		if raw, ok := m["metadata"].(string); ok && raw != "" {
			_ = json.Unmarshal([]byte(raw), &c.Metadata)
		}
		score := 0.0
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			if d, ok := add["distance"].(float64); ok {
				score = 1 - d
			}
		}
		out = append(out, domain.SearchResult{Chunk: c, Score: score})
	}
	return out
}

// firstItem returns the first entry of <root>.<class>[] in a GraphQL response.
func firstItem(data map[string]models.JSONObject, root, class string) map[string]interface{} {
	section, ok := data[root].(map[string]interface{})
	if !ok {
		return nil
	}
	items, _ := section[class].([]interface{})
	if len(items) == 0 {
		return nil
	}
	m, _ := items[0].(map[string]interface{})
	return m
}

func parseCount(data map[string]models.JSONObject, class string) int {
	meta, _ := firstItem(data, "Aggregate", class)["meta"].(map[string]interface{})
	n, _ := meta["count"].(float64)
	return int(n)
}

func parseVectorLen(data map[string]models.JSONObject, class string) int {
	add, _ := firstItem(data, "Get", class)["_additional"].(map[string]interface{})
	v, _ := add["vector"].([]interface{})
	return len(v)
}

// Reset deletes the class and every object in it.
func (s *Storage) Reset(ctx context.Context) error {
	ok, err := s.classExists(ctx)
	if err != nil {
		return err
	}
	s.dimension = 0
	if !ok {
		return nil
	}
	return s.client.Schema().ClassDeleter().WithClassName(s.class).Do(ctx)
}

func (s *Storage) Close() error { return nil }

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
