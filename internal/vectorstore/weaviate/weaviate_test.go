package weaviate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"ragbench/internal/domain"
)

func TestClassName(t *testing.T) {
	assert.Equal(t, "RagbenchChunk", ClassName(""))
	assert.Equal(t, "Docs", ClassName("docs"))
}

func TestToObject(t *testing.T) {
	c := domain.Chunk{DocumentID: "d", ChunkID: "d:3", Index: 3, Text: "hi", Metadata: map[string]string{domain.MetaPage: "2"}}
	obj, err := toObject("Docs", c, []float64{0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, "Docs", obj.Class)
	assert.Len(t, string(obj.ID), 36)
	assert.Equal(t, models.C11yVector{0.5, 1}, obj.Vector)

	again, err := toObject("Docs", c, []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, obj.ID, again.ID)
}

func TestParseHits(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"Docs": []interface{}{
				map[string]interface{}{
					"text":        "hello",
					"documentId":  "d",
					"chunkId":     "d:1",
					"index":       float64(1),
					"metadata":    `{"source":"a.pdf","page":"4"}`,
					"_additional": map[string]interface{}{"distance": 0.25},
				},
			},
		},
	}
	hits := parseHits(data, "Docs")
	require.Len(t, hits, 1)
	assert.Equal(t, "hello", hits[0].Chunk.Text)
	assert.Equal(t, 1, hits[0].Chunk.Index)
	assert.Equal(t, "4", hits[0].Chunk.Metadata[domain.MetaPage])
	assert.InDelta(t, 0.75, hits[0].Score, 1e-9)

	assert.Empty(t, parseHits(map[string]models.JSONObject{}, "Docs"))
}

func TestClassDefinitionUsesOwnVectors(t *testing.T) {
	c := classDefinition("Docs")
	assert.Equal(t, "none", c.Vectorizer)
	assert.Len(t, c.Properties, 5)
}

func TestParseCount(t *testing.T) {
	data := map[string]models.JSONObject{
		"Aggregate": map[string]interface{}{
			"Docs": []interface{}{map[string]interface{}{"meta": map[string]interface{}{"count": float64(7)}}},
		},
	}
	assert.Equal(t, 7, parseCount(data, "Docs"))
	assert.Equal(t, 0, parseCount(data, "Other"))
	assert.Equal(t, 0, parseCount(map[string]models.JSONObject{}, "Docs"))
}

func TestParseVectorLen(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			"Docs": []interface{}{map[string]interface{}{
				"_additional": map[string]interface{}{"vector": []interface{}{0.1, 0.2, 0.3}},
			}},
		},
	}
	assert.Equal(t, 3, parseVectorLen(data, "Docs"))
	empty := map[string]models.JSONObject{"Get": map[string]interface{}{"Docs": []interface{}{}}}
	assert.Equal(t, 0, parseVectorLen(empty, "Docs"))
}
