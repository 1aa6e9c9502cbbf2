package domain

import "context"

// Metadata keys shared by loaders, splitters and reports.
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaRow    = "row"
)

// Document is one loaded unit of source text: a PDF page, a text file or a CSV row.
type Document struct {
	ID       string
	Path     string
	Content  string
	Metadata map[string]string
}

// Chunk is a part of a document used for indexing. It carries the metadata of
// the document it was cut from.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
	Metadata   map[string]string
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ModelLoader is implemented by embedders fitted to a corpus whose fitted
// model is saved between runs. LoadModel restores the saved model.
type ModelLoader interface {
	LoadModel() error
}

// Splitter splits documents into chunks suitable for retrieval indexing.
type Splitter interface {
	Split(documents []Document) ([]Chunk, error)
}

// VectorStore persists vectors and supports similarity search.
//
// Exists reports whether the store already holds an index; Reset removes it
// entirely so the next Init starts from scratch.
type VectorStore interface {
	Name() string
	Exists(ctx context.Context) (bool, error)
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Reset(ctx context.Context) error
	Close() error
}

// Loader reads one file into one or more documents.
type Loader interface {
	Load(path string) ([]Document, error)
}
