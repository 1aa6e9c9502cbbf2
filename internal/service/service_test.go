package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"ragbench/internal/chunker"
	"ragbench/internal/config"
	"ragbench/internal/domain"
	"ragbench/internal/embedding/tfidf"
	"ragbench/internal/llm"
	"ragbench/internal/llm/extractive"
	"ragbench/internal/loader"
	"ragbench/internal/report"
	"ragbench/internal/vectorstore/memory"
	"ragbench/internal/vectorstore/sqlite"
)

const srcDocs = "../../testdata/src_doc"

type fixture struct {
	ingestor *Ingestor
	embedder *tfidf.Embedder
	store    *sqlite.Storage
	model    string
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	splitter, err := chunker.NewRecursiveSplitter(chunker.RecursiveOptions{Options: chunker.Options{ChunkSize: 1000, ChunkOverlap: 100}})
	require.NoError(t, err)
	core, logs := observer.New(zap.InfoLevel)
	model := filepath.Join(dir, "tfidf.json")
	emb := tfidf.NewEmbedder(model)
	loc := filepath.Join(dir, "vectordb")
	store := sqlite.NewStorage(loc)
	t.Cleanup(func() { _ = store.Close() })
	return fixture{
		ingestor: &Ingestor{
			Loaders:   []loader.Ext{{Name: "txt", Loader: loader.Text{}}},
			Splitter:  splitter,
			Embedder:  emb,
			Store:     store,
			Location:  loc,
			BatchSize: 100,
			Logger:    zap.New(core),
		},
		embedder: emb,
		store:    store,
		model:    model,
		logs:     logs,
	}
}

func messages(logs *observer.ObservedLogs) []string {
	var out []string
	for _, e := range logs.All() {
		out = append(out, e.Message)
	}
	return out
}

func TestEmbedKnownDocument(t *testing.T) {
	f := newFixture(t)
	n, err := f.ingestor.Embed(context.Background(), srcDocs, config.Overwrite)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs := messages(f.logs)
	assert.Contains(t, msgs, "Documents split. 1 chunks from 1 pages.")
	assert.Contains(t, msgs, "1 chunks persisted into database at "+f.ingestor.Location)
}

func TestEmbedWriteModes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.ingestor.Embed(ctx, srcDocs, config.NoOverwrite)
	require.NoError(t, err)

	f.logs.TakeAll()
	n, err := f.ingestor.Embed(ctx, srcDocs, config.NoOverwrite)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NotEmpty(t, f.logs.FilterMessageSnippet("No new embeddings created").All())

	n, err = f.ingestor.Embed(ctx, srcDocs, config.Overwrite)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotEmpty(t, f.logs.FilterMessageSnippet("about to be overwritten").All())

	n, err = f.ingestor.Embed(ctx, srcDocs, config.Append)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	vec, err := f.embedder.Embed(ctx, "Eiffel tower")
	require.NoError(t, err)
	res, err := f.store.Search(ctx, vec, 10)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestAppendKeepsSavedVocabulary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("Penguins live in Antarctica."), 0o644))
	_, err := f.ingestor.Embed(ctx, src, config.NoOverwrite)
	require.NoError(t, err)
	dim := f.embedder.Dimension()

	require.NoError(t, os.WriteFile(filepath.Join(src, "b.txt"), []byte("Camels cross hot sandy deserts slowly."), 0o644))
	n, err := f.ingestor.Embed(ctx, src, config.Append)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEmpty(t, f.logs.FilterMessageSnippet("saved embedding model").All())

	fresh := tfidf.NewEmbedder(f.model)
	assert.Equal(t, dim, fresh.Dimension())
	vec, err := fresh.Embed(ctx, "Where do penguins live?")
	require.NoError(t, err)
	res, err := f.store.Search(ctx, vec, 4)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Contains(t, res[0].Chunk.Text, "Penguins")
}

func TestEmbedSleepsBetweenBatches(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	splitter := chunker.NewSentenceChunker(1, 0)
	in := &Ingestor{
		Loaders:   []loader.Ext{{Name: "txt", Loader: loader.Text{}}},
		Splitter:  splitter,
		Embedder:  tfidf.NewEmbedder(""),
		Store:     memory.NewStorage(),
		Location:  "memory",
		BatchSize: 2,
		Delay:     time.Millisecond,
		Logger:    zap.New(core),
	}
	n, err := in.Embed(context.Background(), srcDocs, config.NoOverwrite)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1, logs.FilterMessageSnippet("due to rate limiter").Len())
	assert.Equal(t, 2, logs.FilterMessageSnippet("chunks persisted into database").Len())
}

func TestEmbedEmptyFolder(t *testing.T) {
	f := newFixture(t)
	n, err := f.ingestor.Embed(context.Background(), t.TempDir(), config.NoOverwrite)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	ok, err := f.store.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChatWritesReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.ingestor.Embed(ctx, srcDocs, config.NoOverwrite)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "chat_session.md")
	chat := NewChat(ChatOptions{
		Embedder: f.embedder,
		Store:    f.store,
		LLM:      extractive.New(extractive.Options{MaxSentences: 1}),
		Logger:   zaptest.NewLogger(t),
		Report:   report.New(out, "llm:\n  type: extractive\n"),
	})
	require.NoError(t, chat.Run(ctx, []string{"How tall is the tower?", "Who designed it?"}))

	assert.FileExists(t, out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "Q: How tall is the tower?")
	assert.Contains(t, body, "A: The Eiffel Tower is")
	assert.Contains(t, body, "Pages used: [NA]")
	assert.Equal(t, 1, strings.Count(body, "# LLM Chat Session with ragbench"))

	history := chat.History()
	require.Len(t, history, 2)
	assert.Equal(t, "Who designed it?", history[1].Standalone)
}

// scriptedLLM replies in order and records every request.
type scriptedLLM struct {
	replies  []string
	requests []llm.ChatRequest
	err      error
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return &llm.ChatResponse{Content: r}, nil
}

type countingWaiter struct{ n int }

func (w *countingWaiter) Wait(context.Context) error {
	w.n++
	return nil
}

func chatOverMemory(t *testing.T, model llm.Provider, waiter Waiter) *Chat {
	t.Helper()
	ctx := context.Background()
	emb := tfidf.NewEmbedder("")
	chunks := []domain.Chunk{
		{ChunkID: "a:0", Text: "Penguins live in Antarctica.", Metadata: map[string]string{domain.MetaSource: "birds.pdf", domain.MetaPage: "3"}},
		{ChunkID: "b:0", Text: "Camels live in deserts.", Metadata: map[string]string{domain.MetaSource: "animals.pdf", domain.MetaPage: "1"}},
		{ChunkID: "a:1", Text: "Penguins eat fish.", Metadata: map[string]string{domain.MetaSource: "birds.pdf", domain.MetaPage: "12"}},
	}
	texts := []string{chunks[0].Text, chunks[1].Text, chunks[2].Text}
	require.NoError(t, emb.Prepare(ctx, texts))
	store := memory.NewStorage()
	require.NoError(t, store.Init(ctx, emb.Dimension()))
	vecs := make([][]float64, len(texts))
	for i, txt := range texts {
		v, err := emb.Embed(ctx, txt)
		require.NoError(t, err)
		vecs[i] = v
	}
	require.NoError(t, store.Upsert(ctx, chunks, vecs))
	return NewChat(ChatOptions{Embedder: emb, Store: store, LLM: model, Limiter: waiter, TopK: 2})
}

func TestAskCondensesFollowUps(t *testing.T) {
	ctx := context.Background()
	model := &scriptedLLM{replies: []string{"In Antarctica.", "What do penguins eat?", "Fish."}}
	waiter := &countingWaiter{}
	chat := chatOverMemory(t, model, waiter)

	first, err := chat.Ask(ctx, "Where do penguins live?")
	require.NoError(t, err)
	assert.Equal(t, "In Antarctica.", first.Answer)
	require.Len(t, model.requests, 1)
	assert.Contains(t, model.requests[0].Messages[0].Content, "Penguins live in Antarctica.")
	assert.True(t, strings.HasSuffix(model.requests[0].Messages[0].Content, "Question: Where do penguins live?\nHelpful Answer:"))

	second, err := chat.Ask(ctx, "And what do they eat?")
	require.NoError(t, err)
	require.Len(t, model.requests, 3)
	condense := model.requests[1].Messages[0].Content
	assert.Contains(t, condense, "Chat History:\n\nHuman: Where do penguins live?\nAssistant: In Antarctica.\nFollow Up Input: And what do they eat?")
	assert.Empty(t, model.requests[1].Context)
	assert.Equal(t, llm.StepCondense, model.requests[1].Step)
	assert.Equal(t, llm.StepAnswer, model.requests[2].Step)
	assert.Equal(t, "What do penguins eat?", second.Standalone)
	assert.Equal(t, "What do penguins eat?", model.requests[2].Question)
	assert.Equal(t, 3, waiter.n)

	sources := second.SourcePages()
	require.NotEmpty(t, sources)
	assert.Equal(t, "birds.pdf", sources[0].Document)
}

func TestSourcePagesGroupsBySource(t *testing.T) {
	turn := Turn{Sources: []domain.SearchResult{
		{Chunk: domain.Chunk{Metadata: map[string]string{domain.MetaSource: "b.pdf", domain.MetaPage: "12"}}},
		{Chunk: domain.Chunk{Metadata: map[string]string{domain.MetaSource: "a.txt"}}},
		{Chunk: domain.Chunk{Metadata: map[string]string{domain.MetaSource: "b.pdf", domain.MetaPage: "3"}}},
	}}
	assert.Equal(t, []report.Source{
		{Document: "b.pdf", Pages: []string{"3", "12"}},
		{Document: "a.txt", Pages: []string{"NA"}},
	}, turn.SourcePages())
}

func TestAskPropagatesLLMErrors(t *testing.T) {
	chat := chatOverMemory(t, &scriptedLLM{err: errors.New("rate limited")}, nil)
	_, err := chat.Ask(context.Background(), "Where do penguins live?")
	assert.ErrorContains(t, err, "rate limited")
	assert.Empty(t, chat.History())
}

func TestAskWithoutRetrievedChunks(t *testing.T) {
	ctx := context.Background()
	emb := tfidf.NewEmbedder("")
	require.NoError(t, emb.Prepare(ctx, []string{"The Eiffel Tower is tall."}))
	chat := NewChat(ChatOptions{Embedder: emb, Store: memory.NewStorage(), LLM: extractive.New(extractive.Options{})})

	turn, err := chat.Ask(ctx, "How tall is the Eiffel Tower?")
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", turn.Answer)
	assert.Empty(t, turn.Sources)
}
