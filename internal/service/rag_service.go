// Package service runs the two stages of an experiment: embedding the
// source documents into a vector store and chatting against it.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ragbench/internal/config"
	"ragbench/internal/domain"
	"ragbench/internal/loader"
	"ragbench/internal/metrics"
	"ragbench/internal/ratelimit"
)

const costWarning = "CAUTION: This function uses external compute services (like OpenAI or HuggingFace). This is likely to cost money."

// Ingestor loads, splits and embeds source documents into a vector store.
type Ingestor struct {
	Loaders  []loader.Ext
	Splitter domain.Splitter
	Embedder domain.Embedder
	Store    domain.VectorStore
	// Location is where the store lives, for log messages.
	Location string
	// BatchSize chunks are embedded between two Delay pauses.
	BatchSize int
	Delay     time.Duration
	Logger    *zap.Logger
	Metrics   *metrics.Run
}

// Embed ingests src according to mode and returns the number of chunks
// embedded. An existing store is skipped, reset or appended to depending
// on mode.
func (s *Ingestor) Embed(ctx context.Context, src string, mode config.WriteMode) (int, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sugar := logger.Sugar()
	sugar.Infof("Starting to embed into VectorDB: %s", s.Location)

	exists, err := s.Store.Exists(ctx)
	if err != nil {
		return 0, fmt.Errorf("check vector store: %w", err)
	}
	if exists {
		switch mode {
		case config.NoOverwrite:
			sugar.Infof("No new embeddings created. Embedding database already exists at %q. "+
				"Remove database folder, or change embedding config vectorstore_write_mode to overwrite or append.", s.Location)
			return 0, nil
		case config.Overwrite:
			sugar.Warnf("The embedding database at %s and all its contents are about to be overwritten.", s.Location)
			if err := s.Store.Reset(ctx); err != nil {
				return 0, fmt.Errorf("reset vector store: %w", err)
			}
		}
	}

	pages, err := loader.Folder(src, s.Loaders, logger)
	if err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}
	s.Metrics.AddDocuments(len(pages))
	chunks, err := s.Splitter.Split(pages)
	if err != nil {
		return 0, fmt.Errorf("split documents: %w", err)
	}
	sugar.Infof("Documents split. %d chunks from %d pages.", len(chunks), len(pages))
	if len(chunks) == 0 {
		return 0, nil
	}

	logger.Warn(costWarning)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	// Appending must embed with the model the store was built with.
	if !exists || mode != config.Append || !s.reuseModel(logger) {
		if err := s.Embedder.Prepare(ctx, texts); err != nil {
			return 0, fmt.Errorf("prepare embedder: %w", err)
		}
	}

	total := 0
	initialized := false
	for i, w := range ratelimit.Batches(len(chunks), s.BatchSize) {
		if i > 0 {
			if err := ratelimit.Sleep(ctx, s.Delay, logger); err != nil {
				return total, err
			}
		}
		batch := chunks[w.Start:w.End]
		vectors := make([][]float64, len(batch))
		for j, c := range batch {
			start := time.Now()
			v, err := s.Embedder.Embed(ctx, c.Text)
			if err != nil {
				return total, fmt.Errorf("embed chunk %s: %w", c.ChunkID, err)
			}
			s.Metrics.ObserveEmbed(time.Since(start))
			vectors[j] = v
		}
		// Remote embedders only know their dimension after the first call.
		if !initialized {
			if err := s.Store.Init(ctx, len(vectors[0])); err != nil {
				return total, fmt.Errorf("init vector store: %w", err)
			}
			initialized = true
		}
		if err := s.Store.Upsert(ctx, batch, vectors); err != nil {
			return total, fmt.Errorf("upsert chunks: %w", err)
		}
		total += len(batch)
		s.Metrics.AddBatch(len(batch))
		sugar.Infof("%d chunks persisted into database at %s", len(batch), s.Location)
	}
	return total, nil
}

func (s *Ingestor) reuseModel(logger *zap.Logger) bool {
	l, ok := s.Embedder.(domain.ModelLoader)
	if !ok {
		return false
	}
	if err := l.LoadModel(); err != nil {
		if !errors.Is(err, errors.ErrUnsupported) {
			logger.Warn("saved embedding model could not be loaded, fitting a new one", zap.Error(err))
		}
		return false
	}
	logger.Info("Appending with the saved embedding model. Terms it does not know are ignored.")
	return true
}
