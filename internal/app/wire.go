package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ragbench/internal/chunker"
	"ragbench/internal/config"
	"ragbench/internal/domain"
	"ragbench/internal/embedding/cache"
	"ragbench/internal/embedding/openai"
	"ragbench/internal/embedding/tfidf"
	"ragbench/internal/llm"
	"ragbench/internal/llm/extractive"
	llmollama "ragbench/internal/llm/ollama"
	llmopenai "ragbench/internal/llm/openai"
	"ragbench/internal/loader"
	"ragbench/internal/registry"
	"ragbench/internal/vectorstore/memory"
	"ragbench/internal/vectorstore/qdrant"
	"ragbench/internal/vectorstore/sqlite"
	"ragbench/internal/vectorstore/weaviate"
)

// Builtins returns a registry with every bundled component registered.
func Builtins() *registry.Registry {
	r := registry.New()
	registerEmbedders(r)
	registerSplitters(r)
	registerStores(r)
	registerLLMs(r)
	registerLoaders(r)
	return r
}

func registerEmbedders(r *registry.Registry) {
	r.Embedders.Register("tfidf", func(args registry.Args, env registry.Env) (domain.Embedder, error) {
		var o struct {
			ModelFile string `yaml:"model_file"`
		}
		if err := args.Decode(&o); err != nil {
			return nil, err
		}
		if o.ModelFile == "" {
			o.ModelFile = filepath.Join(env.DataDir, filepath.Base(env.Location)+".tfidf.json")
		}
		return tfidf.NewEmbedder(o.ModelFile), nil
	})
	remote := func(name, baseURL, model, keyEnv string, keyOptional bool) registry.Factory[domain.Embedder] {
		return func(args registry.Args, _ registry.Env) (domain.Embedder, error) {
			o := openai.Options{BaseURL: baseURL, Model: model, APIKeyEnv: keyEnv}
			if err := args.Decode(&o); err != nil {
				return nil, err
			}
			retries := 3
			if o.MaxRetries != nil {
				retries = *o.MaxRetries
			}
			return openai.NewClient(openai.Config{
				Name:        name,
				BaseURL:     o.BaseURL,
				APIKeyEnv:   o.APIKeyEnv,
				KeyOptional: keyOptional,
				Model:       o.Model,
				Timeout:     time.Duration(o.TimeoutSecs) * time.Second,
				MaxRetries:  retries,
			})
		}
	}
	r.Embedders.Register("openai", remote("openai", "https://api.openai.com/v1", "text-embedding-3-small", "OPENAI_API_KEY", false))
	r.Embedders.Register("ollama", remote("ollama", "http://localhost:11434/api", "nomic-embed-text", "OLLAMA_API_KEY", true))
}

func registerSplitters(r *registry.Registry) {
	r.Splitters.Register("recursive_character", func(args registry.Args, _ registry.Env) (domain.Splitter, error) {
		var o chunker.RecursiveOptions
		if err := args.Decode(&o); err != nil {
			return nil, err
		}
		return chunker.NewRecursiveSplitter(o)
	})
	r.Splitters.Register("character", func(args registry.Args, _ registry.Env) (domain.Splitter, error) {
		var o chunker.CharacterOptions
		if err := args.Decode(&o); err != nil {
			return nil, err
		}
		return chunker.NewCharacterSplitter(o)
	})
	r.Splitters.Register("sentence", func(args registry.Args, _ registry.Env) (domain.Splitter, error) {
		var o struct {
			SentencesPerChunk int `yaml:"sentences_per_chunk"`
			OverlapSentences  int `yaml:"overlap_sentences"`
		}
		if err := args.Decode(&o); err != nil {
			return nil, err
		}
		return chunker.NewSentenceChunker(o.SentencesPerChunk, o.OverlapSentences), nil
	})
}

func registerStores(r *registry.Registry) {
	r.Stores.Register("sqlite", func(args registry.Args, env registry.Env) (domain.VectorStore, error) {
		if err := args.Decode(&struct{}{}); err != nil {
			return nil, err
		}
		return sqlite.NewStorage(env.Location), nil
	})
	r.Stores.Register("memory", func(args registry.Args, _ registry.Env) (domain.VectorStore, error) {
		if err := args.Decode(&struct{}{}); err != nil {
			return nil, err
		}
		return memory.NewStorage(), nil
	})
	r.Stores.Register("qdrant", func(args registry.Args, env registry.Env) (domain.VectorStore, error) {
		var o qdrant.Options
		if err := args.Decode(&o); err != nil {
			return nil, err
		}
		if o.Collection == "" {
			o.Collection = filepath.Base(env.Location)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        o.URL,
			APIKey:     envKey(o.APIKeyEnv),
			Collection: o.Collection,
			Timeout:    time.Duration(o.TimeoutSecs) * time.Second,
		}), nil
	})
	r.Stores.Register("weaviate", func(args registry.Args, _ registry.Env) (domain.VectorStore, error) {
		var o weaviate.Options
		if err := args.Decode(&o); err != nil {
			return nil, err
		}
		return weaviate.NewStorage(o.Host, o.Scheme, envKey(o.APIKeyEnv), o.Class)
	})
}

func registerLLMs(r *registry.Registry) {
	r.LLMs.Register("openai", func(args registry.Args, _ registry.Env) (llm.Provider, error) {
		var o llmopenai.Options
		if err := args.Decode(&o); err != nil {
			return nil, err
		}
		return llmopenai.New(o)
	})
	r.LLMs.Register("ollama", func(args registry.Args, _ registry.Env) (llm.Provider, error) {
		var o llmollama.Options
		if err := args.Decode(&o); err != nil {
			return nil, err
		}
		return llmollama.New(o), nil
	})
	r.LLMs.Register("extractive", func(args registry.Args, _ registry.Env) (llm.Provider, error) {
		var o extractive.Options
		if err := args.Decode(&o); err != nil {
			return nil, err
		}
		return extractive.New(o), nil
	})
}

// registerLoaders registers document loaders in the order files are loaded.
func registerLoaders(r *registry.Registry) {
	r.Loaders.Register("pdf", func(_ registry.Args, env registry.Env) (domain.Loader, error) {
		return loader.PDF{Logger: env.Logger}, nil
	})
	r.Loaders.Register("txt", func(registry.Args, registry.Env) (domain.Loader, error) {
		return loader.Text{}, nil
	})
	r.Loaders.Register("csv", func(registry.Args, registry.Env) (domain.Loader, error) {
		return loader.CSV{}, nil
	})
}

func envKey(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Ingest holds the components of the embedding stage.
type Ingest struct {
	Loaders  []loader.Ext
	Splitter domain.Splitter
	Embedder domain.Embedder
	Store    domain.VectorStore
	closers  []func() error
}

// Close releases the store and the embedding cache.
func (in *Ingest) Close() error {
	var first error
	for _, c := range in.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BuildIngest resolves the embedding-stage components named in cfg.
func BuildIngest(ctx context.Context, reg *registry.Registry, cfg *config.AppConfig, env registry.Env) (*Ingest, error) {
	ec := cfg.Embedding
	in := &Ingest{}
	for _, name := range reg.Loaders.Ordered() {
		l, err := reg.Loaders.Resolve(name, nil, env)
		if err != nil {
			return nil, err
		}
		in.Loaders = append(in.Loaders, loader.Ext{Name: name, Loader: l})
	}

	var err error
	if in.Splitter, err = reg.Splitters.Resolve(ec.Splitter.Type, ec.Splitter.Args, env); err != nil {
		return nil, err
	}
	if in.Embedder, err = reg.Embedders.Resolve(ec.Embedding.Type, ec.Embedding.Kwargs, env); err != nil {
		return nil, err
	}
	if cc := ec.Embedding.Cache; cc != nil {
		backend, err := cacheBackend(ctx, cc)
		if err != nil {
			return nil, err
		}
		wrapped := cache.Wrap(in.Embedder, backend, cc.Prefix, time.Duration(cc.TTLSecs)*time.Second, env.Logger)
		in.Embedder = wrapped
		in.closers = append(in.closers, wrapped.Close)
	}
	if in.Store, err = reg.Stores.Resolve(ec.VectorDB.Type, ec.VectorDB.Args, env); err != nil {
		in.Close() //nolint:errcheck
		return nil, err
	}
	in.closers = append(in.closers, in.Store.Close)
	return in, nil
}

func cacheBackend(ctx context.Context, cc *config.CacheConfig) (cache.Backend, error) {
	switch cc.Type {
	case "memory":
		return cache.NewMemory(), nil
	case "redis":
		b, err := cache.NewRedis(ctx, cc.Address, cc.Password, cc.DB)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: redis %s: %w", cc.Address, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: embedding cache %q (known: memory, redis)", registry.ErrUnknown, cc.Type)
}
