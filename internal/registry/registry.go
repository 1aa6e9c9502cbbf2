// Package registry resolves component names found in configuration into
// constructed components. Each component kind has its own table of named
// factories; the app layer registers the builtins.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ragbench/internal/domain"
	"ragbench/internal/llm"
)

// ErrUnknown is returned when a configured name has no registered factory.
var ErrUnknown = errors.New("unknown component")

// Env carries run-scoped values factories may need besides their own args.
type Env struct {
	Logger *zap.Logger
	// Location is the resolved vector store location (a directory for local stores).
	Location string
	// DataDir is the internal data folder the location lives under.
	DataDir string
}

// Factory builds a component of type T from its configured args.
type Factory[T any] func(args Args, env Env) (T, error)

// Table maps names to factories for one component kind.
type Table[T any] struct {
	kind      string
	factories map[string]Factory[T]
	order     []string
}

func newTable[T any](kind string) *Table[T] {
	return &Table[T]{kind: kind, factories: make(map[string]Factory[T])}
}

// Register adds or replaces the factory for name. Names are case-insensitive.
func (t *Table[T]) Register(name string, f Factory[T]) {
	key := strings.ToLower(name)
	if _, ok := t.factories[key]; !ok {
		t.order = append(t.order, key)
	}
	t.factories[key] = f
}

// Resolve constructs the component registered under name.
func (t *Table[T]) Resolve(name string, args Args, env Env) (T, error) {
	var zero T
	f, ok := t.factories[strings.ToLower(name)]
	if !ok {
		return zero, fmt.Errorf("%w: %s %q (known: %s)", ErrUnknown, t.kind, name, strings.Join(t.Names(), ", "))
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	v, err := f(args, env)
	if err != nil {
		return zero, fmt.Errorf("%s %q: %w", t.kind, name, err)
	}
	return v, nil
}

// Names lists the registered names sorted alphabetically.
func (t *Table[T]) Names() []string {
	out := append([]string(nil), t.order...)
	sort.Strings(out)
	return out
}

// Ordered lists the registered names in registration order.
func (t *Table[T]) Ordered() []string {
	return append([]string(nil), t.order...)
}

// Registry holds the factory tables for every configurable component kind.
type Registry struct {
	Embedders *Table[domain.Embedder]
	Splitters *Table[domain.Splitter]
	Stores    *Table[domain.VectorStore]
	LLMs      *Table[llm.Provider]
	// Loaders are keyed by file extension without the dot. Registration
	// order is the order files are loaded in.
	Loaders *Table[domain.Loader]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		Embedders: newTable[domain.Embedder]("embedder"),
		Splitters: newTable[domain.Splitter]("splitter"),
		Stores:    newTable[domain.VectorStore]("vector store"),
		LLMs:      newTable[llm.Provider]("llm"),
		Loaders:   newTable[domain.Loader]("loader"),
	}
}
