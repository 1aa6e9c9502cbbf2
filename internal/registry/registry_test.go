package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
)

type stubSplitter struct{ size int }

func (s stubSplitter) Split(docs []domain.Document) ([]domain.Chunk, error) { return nil, nil }

func TestResolveDecodesArgs(t *testing.T) {
	r := New()
	r.Splitters.Register("Stub", func(args Args, env Env) (domain.Splitter, error) {
		var opts struct {
			Size int `yaml:"size"`
		}
		if err := args.Decode(&opts); err != nil {
			return nil, err
		}
		return stubSplitter{size: opts.Size}, nil
	})

	sp, err := r.Splitters.Resolve("stub", Args{"size": 42}, Env{})
	require.NoError(t, err)
	assert.Equal(t, 42, sp.(stubSplitter).size)
}

func TestResolveRejectsUnknownArg(t *testing.T) {
	r := New()
	r.Splitters.Register("stub", func(args Args, env Env) (domain.Splitter, error) {
		var opts struct {
			Size int `yaml:"size"`
		}
		if err := args.Decode(&opts); err != nil {
			return nil, err
		}
		return stubSplitter{size: opts.Size}, nil
	})

	_, err := r.Splitters.Resolve("stub", Args{"sise": 1}, Env{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sise")
}

func TestResolveUnknownName(t *testing.T) {
	r := New()
	r.Splitters.Register("b", func(Args, Env) (domain.Splitter, error) { return stubSplitter{}, nil })
	r.Splitters.Register("a", func(Args, Env) (domain.Splitter, error) { return stubSplitter{}, nil })

	_, err := r.Splitters.Resolve("missing", nil, Env{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknown))
	assert.Contains(t, err.Error(), "known: a, b")
	assert.Equal(t, []string{"b", "a"}, r.Splitters.Ordered())
}
