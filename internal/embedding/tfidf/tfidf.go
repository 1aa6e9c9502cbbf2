package tfidf

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Embedder implements a simple TF-IDF vectorizer.
// It builds a vocabulary from the corpus and computes IDF values. When a
// model path is set the vocabulary is saved after Prepare and loaded on
// first use, so a later run can embed questions against an existing store.
type Embedder struct {
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	prepared     bool
	fingerprint  string
	modelPath    string
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates an unprepared TF-IDF embedder. modelPath may be empty.
func NewEmbedder(modelPath string) *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		modelPath:    modelPath,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns "tfidf", followed by a hash of the vocabulary once the
// embedder is fitted, so vectors of different vocabularies never share a name.
func (e *Embedder) Name() string {
	if !e.prepared && e.modelPath != "" {
		_ = e.load()
	}
	if e.fingerprint == "" {
		return "tfidf"
	}
	return "tfidf@" + e.fingerprint
}

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(_ context.Context, corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for _, text := range corpus {
		tokens := e.tokenize(text)
		seen := make(map[string]struct{})
		for _, tok := range tokens {
			if _, isStop := e.stopwords[tok]; isStop {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Create stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	N := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+N)/(1+float64(df[term]))) + 1.0
	}
	e.dimension = len(terms)
	e.prepared = true
	data, err := json.Marshal(model{Terms: terms, IDF: e.idf})
	if err != nil {
		return err
	}
	e.fingerprint = fingerprint(data)
	if e.modelPath != "" {
		return e.save(data)
	}
	return nil
}

// LoadModel restores the vocabulary saved by an earlier Prepare.
func (e *Embedder) LoadModel() error {
	if e.modelPath == "" {
		return errors.New("tfidf embedder has no model file")
	}
	return e.load()
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int {
	if !e.prepared && e.modelPath != "" {
		_ = e.load()
	}
	return e.dimension
}

// Embed computes the TF-IDF embedding for the given text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	if !e.prepared && e.modelPath != "" {
		if err := e.load(); err != nil {
			return nil, err
		}
	}
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	vec := make([]float64, e.dimension)
	tokens := e.tokenize(text)
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokens {
		if _, isStop := e.stopwords[tok]; isStop {
			continue
		}
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		tfv := float64(count) / float64(total)
		vec[idx] = tfv * e.idf[idx]
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

type model struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

func fingerprint(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:6])
}

func (e *Embedder) save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(e.modelPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(e.modelPath, data, 0o644)
}

func (e *Embedder) load() error {
	data, err := os.ReadFile(e.modelPath)
	if err != nil {
		return fmt.Errorf("tfidf embedder not prepared and no saved model: %w", err)
	}
	var m model
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("tfidf model %s: %w", e.modelPath, err)
	}
	if len(m.Terms) != len(m.IDF) || len(m.Terms) == 0 {
		return fmt.Errorf("tfidf model %s: corrupt vocabulary", e.modelPath)
	}
	e.vocabulary = make(map[string]int, len(m.Terms))
	for i, term := range m.Terms {
		e.vocabulary[term] = i
	}
	e.idf = m.IDF
	e.dimension = len(m.Terms)
	e.fingerprint = fingerprint(data)
	e.prepared = true
	return nil
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
