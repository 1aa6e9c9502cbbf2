package chunker

import (
	"strings"

	"ragbench/internal/domain"
)

// DefaultSeparators are tried in order, from paragraphs down to characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveOptions configures RecursiveSplitter.
type RecursiveOptions struct {
	Options    `yaml:",inline"`
	Separators []string `yaml:"separators"`
}

// RecursiveSplitter splits on the first separator present in the text and
// recurses with the finer separators into pieces still above the chunk size.
type RecursiveSplitter struct {
	m          merger
	separators []string
	keep       bool
}

func NewRecursiveSplitter(o RecursiveOptions) (*RecursiveSplitter, error) {
	m, err := newMerger(o.Options)
	if err != nil {
		return nil, err
	}
	seps := o.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	keep := true
	if o.KeepSeparator != nil {
		keep = *o.KeepSeparator
	}
	return &RecursiveSplitter{m: m, separators: seps, keep: keep}, nil
}

func (s *RecursiveSplitter) Split(documents []domain.Document) ([]domain.Chunk, error) {
	return splitDocuments(documents, func(text string) []string {
		return s.splitText(text, s.separators)
	}), nil
}

func (s *RecursiveSplitter) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	joinWith := separator
	if s.keep {
		joinWith = ""
	}
	var (
		out  []string
		good []string
	)
	for _, piece := range splitKeep(text, separator, s.keep) {
		if s.m.length(piece) < s.m.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.m.merge(good, joinWith)...)
			good = nil
		}
		if len(finer) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.splitText(piece, finer)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.m.merge(good, joinWith)...)
	}
	return out
}
