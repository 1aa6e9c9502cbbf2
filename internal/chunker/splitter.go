// Package chunker splits loaded documents into chunks for embedding.
package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"ragbench/internal/domain"
)

// LengthFunc measures a piece of text in the unit chunk sizes are given in.
type LengthFunc func(string) int

// Length functions a config may name. Only these are accepted.
var lengthFuncs = map[string]LengthFunc{
	"len":   utf8.RuneCountInString,
	"bytes": func(s string) int { return len(s) },
	"words": func(s string) int { return len(strings.Fields(s)) },
}

// LookupLength returns the named length function. An empty name selects "len".
func LookupLength(name string) (LengthFunc, error) {
	if name == "" {
		name = "len"
	}
	f, ok := lengthFuncs[name]
	if !ok {
		return nil, fmt.Errorf("length_function %q not allowed (use len, bytes or words)", name)
	}
	return f, nil
}

// Options are shared by the character based splitters.
type Options struct {
	ChunkSize       int    `yaml:"chunk_size"`
	ChunkOverlap    int    `yaml:"chunk_overlap"`
	LengthFunction  string `yaml:"length_function"`
	KeepSeparator   *bool  `yaml:"keep_separator"`
	StripWhitespace *bool  `yaml:"strip_whitespace"`
}

type merger struct {
	chunkSize    int
	chunkOverlap int
	length       LengthFunc
	strip        bool
}

func newMerger(o Options) (merger, error) {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 4000
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 0
	}
	if o.ChunkOverlap > o.ChunkSize {
		return merger{}, fmt.Errorf("chunk_overlap (%d) larger than chunk_size (%d)", o.ChunkOverlap, o.ChunkSize)
	}
	length, err := LookupLength(o.LengthFunction)
	if err != nil {
		return merger{}, err
	}
	strip := true
	if o.StripWhitespace != nil {
		strip = *o.StripWhitespace
	}
	return merger{chunkSize: o.ChunkSize, chunkOverlap: o.ChunkOverlap, length: length, strip: strip}, nil
}

// merge combines small splits into chunks of at most chunkSize, carrying up
// to chunkOverlap of the previous chunk's tail into the next one. A single
// split longer than chunkSize becomes its own oversized chunk.
func (m merger) merge(splits []string, separator string) []string {
	sepLen := m.length(separator)
	var (
		docs    []string
		current []string
		total   int
	)
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}
	for _, d := range splits {
		l := m.length(d)
		if total+l+joinLen() > m.chunkSize && len(current) > 0 {
			if doc, ok := m.join(current, separator); ok {
				docs = append(docs, doc)
			}
			for total > m.chunkOverlap || (total+l+joinLen() > m.chunkSize && total > 0) {
				drop := m.length(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, d)
		total += l
		if len(current) > 1 {
			total += sepLen
		}
	}
	if doc, ok := m.join(current, separator); ok {
		docs = append(docs, doc)
	}
	return docs
}

func (m merger) join(parts []string, separator string) (string, bool) {
	text := strings.Join(parts, separator)
	if m.strip {
		text = strings.TrimSpace(text)
	}
	return text, text != ""
}

// splitKeep splits text on sep. With keep set, each piece after the first
// starts with the separator it was split on. An empty sep splits into runes.
func splitKeep(text, sep string, keep bool) []string {
	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	raw := strings.Split(text, sep)
	for i, p := range raw {
		if keep && i > 0 {
			p = sep + p
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// splitDocuments runs split over each document and turns the pieces into
// chunks that carry the document's metadata.
func splitDocuments(documents []domain.Document, split func(string) []string) []domain.Chunk {
	var chunks []domain.Chunk
	for _, d := range documents {
		for idx, text := range split(d.Content) {
			meta := make(map[string]string, len(d.Metadata))
			for k, v := range d.Metadata {
				meta[k] = v
			}
			chunks = append(chunks, domain.Chunk{
				DocumentID: d.ID,
				ChunkID:    d.ID + ":" + strconv.Itoa(idx),
				Text:       text,
				Index:      idx,
				Metadata:   meta,
			})
		}
	}
	return chunks
}
