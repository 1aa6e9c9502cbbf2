package chunker

import "ragbench/internal/domain"

// CharacterOptions configures CharacterSplitter.
type CharacterOptions struct {
	Options   `yaml:",inline"`
	Separator *string `yaml:"separator"`
}

// CharacterSplitter splits on one literal separator and merges the pieces
// back up to the chunk size.
type CharacterSplitter struct {
	m         merger
	separator string
	keep      bool
}

func NewCharacterSplitter(o CharacterOptions) (*CharacterSplitter, error) {
	m, err := newMerger(o.Options)
	if err != nil {
		return nil, err
	}
	sep := "\n\n"
	if o.Separator != nil {
		sep = *o.Separator
	}
	keep := o.KeepSeparator != nil && *o.KeepSeparator
	return &CharacterSplitter{m: m, separator: sep, keep: keep}, nil
}

func (s *CharacterSplitter) Split(documents []domain.Document) ([]domain.Chunk, error) {
	return splitDocuments(documents, s.splitText), nil
}

func (s *CharacterSplitter) splitText(text string) []string {
	splits := splitKeep(text, s.separator, s.keep)
	sep := s.separator
	if s.keep {
		sep = ""
	}
	return s.m.merge(splits, sep)
}
