package loader

import (
	"fmt"
	"os"
	"unicode/utf8"

	"ragbench/internal/domain"
)

// Text loads a whole file as one UTF-8 document.
type Text struct{}

func (Text) Load(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("load %s: not valid utf-8", path)
	}
	return []domain.Document{{
		ID:       hashString(path),
		Path:     path,
		Content:  string(data),
		Metadata: map[string]string{domain.MetaSource: path},
	}}, nil
}
