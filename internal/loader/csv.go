package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ragbench/internal/domain"
)

// CSV loads one document per data row. The content lists each column as
// "header: value" on its own line.
type CSV struct{}

func (CSV) Load(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	var docs []domain.Document
	for row := 0; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load %s row %d: %w", path, row, err)
		}
		var b strings.Builder
		for i, v := range rec {
			name := ""
			if i < len(header) {
				name = strings.TrimSpace(header[i])
			}
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(v))
		}
		docs = append(docs, domain.Document{
			ID:      hashString(path) + ":" + strconv.Itoa(row),
			Path:    path,
			Content: b.String(),
			Metadata: map[string]string{
				domain.MetaSource: path,
				domain.MetaRow:    strconv.Itoa(row),
			},
		})
	}
	return docs, nil
}
