package loader

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"ragbench/internal/domain"
)

// PDF loads one document per page. Page numbers in metadata start at 0.
type PDF struct {
	Logger *zap.Logger
}

func (p PDF) Load(path string) ([]domain.Document, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	id := hashString(path)
	var docs []domain.Document
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("failed to extract text from page", zap.String("source", path), zap.Int("page", i-1), zap.Error(err))
			continue
		}
		docs = append(docs, domain.Document{
			ID:      id + ":" + strconv.Itoa(i-1),
			Path:    path,
			Content: text,
			Metadata: map[string]string{
				domain.MetaSource: path,
				domain.MetaPage:   strconv.Itoa(i - 1),
			},
		})
	}
	return docs, nil
}
