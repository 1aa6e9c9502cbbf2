// Package loader reads source documents from a folder tree.
package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"ragbench/internal/domain"
)

// Ext pairs a file extension (without the dot) with its loader.
type Ext struct {
	Name   string
	Loader domain.Loader
}

// Folder loads every file under root whose extension matches one of exts,
// case-insensitively. Extensions are processed in the given order so all
// files of the first kind come before the second.
func Folder(root string, exts []Ext, logger *zap.Logger) ([]domain.Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var docs []domain.Document
	for _, ext := range exts {
		files, err := find(root, ext.Name)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			loaded, err := ext.Loader.Load(f)
			if err != nil {
				return nil, err
			}
			docs = append(docs, loaded...)
		}
	}

	if len(docs) == 0 {
		names := make([]string, len(exts))
		for i, e := range exts {
			names[i] = "." + e.Name
		}
		logger.Warn("no source documents loaded, no valid files found",
			zap.String("folder", root), zap.Strings("accepted", names))
		return nil, nil
	}
	logger.Info("documents loaded",
		zap.Int("pages", len(docs)), zap.Any("last_metadata", docs[len(docs)-1].Metadata))
	return docs, nil
}

func find(root, ext string) ([]string, error) {
	var out []string
	suffix := "." + strings.ToLower(ext)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), suffix) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
