package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/pokerwatch/internal/errors"
	"gopkg.in/yaml.v3"
)

// FileSource reads records from a local JSON or YAML file. It stands in
// for the scraper when an external job drops its output on disk.
type FileSource struct {
	path string
}

// NewFileSource creates a file source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (s *FileSource) Name() string { return "file" }

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategorySourceUnavailable).
			Context("path", s.path).
			Build()
	}

	var records []Record
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &records)
	default:
		records, err = parseRecords(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategorySourceUnavailable).
			Context("path", s.path).
			Context("operation", "decode_file").
			Build()
	}
	return records, nil
}
