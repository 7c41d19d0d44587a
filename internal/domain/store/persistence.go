package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aoa-dev/aoa/internal/domain/entity"
)

// document is the on-disk shape mandated by §6: a single JSON document
// rewritten on append, capped at R.
type document struct {
	Records    []entity.IntentRecord `json:"records"`
	FileCounts map[string]int        `json:"file_counts"`
	TagCounts  map[string]int        `json:"tag_counts"`
}

// persister owns the Intent Store's on-disk document. Every save rewrites
// the whole document via a temp-file-then-rename swap — not a WAL, since
// §6 mandates the single-document format. The eventbus's optional WAL is
// separate: it records published events and is never used to rebuild the
// store.
type persister struct {
	path   string
	logger *zap.Logger
}

func newPersister(path string, logger *zap.Logger) *persister {
	return &persister{path: path, logger: logger}
}

func (p *persister) load() (document, error) {
	var doc document
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{}, nil
		}
		return document{}, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		// Corruption on load yields an empty store, not a hard fault (§4.3).
		return document{}, fmt.Errorf("corrupt intent store document: %w", err)
	}
	return doc, nil
}

func (p *persister) save(records []entity.IntentRecord, fileCounts, tagCounts map[string]int) error {
	doc := document{Records: records, FileCounts: fileCounts, TagCounts: tagCounts}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal intent store document: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create intent store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".intent_store-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}
