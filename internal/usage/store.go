package usage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

const documentVersion = 1

// Document is the persisted form of the ledger.
type Document struct {
	Version   int                          `json:"version"`
	Providers map[models.ProviderID]Record `json:"providers"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

// Store persists ledger documents.
type Store interface {
	Load() (Document, error)
	Save(Document) error
}

// FileStore keeps the ledger as a JSON file.
type FileStore struct {
	Path string
}

// Load returns an empty document when the file does not exist.
func (s FileStore) Load() (Document, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Document{Version: documentVersion, Providers: map[models.ProviderID]Record{}}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("reading usage file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing usage file %s: %w", s.Path, err)
	}
	if doc.Providers == nil {
		doc.Providers = map[models.ProviderID]Record{}
	}
	return doc, nil
}

// Save writes the document atomically.
func (s FileStore) Save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

// MemoryStore keeps the last saved document in memory.
type MemoryStore struct {
	Doc   Document
	Saves int
}

func (m *MemoryStore) Load() (Document, error) {
	if m.Doc.Providers == nil {
		return Document{Version: documentVersion, Providers: map[models.ProviderID]Record{}}, nil
	}
	return m.Doc, nil
}

func (m *MemoryStore) Save(doc Document) error {
	m.Doc = doc
	m.Saves++
	return nil
}
