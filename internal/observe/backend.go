package observe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend appends events to a JSONL file, one event per line, synced
// after every write so records survive the short-lived hook process.
type FileBackend struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// NewFileBackend opens (or creates) the events file for appending.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating events dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening events file: %w", err)
	}
	return &FileBackend{file: file, encoder: json.NewEncoder(file)}, nil
}

// Emit writes one event line.
func (b *FileBackend) Emit(event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.encoder.Encode(event); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return b.file.Sync()
}

// Close flushes and closes the file.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}

// NopBackend discards all events.
type NopBackend struct{}

func (NopBackend) Emit(Event) error { return nil }
func (NopBackend) Close() error     { return nil }
