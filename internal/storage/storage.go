// Package storage persists completed scans so later runs can answer
// whether an image was seen before. History is optional; scan and review
// behave identically with or without it.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ImageRecord is one image inside a recorded group.
type ImageRecord struct {
	Path string `json:"path"`
	// Signature is the per-channel mean of the decoded image, recorded as
	// metadata only. Empty when the image could not be decoded at record
	// time.
	Signature []float32 `json:"signature,omitempty"`
}

// GroupRecord is one duplicate group inside a recorded scan.
type GroupRecord struct {
	Ordinal int           `json:"ordinal"`
	Images  []ImageRecord `json:"images"`
}

// Scan is a completed duplicate sweep.
type Scan struct {
	ID        uuid.UUID     `json:"id"`
	Root      string        `json:"root"`
	Threshold float64       `json:"threshold"`
	ScannedAt time.Time     `json:"scanned_at"`
	Groups    []GroupRecord `json:"groups"`
}

// Store records completed scans.
type Store interface {
	RecordScan(ctx context.Context, scan Scan) error
	Close()
}

// FileStore appends scan records to a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path. The parent directory is
// created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// RecordScan merges the scan into the existing file contents and rewrites
// the file.
func (s *FileStore) RecordScan(ctx context.Context, scan Scan) error {
	var existing []Scan
	if data, err := os.ReadFile(s.path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to unmarshal existing history: %w", err)
		}
	}

	all := append(existing, scan)

	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create history file: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(all); err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return nil
}

// Close implements Store; the file store holds no resources.
func (s *FileStore) Close() {}
