// Package archive stores long-term score history exports and shareable
// reports in blob storage, keyed by user.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StorageClient abstracts blob storage for history exports and reports.
type StorageClient interface {
	PutExport(ctx context.Context, userID, exportID string, data []byte) error
	GetExport(ctx context.Context, userID, exportID string) ([]byte, error)
	PutReport(ctx context.Context, userID, reportID string, data []byte) error
	GetReport(ctx context.Context, userID, reportID string) ([]byte, error)
}

// LocalStorage implements StorageClient using the local filesystem.
// Useful for development and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(userID, kind, id string) string {
	return filepath.Join(s.BaseDir, userID, kind, id+".json")
}

func (s *LocalStorage) put(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// PutExport stores a history export blob.
func (s *LocalStorage) PutExport(ctx context.Context, userID, exportID string, data []byte) error {
	return s.put(s.path(userID, "exports", exportID), data)
}

// GetExport retrieves a history export blob.
func (s *LocalStorage) GetExport(ctx context.Context, userID, exportID string) ([]byte, error) {
	return os.ReadFile(s.path(userID, "exports", exportID))
}

// PutReport stores a report blob.
func (s *LocalStorage) PutReport(ctx context.Context, userID, reportID string, data []byte) error {
	return s.put(s.path(userID, "reports", reportID), data)
}

// GetReport retrieves a report blob.
func (s *LocalStorage) GetReport(ctx context.Context, userID, reportID string) ([]byte, error) {
	return os.ReadFile(s.path(userID, "reports", reportID))
}
