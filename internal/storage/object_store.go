// Package storage keeps original invoice files addressable by opaque
// keys, decoupled from where the bytes actually live.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/textnorm"
)

// ObjectStore stores immutable uploaded originals under opaque keys.
type ObjectStore interface {
	// Put writes content under key, creating parent directories as needed.
	Put(key string, content []byte) error

	// Get returns the stored content. os.ErrNotExist-wrapped error when
	// the key is unknown.
	Get(key string) ([]byte, error)

	// Delete removes an object. Unknown keys are not an error.
	Delete(key string) error
}

// LocalObjectStore implements ObjectStore on a local directory tree.
type LocalObjectStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalObjectStore creates a store rooted at baseDir.
func NewLocalObjectStore(baseDir string, logger *zap.Logger) *LocalObjectStore {
	return &LocalObjectStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// InvoiceKey builds the storage key for an uploaded original: a
// year/month folder plus a sanitized, collision-proof filename.
func InvoiceKey(uploadedAt time.Time, originalName string) string {
	return fmt.Sprintf("invoices/%04d/%02d/%s",
		uploadedAt.Year(), int(uploadedAt.Month()), textnorm.SafeFilename(originalName))
}

// Put writes content under key.
func (s *LocalObjectStore) Put(key string, content []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.logger.Error("Failed to create object directories",
			zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		s.logger.Error("Failed to write object",
			zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write object: %w", err)
	}

	s.logger.Debug("Object stored",
		zap.String("key", key),
		zap.Int("size", len(content)))
	return nil
}

// Get returns the content stored under key.
func (s *LocalObjectStore) Get(key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return content, nil
}

// Delete removes the object stored under key.
func (s *LocalObjectStore) Delete(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// resolve maps a key to a filesystem path, rejecting anything that would
// escape the base directory.
func (s *LocalObjectStore) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key escapes base directory: %s", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}
