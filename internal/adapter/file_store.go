package adapter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
)

// FileSystemStore implements port.FileStore on the local file system. The
// base directory is exclusively owned by this application; no external
// writer is assumed.
type FileSystemStore struct {
	baseDir string
}

// NewFileSystemStore creates a file store rooted at baseDir, creating the
// directory when missing.
func NewFileSystemStore(baseDir string) (*FileSystemStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	return &FileSystemStore{baseDir: baseDir}, nil
}

// BaseDir is the directory reserved for this application's attachments.
func (f *FileSystemStore) BaseDir() string {
	return f.baseDir
}

// StoreFile writes data under dir/name and returns the local file URL. An
// already existing file is kept untouched and its URL returned.
func (f *FileSystemStore) StoreFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		logger.Debug("files: %s already exists, keeping stored copy", path)
		return fileURL(path), nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to store file %q: %w", path, err)
	}
	return fileURL(path), nil
}

// ReadFile returns the content of dir/name.
func (f *FileSystemStore) ReadFile(dir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", name, err)
	}
	return data, nil
}

// RemoveFile deletes dir/name.
func (f *FileSystemStore) RemoveFile(dir, name string) error {
	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to remove file %q: %w", name, err)
	}
	return nil
}

// CheckFile reports whether dir/name exists.
func (f *FileSystemStore) CheckFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}
