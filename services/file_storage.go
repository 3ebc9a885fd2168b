package services

import (
	"io"
	"os"
	"path/filepath"

	"cleanzone-api/apperrors"
)

// FileStorage keeps uploaded files under a base directory.
type FileStorage interface {
	Save(path string, data io.Reader) error
	Open(path string) (io.ReadCloser, error)
	Delete(path string) error
	Exists(path string) bool
}

type localFileStorage struct {
	basePath string
}

func NewFileStorage(basePath string) FileStorage {
	return &localFileStorage{basePath: basePath}
}

func (s *localFileStorage) resolve(path string) (string, error) {
	// rooting the path first keeps ".." from climbing out of basePath
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", apperrors.Validation("invalid file path")
	}
	return filepath.Join(s.basePath, clean), nil
}

func (s *localFileStorage) Save(path string, data io.Reader) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		os.Remove(fullPath)
		return err
	}
	return file.Close()
}

func (s *localFileStorage) Open(path string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		return nil, apperrors.NotFound("file not found")
	}
	return f, err
}

func (s *localFileStorage) Delete(path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	return os.Remove(fullPath)
}

func (s *localFileStorage) Exists(path string) bool {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}
