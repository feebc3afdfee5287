package config

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

type FullReader interface {
	Normalize(key string) string
	// nil,nil = not found
	ReadAll(key string) ([]byte, error)
}

type OsFullReader struct {
	base string
}

func NewOsFullReader() *OsFullReader { return &OsFullReader{} }

func (r *OsFullReader) SetBase(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	r.base = abs
}

func (r OsFullReader) Normalize(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(r.base, path))
}

func (OsFullReader) ReadAll(path string) ([]byte, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Trace(err)
	}
	return b, nil
}

type MockFullReader struct {
	Map map[string]string
}

func NewMockFullReader(sources map[string]string) *MockFullReader {
	return &MockFullReader{Map: sources}
}

func (r *MockFullReader) Normalize(name string) string {
	return filepath.Clean(name)
}

func (r *MockFullReader) ReadAll(name string) ([]byte, error) {
	if s, ok := r.Map[name]; ok {
		return []byte(s), nil
	}
	return nil, nil
}
