package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File persists values as a JSON document of namespace -> key -> value.
// Every write rewrites the document through a temp file and rename.
type File struct {
	mu        sync.Mutex
	path      string
	namespace string
}

func NewFile(path, namespace string) *File {
	return &File{path: path, namespace: namespace}
}

func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[f.namespace][key]
	return v, ok, nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	return f.mutate(func(values map[string]string) {
		values[key] = value
	})
}

func (f *File) Remove(ctx context.Context, key string) error {
	return f.mutate(func(values map[string]string) {
		delete(values, key)
	})
}

func (f *File) Clear(ctx context.Context) error {
	return f.mutate(func(values map[string]string) {
		for k := range values {
			delete(values, k)
		}
	})
}

func (f *File) mutate(fn func(values map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	values := doc[f.namespace]
	if values == nil {
		values = make(map[string]string)
		doc[f.namespace] = values
	}
	fn(values)
	if len(values) == 0 {
		delete(doc, f.namespace)
	}
	return f.save(doc)
}

func (f *File) load() (map[string]map[string]string, error) {
	doc := make(map[string]map[string]string)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *File) save(doc map[string]map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create storage dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".storefront-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}
