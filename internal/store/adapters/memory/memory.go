// Package memory implementa core.DocumentStore en memoria (tests y desarrollo).
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/dropDatabas3/devlog/internal/store/core"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]core.Document
}

func New() *Store {
	return &Store{docs: make(map[string]core.Document)}
}

func (s *Store) Get(ctx context.Context, path string) (core.Document, error) {
	if err := core.ValidateDocPath(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[path]
	if !ok {
		return nil, core.ErrNotFound
	}
	return clone(d), nil
}

func (s *Store) Merge(ctx context.Context, path string, fields core.Document) error {
	if err := core.ValidateDocPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[path]
	if !ok {
		d = core.Document{}
		s.docs[path] = d
	}
	for k, v := range fields {
		d[k] = v
	}
	return nil
}

func (s *Store) DeleteFields(ctx context.Context, path string, fields ...string) error {
	if err := core.ValidateDocPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[path]; ok {
		for _, f := range fields {
			delete(d, f)
		}
	}
	return nil
}

func (s *Store) DeleteRecursive(ctx context.Context, path string) error {
	if err := core.ValidateDocPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := path + "/"
	for p := range s.docs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(s.docs, p)
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Paths lista las rutas existentes (para tests).
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for p := range s.docs {
		out = append(out, p)
	}
	return out
}

func clone(d core.Document) core.Document {
	out := make(core.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
