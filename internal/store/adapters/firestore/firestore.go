// Package firestore implementa core.DocumentStore sobre Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"

	gcfs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dropDatabas3/devlog/internal/store/core"
)

type Store struct {
	client *gcfs.Client
}

// New envuelve un cliente ya creado (normalmente vía firebase.App.Firestore).
func New(client *gcfs.Client) *Store {
	return &Store{client: client}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *Store) Get(ctx context.Context, path string) (core.Document, error) {
	if err := core.ValidateDocPath(path); err != nil {
		return nil, err
	}
	snap, err := s.client.Doc(path).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("firestore get %s: %w", path, err)
	}
	return core.Document(snap.Data()), nil
}

func (s *Store) Merge(ctx context.Context, path string, fields core.Document) error {
	if err := core.ValidateDocPath(path); err != nil {
		return err
	}
	if _, err := s.client.Doc(path).Set(ctx, map[string]any(fields), gcfs.MergeAll); err != nil {
		return fmt.Errorf("firestore merge %s: %w", path, err)
	}
	return nil
}

func (s *Store) DeleteFields(ctx context.Context, path string, fields ...string) error {
	if err := core.ValidateDocPath(path); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	updates := make([]gcfs.Update, 0, len(fields))
	for _, f := range fields {
		updates = append(updates, gcfs.Update{Path: f, Value: gcfs.Delete})
	}
	if _, err := s.client.Doc(path).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("firestore delete fields %s: %w", path, err)
	}
	return nil
}

// DeleteRecursive recorre las subcolecciones en profundidad y encola todos los
// borrados en un BulkWriter. Incluye documentos "fantasma" (sin datos pero con
// subcolecciones), por eso se usa DocumentRefs y no Documents.
func (s *Store) DeleteRecursive(ctx context.Context, path string) error {
	if err := core.ValidateDocPath(path); err != nil {
		return err
	}
	bw := s.client.BulkWriter(ctx)
	var jobs []*gcfs.BulkWriterJob

	var walk func(doc *gcfs.DocumentRef) error
	walk = func(doc *gcfs.DocumentRef) error {
		cols := doc.Collections(ctx)
		for {
			col, err := cols.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return fmt.Errorf("list collections of %s: %w", doc.Path, err)
			}
			refs := col.DocumentRefs(ctx)
			for {
				child, err := refs.Next()
				if errors.Is(err, iterator.Done) {
					break
				}
				if err != nil {
					return fmt.Errorf("list documents of %s: %w", col.Path, err)
				}
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		job, err := bw.Delete(doc)
		if err != nil {
			return fmt.Errorf("enqueue delete %s: %w", doc.Path, err)
		}
		jobs = append(jobs, job)
		return nil
	}

	walkErr := walk(s.client.Doc(path))
	bw.End()
	if walkErr != nil {
		return fmt.Errorf("firestore recursive delete %s: %w", path, walkErr)
	}
	for _, j := range jobs {
		if _, err := j.Results(); err != nil && !isNotFound(err) {
			return fmt.Errorf("firestore recursive delete %s: %w", path, err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }
