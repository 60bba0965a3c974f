// Package pg implementa core.DocumentStore sobre Postgres: una fila por
// documento, campos en JSONB. Alternativa a Firestore para despliegues fuera de GCP.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	migrations "github.com/dropDatabas3/devlog/migrations/postgres"

	"github.com/dropDatabas3/devlog/internal/store/core"
)

type Store struct {
	pool *pgxpool.Pool
}

// Open crea el pool y aplica las migraciones embebidas (idempotentes).
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := migrations.FS.ReadFile(n)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", n, err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path string) (core.Document, error) {
	if err := core.ValidateDocPath(path); err != nil {
		return nil, err
	}
	const query = `SELECT data FROM documents WHERE path = $1`
	var raw []byte
	err := s.pool.QueryRow(ctx, query, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d core.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return d, nil
}

func (s *Store) Merge(ctx context.Context, path string, fields core.Document) error {
	if err := core.ValidateDocPath(path); err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	// || sobre jsonb reemplaza sólo las keys del lado derecho.
	const query = `
		INSERT INTO documents (path, data, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (path) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = NOW()
	`
	_, err = s.pool.Exec(ctx, query, path, raw)
	return err
}

func (s *Store) DeleteFields(ctx context.Context, path string, fields ...string) error {
	if err := core.ValidateDocPath(path); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	const query = `UPDATE documents SET data = data - $2::text[], updated_at = NOW() WHERE path = $1`
	_, err := s.pool.Exec(ctx, query, path, fields)
	return err
}

func (s *Store) DeleteRecursive(ctx context.Context, path string) error {
	if err := core.ValidateDocPath(path); err != nil {
		return err
	}
	const query = `DELETE FROM documents WHERE path = $1 OR path LIKE $2 ESCAPE '\'`
	_, err := s.pool.Exec(ctx, query, path, likePrefix(path))
	return err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// likePrefix escapa los comodines de LIKE y agrega "/%".
func likePrefix(path string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(path) + "/%"
}
