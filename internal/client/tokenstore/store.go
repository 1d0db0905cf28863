// Package tokenstore persists the bearer token of the signed-in user in the
// local client database. The token survives process restarts and has no
// expiry logic of its own; an expired token only shows up as failed requests.
package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtodo/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophtodo/internal/dbx"
)

const (
	keyToken    = "token"
	keyStoredAt = "token_stored_at"
)

// Store is a single-slot token store backed by the metadata table.
type Store struct {
	db   *sql.DB
	repo func(dbx.DBTX) metadata.Repository
	now  func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, repo: sqliteRepository, now: time.Now}
}

func sqliteRepository(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

// Get returns the stored token; ok is false when no one is signed in.
func (s *Store) Get(ctx context.Context) (string, bool, error) {
	token, ok, err := s.repo(s.db).Get(ctx, keyToken)
	if err != nil {
		return "", false, fmt.Errorf("token store: %w", err)
	}
	if !ok || token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// Set replaces the stored token. An empty token clears the slot.
func (s *Store) Set(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo(tx)
		if err := repo.Set(ctx, keyToken, token); err != nil {
			return err
		}
		return repo.Set(ctx, keyStoredAt, s.now().UTC().Format(time.RFC3339))
	})
	if err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	return nil
}

// Clear removes the token.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo(s.db).Delete(ctx, keyToken, keyStoredAt); err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	return nil
}

// StoredAt reports when the current token was saved.
func (s *Store) StoredAt(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := s.repo(s.db).Get(ctx, keyStoredAt)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}
