package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SourceStore = (*SourceStore)(nil)

const sourceColumns = `id, company, slug, method, config, active, last_synced_at, created_at, updated_at`

// SourceStore implements driven.SourceStore using PostgreSQL
type SourceStore struct {
	db *DB
}

// NewSourceStore creates a new SourceStore
func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

// Save creates or updates a source. A slug taken by another row is reported
// as a conflicting domain.ValidationError.
func (s *SourceStore) Save(ctx context.Context, source *domain.Source) error {
	configJSON, err := json.Marshal(source.Config)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sources (` + sourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			company = EXCLUDED.company,
			slug = EXCLUDED.slug,
			config = EXCLUDED.config,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		source.ID,
		source.Company,
		source.Slug,
		string(source.Method),
		configJSON,
		source.Active,
		NullTime(source.LastSyncedAt),
		source.CreatedAt,
		source.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &domain.ValidationError{Field: "slug", Message: fmt.Sprintf("slug %q is already in use", source.Slug), Conflict: true}
	}
	return err
}

// Get retrieves a source by ID
func (s *SourceStore) Get(ctx context.Context, id string) (*domain.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	return scanSource(row)
}

// GetBySlug retrieves a source by slug
func (s *SourceStore) GetBySlug(ctx context.Context, slug string) (*domain.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE slug = $1`, slug)
	return scanSource(row)
}

// List retrieves all sources, newest first
func (s *SourceStore) List(ctx context.Context) ([]*domain.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := []*domain.Source{}
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// Delete removes a source row. Postmortems keep their source_id.
func (s *SourceStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// MarkSynced records a successful sync completion
func (s *SourceStore) MarkSynced(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sources SET last_synced_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*domain.Source, error) {
	var source domain.Source
	var method string
	var configJSON []byte
	var lastSynced sql.NullTime

	err := row.Scan(
		&source.ID,
		&source.Company,
		&source.Slug,
		&method,
		&configJSON,
		&source.Active,
		&lastSynced,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	source.Method = domain.Method(method)
	source.LastSyncedAt = TimePtr(lastSynced)
	source.Config = map[string]string{}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &source.Config); err != nil {
			return nil, fmt.Errorf("decode config of source %s: %w", source.ID, err)
		}
	}
	return &source, nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
