package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostmortemStore = (*PostmortemStore)(nil)

const postmortemColumns = `id, source_id, company, title, url, published_at, severity,
	affected_services, root_cause_category, ai_summary, tags, status, created_at`

// sortColumns whitelists the ORDER BY expressions the listing accepts
var sortColumns = map[domain.SortField]string{
	domain.SortByPublishedAt: "published_at",
	domain.SortByCompany:     "company",
	domain.SortByCreatedAt:   "created_at",
}

// PostmortemStore implements driven.PostmortemStore using PostgreSQL
type PostmortemStore struct {
	db *DB
}

// NewPostmortemStore creates a new PostmortemStore
func NewPostmortemStore(db *DB) *PostmortemStore {
	return &PostmortemStore{db: db}
}

// Insert stores a new entry
func (s *PostmortemStore) Insert(ctx context.Context, p *domain.Postmortem) error {
	var severity sql.NullString
	if p.Severity != nil {
		severity = sql.NullString{String: string(*p.Severity), Valid: true}
	}

	query := `INSERT INTO postmortems (` + postmortemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		NullString(nonEmpty(p.SourceID)),
		p.Company,
		p.Title,
		p.URL,
		NullTime(p.PublishedAt),
		severity,
		pq.Array(orEmpty(p.AffectedServices)),
		NullString(p.RootCauseCategory),
		NullString(p.AISummary),
		pq.Array(orEmpty(p.Tags)),
		string(p.Status),
		p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return &domain.ValidationError{Field: "id", Message: fmt.Sprintf("entry %s already exists", p.ID), Conflict: true}
	}
	return err
}

// Exists reports whether an entry with the id is stored
func (s *PostmortemStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM postmortems WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Get retrieves an entry by ID
func (s *PostmortemStore) Get(ctx context.Context, id string) (*domain.Postmortem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postmortemColumns+` FROM postmortems WHERE id = $1`, id)
	return scanPostmortem(row)
}

// SetStatus moves an entry from one moderation status to another
func (s *PostmortemStore) SetStatus(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	result, err := s.db.ExecContext(ctx, setStatusQuery, id, string(to), string(from))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const setStatusQuery = `UPDATE postmortems SET status = $2 WHERE id = $1 AND status = $3`

// Delete removes an entry
func (s *PostmortemStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM postmortems WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// ListByStatus retrieves all entries with the status, newest first
func (s *PostmortemStore) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Postmortem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postmortemColumns+` FROM postmortems WHERE status = $1 ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPostmortems(rows)
}

// Search retrieves one page of entries matching the filter and the total match count
func (s *PostmortemStore) Search(ctx context.Context, filter domain.PostmortemFilter) ([]*domain.Postmortem, int, error) {
	q := buildSearchQuery(filter.Normalize())

	var total int
	if err := s.db.QueryRowContext(ctx, q.count, q.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, q.page, q.pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := scanPostmortems(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Companies lists distinct company names having entries with the status
func (s *PostmortemStore) Companies(ctx context.Context, status domain.Status) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT company FROM postmortems WHERE status = $1 ORDER BY company`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

type searchQuery struct {
	count    string
	page     string
	args     []any
	pageArgs []any
}

// buildSearchQuery renders the count and page statements for a normalized filter.
// Only whitelisted column names reach the SQL text; values are bound.
func buildSearchQuery(f domain.PostmortemFilter) searchQuery {
	var where []string
	var args []any

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	add("status = $%d", string(f.Status))
	if f.Company != "" {
		add("company = $%d", f.Company)
	}
	if f.Severity != "" {
		add("severity = $%d", string(f.Severity))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = sortColumns[domain.SortByPublishedAt]
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	order := fmt.Sprintf(" ORDER BY %s %s NULLS LAST, id ASC", column, dir)

	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	n := len(args)

	return searchQuery{
		count:    "SELECT COUNT(*) FROM postmortems" + clause,
		page:     "SELECT " + postmortemColumns + " FROM postmortems" + clause + order + fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2),
		args:     args,
		pageArgs: pageArgs,
	}
}

func scanPostmortems(rows *sql.Rows) ([]*domain.Postmortem, error) {
	entries := []*domain.Postmortem{}
	for rows.Next() {
		p, err := scanPostmortem(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

func scanPostmortem(row rowScanner) (*domain.Postmortem, error) {
	var p domain.Postmortem
	var sourceID, severity, rootCause, summary sql.NullString
	var publishedAt sql.NullTime
	var status string

	err := row.Scan(
		&p.ID,
		&sourceID,
		&p.Company,
		&p.Title,
		&p.URL,
		&publishedAt,
		&severity,
		pq.Array(&p.AffectedServices),
		&rootCause,
		&summary,
		pq.Array(&p.Tags),
		&status,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.SourceID = sourceID.String
	p.PublishedAt = TimePtr(publishedAt)
	if severity.Valid {
		sev := domain.Severity(severity.String)
		p.Severity = &sev
	}
	p.RootCauseCategory = StringPtr(rootCause)
	p.AISummary = StringPtr(summary)
	p.Status = domain.Status(status)
	p.AffectedServices = orEmpty(p.AffectedServices)
	p.Tags = orEmpty(p.Tags)
	return &p, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
