package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/saqr/internal/domain/inspection"
)

const schema = `
CREATE TABLE IF NOT EXISTS inspection_analyses (
  id            TEXT        PRIMARY KEY,
  tenant_id     TEXT        NOT NULL,
  inspection_id TEXT        NOT NULL DEFAULT '',
  mode          TEXT        NOT NULL,
  language      TEXT        NOT NULL,
  provider      TEXT        NOT NULL DEFAULT '',
  spec_codes    JSONB       NOT NULL,
  evidence_url  TEXT        NOT NULL DEFAULT '',
  degraded      BOOLEAN     NOT NULL DEFAULT FALSE,
  result_json   JSONB       NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inspection_analyses_tenant_created ON inspection_analyses (tenant_id, created_at DESC);`

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// EnsureSchema creates the analyses table when missing.
func (r *AnalysisRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save inserts or updates an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Analysis) error {
	const q = `
INSERT INTO inspection_analyses
  (id, tenant_id, inspection_id, mode, language, provider, spec_codes, evidence_url, degraded, result_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  provider=EXCLUDED.provider,
  evidence_url=EXCLUDED.evidence_url,
  degraded=EXCLUDED.degraded,
  result_json=EXCLUDED.result_json;
`
	result := a.Result
	if strings.TrimSpace(result) == "" {
		result = "{}"
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), a.InspectionID, string(a.Mode), string(a.Language), a.Provider,
		encodeCodes(a.SpecCodes), a.EvidenceURL, a.Degraded, result, createdAt.UTC(),
	)
	return err
}

const selectColumns = `SELECT id, tenant_id, inspection_id, mode, language, provider, spec_codes, evidence_url, degraded, result_json, created_at
FROM inspection_analyses`

// Get returns one analysis of the tenant
func (r *AnalysisRepository) Get(ctx context.Context, tenant string, id domain.AnalysisID) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+"\nWHERE tenant_id=$1 AND id=$2;", tenant, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return a, err
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Analysis, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	rows, err := r.db.QueryContext(ctx, selectColumns+"\nWHERE tenant_id=$1\nORDER BY created_at DESC, id DESC\nLIMIT $2 OFFSET $3;", tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s scanner) (*domain.Analysis, error) {
	var (
		a        domain.Analysis
		mode     string
		language string
		codes    string
		created  time.Time
	)
	if err := s.Scan(&a.ID, &a.TenantID, &a.InspectionID, &mode, &language, &a.Provider,
		&codes, &a.EvidenceURL, &a.Degraded, &a.Result, &created); err != nil {
		return nil, err
	}
	specCodes, err := decodeCodes(codes)
	if err != nil {
		return nil, fmt.Errorf("decode spec_codes of %s: %w", a.ID, err)
	}
	a.Mode = domain.Mode(mode)
	a.Language = domain.Language(language)
	a.SpecCodes = specCodes
	a.CreatedAt = created
	return &a, nil
}
