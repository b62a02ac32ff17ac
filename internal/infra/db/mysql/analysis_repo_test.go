package mysql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/saqr/internal/domain/inspection"
)

func newMockRepo(t *testing.T) (*AnalysisRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAnalysisRepository(db), mock
}

var columns = []string{"id", "tenant_id", "inspection_id", "mode", "language", "provider", "spec_codes", "evidence_url", "degraded", "result_json", "created_at"}

func TestAnalysisRepository_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO inspection_analyses`).
		WithArgs("a-1", "acme", "insp-9", "multi-spec", "ar", "gemini", `["FL-05","KT-01"]`, "s3://e/a-1.jpg", false, `{"results":[]}`, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &domain.Analysis{
		ID:           "a-1",
		TenantID:     "acme",
		InspectionID: "insp-9",
		Mode:         domain.ModeMultiSpec,
		Language:     domain.LanguageArabic,
		Provider:     "gemini",
		SpecCodes:    []string{"FL-05", "KT-01"},
		EvidenceURL:  "s3://e/a-1.jpg",
		Result:       `{"results":[]}`,
		CreatedAt:    created,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_SaveDefaults(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO inspection_analyses`).
		WithArgs("a-2", "-", "", "", "", "", "[]", "", true, "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), &domain.Analysis{ID: "a-2", Degraded: true}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+)\s+FROM inspection_analyses\s+WHERE tenant_id=\? AND id=\?`).
		WithArgs("acme", "a-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a-1", "acme", "", "single-spec", "en", "openai", `["FL-05"]`, "", false, `{"results":[]}`, created))

	a, err := repo.Get(context.Background(), "acme", "a-1")

	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisID("a-1"), a.ID)
	assert.Equal(t, domain.ModeSingleSpec, a.Mode)
	assert.Equal(t, []string{"FL-05"}, a.SpecCodes)
	assert.Equal(t, created, a.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_GetMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT (.+)\s+FROM inspection_analyses`).
		WithArgs("acme", "nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "acme", "nope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAnalysisRepository_Paginate(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC\s+LIMIT \? OFFSET \?`).
		WithArgs("acme", 10, 20).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a-2", "acme", "", "multi-spec", "en", "gemini", `["A","B"]`, "", false, "{}", created).
			AddRow("a-1", "acme", "", "multi-spec", "en", "", `[]`, "", true, "{}", created.Add(-time.Hour)))

	out, err := repo.Paginate(context.Background(), "acme", 3, 10)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"A", "B"}, out[0].SpecCodes)
	assert.True(t, out[1].Degraded)
	assert.Empty(t, out[1].SpecCodes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_PaginateError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("conn reset"))

	_, err := repo.Paginate(context.Background(), "acme", 0, 0)
	assert.EqualError(t, err, "conn reset")
}

func TestAnalysisRepository_EnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS inspection_analyses`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "u:p@tcp(db:3306)/saqr?parseTime=true&charset=utf8mb4&loc=UTC", DSN("u", "p", "db", 3306, "saqr"))
}
