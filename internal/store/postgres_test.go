package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayguide/guide-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_FindCategoryBySlug_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id FROM categories WHERE owner_id = \$1 AND slug = \$2`).
		WithArgs("owner-1", "restaurants").
		WillReturnError(pgx.ErrNoRows)

	id, err := s.FindCategoryBySlug(context.Background(), "owner-1", "restaurants")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCategoryBySlug_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id FROM categories`).
		WithArgs("owner-1", "bars").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("cat-1"))

	id, err := s.FindCategoryBySlug(context.Background(), "owner-1", "bars")
	require.NoError(t, err)
	assert.Equal(t, "cat-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, owner_id, criteria, status, outcome, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	criteria, _ := json.Marshal(model.Criteria{RadiusMeters: 2000})
	outcome, _ := json.Marshal(model.Outcome{RunID: "run-1", Imported: 3})
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, owner_id, criteria, status, outcome, created_at, updated_at FROM runs`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "owner_id", "criteria", "status", "outcome", "created_at", "updated_at"},
		).AddRow("run-1", "owner-1", criteria, "complete", outcome, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 2000, run.Criteria.RadiusMeters)
	require.NotNil(t, run.Outcome)
	assert.Equal(t, 3, run.Outcome.Imported)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun_Transactional(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "owner-1", pgxmock.AnyArg(), "importing", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO run_items`).
		WithArgs("run-1", 0, pgxmock.AnyArg(), "pending", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	run := model.Run{ID: "run-1", OwnerID: "owner-1"}
	items := []model.Candidate{{ExternalID: "p1", Name: "Café du Port"}}
	require.NoError(t, s.CreateRun(context.Background(), run, items))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkItem_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE run_items SET`).
		WithArgs("imported", "e1", nil, pgxmock.AnyArg(), "run-1", 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkItem(context.Background(), "run-1", 5, model.ItemStatusImported, "e1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET outcome =`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", &model.Outcome{RunID: "run-1", Imported: 1})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistingFingerprints(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name, address FROM entries WHERE owner_id = \$1`).
		WithArgs("owner-1").
		WillReturnRows(pgxmock.NewRows([]string{"name", "address"}).
			AddRow("Café du Port", "12 Quai des Pêcheurs").
			AddRow("La Voile Rouge", "3 Rue du Large"))

	fps, err := s.ExistingFingerprints(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, fps, 2)
	assert.Equal(t, "Café du Port", fps[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_BuildsFilters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	criteria, _ := json.Marshal(model.Criteria{})
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, owner_id, criteria, status, outcome, created_at, updated_at FROM runs WHERE 1=1 AND owner_id = \$1 AND status = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("owner-1", "complete", 10).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "owner_id", "criteria", "status", "outcome", "created_at", "updated_at"},
		).AddRow("run-1", "owner-1", criteria, "complete", []byte(nil), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		OwnerID: "owner-1",
		Status:  model.RunStatusComplete,
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}
