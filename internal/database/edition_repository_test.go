package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/domain"
)

// editionColumns lists the columns returned by edition SELECT queries.
var editionColumns = []string{
	"id", "event_id", "year", "race_date", "registration_status",
	"registration_url", "registration_opens", "registration_closes",
	"provenance", "created_at", "updated_at",
}

func newEditionRepo(t *testing.T) (*database.EditionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewEditionRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func TestEditionRepository_GetOrCreate_Existing(t *testing.T) {
	repo, mock, cleanup := newEditionRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM editions").
		WithArgs("boston-marathon", 2026).
		WillReturnRows(sqlmock.NewRows(editionColumns).AddRow(
			"ed-1", "boston-marathon", 2026, "2026-04-20", nil, nil, nil, nil,
			[]byte(`{"race_date":{"source_id":"s1","priority":9,"rank":0,"applied_at":"2026-02-01T00:00:00Z"}}`),
			now, now,
		))

	edition, err := repo.GetOrCreate(context.Background(), "boston-marathon", 2026)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if edition.RaceDate == nil || *edition.RaceDate != "2026-04-20" {
		t.Errorf("race date not scanned: %v", edition.RaceDate)
	}
	if edition.Provenance[domain.FieldRaceDate].SourceID != "s1" {
		t.Errorf("provenance not scanned: %+v", edition.Provenance)
	}

	expectationsMet(t, mock)
}

func TestEditionRepository_GetOrCreate_CreatesMissing(t *testing.T) {
	repo, mock, cleanup := newEditionRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM editions").
		WithArgs("boston-marathon", 2026).
		WillReturnRows(sqlmock.NewRows(editionColumns))
	mock.ExpectQuery("INSERT INTO editions").
		WithArgs(sqlmock.AnyArg(), "boston-marathon", 2026, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	edition, err := repo.GetOrCreate(context.Background(), "boston-marathon", 2026)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if edition.EventID != "boston-marathon" || edition.Year != 2026 {
		t.Errorf("unexpected edition %+v", edition)
	}
	if edition.ID == "" {
		t.Error("expected generated ID")
	}

	expectationsMet(t, mock)
}

// When two workers race to create the same edition, the loser re-reads the
// winner's row.
func TestEditionRepository_GetOrCreate_LosesCreateRace(t *testing.T) {
	repo, mock, cleanup := newEditionRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM editions").
		WithArgs("boston-marathon", 2026).
		WillReturnRows(sqlmock.NewRows(editionColumns))
	// ON CONFLICT DO NOTHING returns no row.
	mock.ExpectQuery("INSERT INTO editions").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))
	mock.ExpectQuery("SELECT (.+) FROM editions").
		WithArgs("boston-marathon", 2026).
		WillReturnRows(sqlmock.NewRows(editionColumns).AddRow(
			"winner-id", "boston-marathon", 2026, nil, nil, nil, nil, nil,
			[]byte(`{}`), now, now,
		))

	edition, err := repo.GetOrCreate(context.Background(), "boston-marathon", 2026)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if edition.ID != "winner-id" {
		t.Errorf("expected the winner's row, got %s", edition.ID)
	}

	expectationsMet(t, mock)
}

func TestEditionRepository_GetByID_NotFound(t *testing.T) {
	repo, mock, cleanup := newEditionRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM editions").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(editionColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, database.ErrEditionNotFound) {
		t.Errorf("expected ErrEditionNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestEditionRepository_Update_NotFound(t *testing.T) {
	repo, mock, cleanup := newEditionRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE editions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.Edition{ID: "missing"})
	if !errors.Is(err, database.ErrEditionNotFound) {
		t.Errorf("expected ErrEditionNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestEditionRepository_Update(t *testing.T) {
	repo, mock, cleanup := newEditionRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE editions").
		WithArgs(
			"2026-04-20",
			nil,
			nil,
			nil,
			nil,
			sqlmock.AnyArg(), // provenance jsonb
			"ed-1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	date := "2026-04-20"
	edition := &domain.Edition{
		ID:       "ed-1",
		RaceDate: &date,
		Provenance: domain.ProvenanceMap{
			domain.FieldRaceDate: {SourceID: "s1", Priority: 9},
		},
	}
	if err := repo.Update(context.Background(), edition); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	expectationsMet(t, mock)
}
