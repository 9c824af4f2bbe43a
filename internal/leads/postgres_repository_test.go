package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func strPtr(s string) *string { return &s }

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, newPostgresRepositoryWithQuerier(mock)
}

var leadRowColumns = []string{"id", "email", "name", "city", "role", "phone", "message", "source", "created_at", "updated_at"}

func TestPostgresRepository_FindByEmail(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM leads WHERE lower").
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows(leadRowColumns).AddRow(
			"2f1d6f0e-7a57-4d55-9d1c-6f3f8e0b8a11", "ana@example.com",
			strPtr("Ana"), strPtr("Cali"), (*string)(nil), strPtr("3001234567"), (*string)(nil), strPtr("landing"),
			now, now,
		))

	lead, err := repo.FindByEmail(context.Background(), " Ana@Example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.Name != "Ana" || lead.City != "Cali" || lead.Role != "" || lead.Phone != "3001234567" || lead.Source != "landing" {
		t.Fatalf("unexpected lead %+v", lead)
	}

	mock.ExpectQuery("FROM leads WHERE lower").
		WithArgs("ghost@example.com").
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.FindByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_FindByEmailError(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("FROM leads WHERE lower").
		WithArgs("a@b.co").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FindByEmail(context.Background(), "a@b.co")
	if err == nil || errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}

func TestPostgresRepository_Insert(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), "ana@example.com", "Ana", pgxmock.AnyArg(), pgxmock.AnyArg(), "3001234567", pgxmock.AnyArg(), "landing").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	lead, err := repo.Insert(context.Background(), ContactRecord{Email: "ana@example.com", Name: "Ana", Phone: "3001234567", Source: "landing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.ID == "" || !lead.CreatedAt.Equal(now) {
		t.Fatalf("unexpected lead %+v", lead)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_InsertUniqueViolation(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "leads_email_lower_key"})

	_, err := repo.Insert(context.Background(), ContactRecord{Email: "dup@example.com"})
	if !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}
}

func TestPostgresRepository_Update(t *testing.T) {
	mock, repo := newMockRepo(t)

	stamp := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE leads SET name = \\$2, phone = \\$3, updated_at = now\\(\\) WHERE id = \\$1 RETURNING updated_at").
		WithArgs("lead-1", "Ana", "3001234567").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(stamp))

	updatedAt, err := repo.Update(context.Background(), "lead-1", Patch{Name: strPtr("Ana"), Phone: strPtr("3001234567")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updatedAt.Equal(stamp) {
		t.Fatalf("expected updated_at %s, got %s", stamp, updatedAt)
	}

	mock.ExpectQuery("UPDATE leads SET").
		WithArgs("missing", "x").
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Update(context.Background(), "missing", Patch{City: strPtr("x")}); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}

	if _, err := repo.Update(context.Background(), "lead-1", Patch{}); err != nil {
		t.Fatalf("expected empty patch to be a no-op, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_List(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM leads ORDER BY created_at DESC").
		WithArgs(2, 0).
		WillReturnRows(pgxmock.NewRows(leadRowColumns).
			AddRow("id-2", "b@x.co", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), strPtr("landing"), now, now).
			AddRow("id-1", "a@x.co", strPtr("A"), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), strPtr("landing"), now, now))

	leads, err := repo.List(context.Background(), ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 2 || leads[0].ID != "id-2" || leads[1].Name != "A" {
		t.Fatalf("unexpected leads %+v", leads)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_GetByIDRejectsNonUUID(t *testing.T) {
	_, repo := newMockRepo(t)
	if _, err := repo.GetByID(context.Background(), "not-a-uuid"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestReconcileAgainstPostgresRecoversFromRace(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM leads WHERE lower").WithArgs("race@x.co").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery("FROM leads WHERE lower").WithArgs("race@x.co").
		WillReturnRows(pgxmock.NewRows(leadRowColumns).AddRow(
			"id-1", "race@x.co", strPtr("Other"), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), strPtr("landing"), now, now))
	mock.ExpectExec("UPDATE leads SET name").WithArgs("id-1", "Mine").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := NewReconciler(repo).Reconcile(context.Background(), ContactRecord{Email: "race@x.co", Name: "Mine", Source: "landing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeUpdated || res.Lead.Name != "Mine" {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
