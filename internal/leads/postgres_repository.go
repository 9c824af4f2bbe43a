package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// pgUniqueViolation is the SQLSTATE Postgres reports for a duplicate key.
const pgUniqueViolation = "23505"

const leadColumns = `id, email, name, city, role, phone, message, source, created_at, updated_at`

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database. The leads table
// carries a unique index on lower(email).
type PostgresRepository struct {
	pool   pgQuerier
	tracer trace.Tracer
}

var (
	_ Store  = (*PostgresRepository)(nil)
	_ Lister = (*PostgresRepository)(nil)
)

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return newPostgresRepositoryWithQuerier(pool)
}

func newPostgresRepositoryWithQuerier(q pgQuerier) *PostgresRepository {
	if q == nil {
		panic("leads: querier required")
	}
	return &PostgresRepository{pool: q, tracer: otel.Tracer("leadcapture.internal.leads.postgres")}
}

func (r *PostgresRepository) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "leads.postgres."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql")),
	)
}

// FindByEmail looks a lead up by lowercased email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*StoredLead, error) {
	ctx, span := r.startSpan(ctx, "find_by_email")
	defer span.End()

	query := `SELECT ` + leadColumns + ` FROM leads WHERE lower(email) = $1`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("leads: select by email failed: %w", err)
	}
	return lead, nil
}

// Insert adds a new row. A duplicate email surfaces as ErrUniqueViolation.
func (r *PostgresRepository) Insert(ctx context.Context, rec ContactRecord) (*StoredLead, error) {
	ctx, span := r.startSpan(ctx, "insert")
	defer span.End()

	id := uuid.New()
	email := NormalizeEmail(rec.Email)
	query := `
		INSERT INTO leads (id, email, name, city, role, phone, message, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		email,
		nullIfEmpty(rec.Name),
		nullIfEmpty(rec.City),
		nullIfEmpty(rec.Role),
		nullIfEmpty(rec.Phone),
		nullIfEmpty(rec.Message),
		nullIfEmpty(rec.Source),
	).Scan(&createdAt, &updatedAt); err != nil {
		if isUniqueViolation(err) {
			span.SetAttributes(attribute.Bool("leads.unique_violation", true))
			return nil, ErrUniqueViolation
		}
		span.RecordError(err)
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return &StoredLead{
		ID:        id.String(),
		Email:     email,
		Name:      rec.Name,
		City:      rec.City,
		Role:      rec.Role,
		Phone:     rec.Phone,
		Message:   rec.Message,
		Source:    rec.Source,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// Update writes only the patched columns and returns the row's new updated_at.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch Patch) (time.Time, error) {
	cols, vals := patch.Columns()
	if len(cols) == 0 {
		return time.Time{}, nil
	}
	ctx, span := r.startSpan(ctx, "update")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("leads.columns", cols))

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	args = append(args, id)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
		args = append(args, vals[i])
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE leads SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING updated_at`
	var updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrLeadNotFound
		}
		span.RecordError(err)
		return time.Time{}, fmt.Errorf("leads: update failed: %w", err)
	}
	return updatedAt, nil
}

// GetByID fetches a single lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*StoredLead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrLeadNotFound
	}
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// List returns leads newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*StoredLead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []*StoredLead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: list scan failed: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list iterate failed: %w", err)
	}
	return out, nil
}

func scanLead(row pgx.Row) (*StoredLead, error) {
	var (
		lead                                     StoredLead
		name, city, role, phone, message, source *string
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Email,
		&name,
		&city,
		&role,
		&phone,
		&message,
		&source,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.Name = derefString(name)
	lead.City = derefString(city)
	lead.Role = derefString(role)
	lead.Phone = derefString(phone)
	lead.Message = derefString(message)
	lead.Source = derefString(source)
	return &lead, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
