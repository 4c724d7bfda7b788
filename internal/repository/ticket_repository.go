package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
)

// TicketFilter captures listing parameters. CreatedBy scopes the result to a
// single requester (role "user"); Search matches title and description as a
// case-insensitive substring.
type TicketFilter struct {
	CreatedBy *string
	Search    *string
	Limit     int
	Offset    int
}

// TicketRepository encapsulates ticket persistence. UpdateVersioned is the
// optimistic-lock write: one atomic conditional update keyed on id+version,
// never a read-compare-write sequence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListByIDs(ctx context.Context, ids []string, createdBy *string) ([]domain.Ticket, error)
	Count(ctx context.Context, createdBy *string) (int, error)
	UpdateVersioned(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository returns a Postgres-backed implementation.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, description, priority, status, sla_deadline, created_by, assigned_to, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.SLADeadline,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.Version,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, title, description, priority, status, sla_deadline, created_by, assigned_to, version, created_at, updated_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.SLADeadline,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, title, description, priority, status, sla_deadline, created_by, assigned_to, version, created_at, updated_at
             FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByIDs(ctx context.Context, ids []string, createdBy *string) ([]domain.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, title, description, priority, status, sla_deadline, created_by, assigned_to, version, created_at, updated_at
              FROM tickets WHERE id = ANY($1)`
	args := []any{ids}
	if createdBy != nil {
		args = append(args, *createdBy)
		query += fmt.Sprintf(" AND created_by=$%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Count(ctx context.Context, createdBy *string) (int, error) {
	var count int
	if createdBy != nil {
		err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE created_by=$1`, *createdBy).Scan(&count)
		return count, err
	}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&count)
	return count, err
}

// UpdateVersioned performs the compare-and-swap as a single conditional
// UPDATE. Two concurrent callers presenting the same expected version race on
// the WHERE clause; exactly one row wins and the loser affects zero rows.
func (r *ticketRepository) UpdateVersioned(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, priority=$3, status=$4, sla_deadline=$5, assigned_to=$6,
            version=version+1, updated_at=NOW()
        WHERE id=$7 AND version=$8
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.SLADeadline,
		ticket.AssignedTo,
		ticket.ID,
		expectedVersion,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	// Zero rows: either the ticket is gone or the version moved on.
	var exists bool
	if checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); checkErr != nil {
		return checkErr
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Priority,
			&ticket.Status,
			&ticket.SLADeadline,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.Version,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
