package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/helpdesk/internal/domain"
)

// TicketFilter captures ticket search parameters. OrganizationID is
// mandatory: no ticket query runs unscoped.
type TicketFilter struct {
	OrganizationID string
	CreatedBy      *string
	DepartmentID   *string
	AssigneeID     *string
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	SearchTerm     *string
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, orgID, id string) (*domain.Ticket, error)
	GetByTrackingNumber(ctx context.Context, orgID string, number int64) (*domain.Ticket, error)
	MaxTrackingNumber(ctx context.Context) (int64, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByDepartment(ctx context.Context, orgID, departmentID string) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, tracking_number, organization_id, title, description, category,
               department_id, priority, status, assignee_ids, created_by, tags,
               due_date, resolved_at, closed_at, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (tracking_number, organization_id, title, description, category,
                             department_id, priority, status, assignee_ids, created_by, tags, due_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TrackingNumber,
		ticket.OrganizationID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.DepartmentID,
		ticket.Priority,
		ticket.Status,
		ticket.AssigneeIDs,
		ticket.CreatedBy,
		ticket.Tags,
		ticket.DueDate,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update never touches organization_id or tracking_number: both are
// immutable after creation.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, category=$3, department_id=$4,
            priority=$5, status=$6, assignee_ids=$7, tags=$8, due_date=$9,
            resolved_at=$10, closed_at=$11, updated_at=NOW()
        WHERE id=$12 AND organization_id=$13`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.DepartmentID,
		ticket.Priority,
		ticket.Status,
		ticket.AssigneeIDs,
		ticket.Tags,
		ticket.DueDate,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
		ticket.OrganizationID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE organization_id=$1 AND id=$2`
	return r.fetchSingle(ctx, query, orgID, id)
}

func (r *ticketRepository) GetByTrackingNumber(ctx context.Context, orgID string, number int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE organization_id=$1 AND tracking_number=$2`
	return r.fetchSingle(ctx, query, orgID, number)
}

// MaxTrackingNumber returns the current global maximum, 0 when no tickets
// exist. The caller increments and relies on the unique index to catch
// concurrent assignment.
func (r *ticketRepository) MaxTrackingNumber(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(MAX(tracking_number), 0) FROM tickets`
	var max int64
	if err := r.pool.QueryRow(ctx, query).Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.TrackingNumber,
		&ticket.OrganizationID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.DepartmentID,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssigneeIDs,
		&ticket.CreatedBy,
		&ticket.Tags,
		&ticket.DueDate,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	args := []any{filter.OrganizationID}
	clauses := []string{"organization_id=$1"}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(assignee_ids)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByDepartment(ctx context.Context, orgID, departmentID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE organization_id=$1 AND department_id=$2`
	var count int
	if err := r.pool.QueryRow(ctx, query, orgID, departmentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TrackingNumber,
			&ticket.OrganizationID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.DepartmentID,
			&ticket.Priority,
			&ticket.Status,
			&ticket.AssigneeIDs,
			&ticket.CreatedBy,
			&ticket.Tags,
			&ticket.DueDate,
			&ticket.ResolvedAt,
			&ticket.ClosedAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
