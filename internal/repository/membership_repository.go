package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/helpdesk/internal/domain"
)

// MembershipFilter defines query params for membership listing.
type MembershipFilter struct {
	Role         *domain.Role
	Status       *domain.MembershipStatus
	DepartmentID *string
	Limit        int
	Offset       int
}

// MembershipRepository handles persistence for organization memberships.
// Every method except the invite-linking pair is scoped by organization;
// the guarded mutations express the last-admin invariant as a single
// conditional statement.
type MembershipRepository interface {
	Create(ctx context.Context, m *domain.Membership) error
	Update(ctx context.Context, m *domain.Membership) error
	GetByID(ctx context.Context, orgID, id string) (*domain.Membership, error)
	GetByEmail(ctx context.Context, orgID, email string) (*domain.Membership, error)
	GetByUser(ctx context.Context, orgID, userID string) (*domain.Membership, error)
	List(ctx context.Context, orgID string, filter MembershipFilter) ([]domain.Membership, error)
	ListByIDs(ctx context.Context, orgID string, ids []string) ([]domain.Membership, error)
	ListInvitedByEmail(ctx context.Context, email string) ([]domain.Membership, error)
	CountActiveAdmins(ctx context.Context, orgID string) (int, error)
	CountActiveByDepartment(ctx context.Context, orgID, departmentID string) (int, error)
	UpdateRoleGuarded(ctx context.Context, orgID, id string, role domain.Role) (bool, error)
	UpdateDepartment(ctx context.Context, orgID, id string, departmentID *string) error
	DeleteGuarded(ctx context.Context, orgID, id string) (bool, error)
	ActivateInvite(ctx context.Context, id, userID string) error
}

type membershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository instantiates the repository.
func NewMembershipRepository(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepository{pool: pool}
}

const membershipColumns = `id, organization_id, email, user_id, role, status, department_id,
               invited_by, invited_at, joined_at, created_at, updated_at`

func (r *membershipRepository) Create(ctx context.Context, m *domain.Membership) error {
	const query = `
        INSERT INTO memberships (organization_id, email, user_id, role, status, department_id, invited_by, joined_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, invited_at, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		m.OrganizationID,
		m.Email,
		m.UserID,
		m.Role,
		m.Status,
		m.DepartmentID,
		m.InvitedBy,
		m.JoinedAt,
	).Scan(&m.ID, &m.InvitedAt, &m.CreatedAt, &m.UpdatedAt)
}

func (r *membershipRepository) Update(ctx context.Context, m *domain.Membership) error {
	const query = `
        UPDATE memberships
        SET user_id=$1, role=$2, status=$3, department_id=$4, joined_at=$5, updated_at=NOW()
        WHERE id=$6 AND organization_id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		m.UserID,
		m.Role,
		m.Status,
		m.DepartmentID,
		m.JoinedAt,
		m.ID,
		m.OrganizationID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *membershipRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE organization_id=$1 AND id=$2`
	return r.fetchSingle(ctx, query, orgID, id)
}

func (r *membershipRepository) GetByEmail(ctx context.Context, orgID, email string) (*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE organization_id=$1 AND LOWER(email)=LOWER($2)`
	return r.fetchSingle(ctx, query, orgID, email)
}

func (r *membershipRepository) GetByUser(ctx context.Context, orgID, userID string) (*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE organization_id=$1 AND user_id=$2`
	return r.fetchSingle(ctx, query, orgID, userID)
}

func (r *membershipRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Membership, error) {
	var m domain.Membership
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&m.ID,
		&m.OrganizationID,
		&m.Email,
		&m.UserID,
		&m.Role,
		&m.Status,
		&m.DepartmentID,
		&m.InvitedBy,
		&m.InvitedAt,
		&m.JoinedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) List(ctx context.Context, orgID string, filter MembershipFilter) ([]domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships`
	args := []any{orgID}
	clauses := []string{"organization_id=$1"}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	query += " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY created_at ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemberships(rows)
}

func (r *membershipRepository) ListByIDs(ctx context.Context, orgID string, ids []string) ([]domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE organization_id=$1 AND id = ANY($2)`
	rows, err := r.pool.Query(ctx, query, orgID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemberships(rows)
}

func (r *membershipRepository) ListInvitedByEmail(ctx context.Context, email string) ([]domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE LOWER(email)=LOWER($1) AND status='invited'`
	rows, err := r.pool.Query(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemberships(rows)
}

func (r *membershipRepository) CountActiveAdmins(ctx context.Context, orgID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM memberships
        WHERE organization_id=$1 AND role='admin' AND status='active'`
	var count int
	if err := r.pool.QueryRow(ctx, query, orgID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *membershipRepository) CountActiveByDepartment(ctx context.Context, orgID, departmentID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM memberships
        WHERE organization_id=$1 AND department_id=$2 AND status='active'`
	var count int
	if err := r.pool.QueryRow(ctx, query, orgID, departmentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateRoleGuarded changes the role only while at least one other active
// admin remains. Returns false when the guard (or the row) did not match.
func (r *membershipRepository) UpdateRoleGuarded(ctx context.Context, orgID, id string, role domain.Role) (bool, error) {
	const query = `
        UPDATE memberships SET role=$3, updated_at=NOW()
        WHERE organization_id=$1 AND id=$2
          AND (role <> 'admin' OR status <> 'active' OR $3 = 'admin'
               OR (SELECT COUNT(*) FROM memberships m2
                   WHERE m2.organization_id=$1 AND m2.role='admin' AND m2.status='active') > 1)`
	cmd, err := r.pool.Exec(ctx, query, orgID, id, role)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *membershipRepository) UpdateDepartment(ctx context.Context, orgID, id string, departmentID *string) error {
	const query = `
        UPDATE memberships SET department_id=$3, updated_at=NOW()
        WHERE organization_id=$1 AND id=$2`
	cmd, err := r.pool.Exec(ctx, query, orgID, id, departmentID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteGuarded hard-deletes the membership only while at least one other
// active admin remains. Returns false when the guard (or the row) did not
// match.
func (r *membershipRepository) DeleteGuarded(ctx context.Context, orgID, id string) (bool, error) {
	const query = `
        DELETE FROM memberships
        WHERE organization_id=$1 AND id=$2
          AND (role <> 'admin' OR status <> 'active'
               OR (SELECT COUNT(*) FROM memberships m2
                   WHERE m2.organization_id=$1 AND m2.role='admin' AND m2.status='active') > 1)`
	cmd, err := r.pool.Exec(ctx, query, orgID, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *membershipRepository) ActivateInvite(ctx context.Context, id, userID string) error {
	const query = `
        UPDATE memberships
        SET user_id=$2, status='active', joined_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND status='invited'`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanMemberships(rows pgx.Rows) ([]domain.Membership, error) {
	var result []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(
			&m.ID,
			&m.OrganizationID,
			&m.Email,
			&m.UserID,
			&m.Role,
			&m.Status,
			&m.DepartmentID,
			&m.InvitedBy,
			&m.InvitedAt,
			&m.JoinedAt,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
