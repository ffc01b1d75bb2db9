package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opsdesk/helpdesk/internal/domain"
	"github.com/opsdesk/helpdesk/internal/events"
	"github.com/opsdesk/helpdesk/internal/repository"
)

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

// fakeTicketRepo is an in-memory TicketRepository with a unique index on
// tracking numbers. forcedCollisions makes the next N creates fail the way
// a concurrent insert would.
type fakeTicketRepo struct {
	mu               sync.Mutex
	tickets          map[string]*domain.Ticket
	trackingTaken    map[int64]bool
	forcedCollisions int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:       make(map[string]*domain.Ticket),
		trackingTaken: make(map[int64]bool),
	}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forcedCollisions > 0 {
		f.forcedCollisions--
		return uniqueViolation()
	}
	if f.trackingTaken[ticket.TrackingNumber] {
		return uniqueViolation()
	}
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now().UTC()
	ticket.UpdatedAt = ticket.CreatedAt
	f.trackingTaken[ticket.TrackingNumber] = true
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.tickets[ticket.ID]
	if !ok || existing.OrganizationID != ticket.OrganizationID {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now().UTC()
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, orgID, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok || t.OrganizationID != orgID {
		return nil, pgx.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (f *fakeTicketRepo) GetByTrackingNumber(_ context.Context, orgID string, number int64) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.OrganizationID == orgID && t.TrackingNumber == number {
			clone := *t
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) MaxTrackingNumber(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max int64
	for n := range f.trackingTaken {
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (f *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.DepartmentID != nil && (t.DepartmentID == nil || *t.DepartmentID != *filter.DepartmentID) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTicketRepo) CountByDepartment(_ context.Context, orgID, departmentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, t := range f.tickets {
		if t.OrganizationID == orgID && t.DepartmentID != nil && *t.DepartmentID == departmentID {
			count++
		}
	}
	return count, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.TicketMessage
}

func newFakeMessageRepo() *fakeMessageRepo { return &fakeMessageRepo{} }

func (f *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageRepo) ListByTicket(_ context.Context, orgID, ticketID string) ([]domain.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketMessage
	for _, m := range f.messages {
		if m.OrganizationID == orgID && m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeDepartmentRepo struct {
	mu          sync.Mutex
	departments map[string]*domain.Department
}

func newFakeDepartmentRepo() *fakeDepartmentRepo {
	return &fakeDepartmentRepo{departments: make(map[string]*domain.Department)}
}

func (f *fakeDepartmentRepo) seed(orgID, id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.departments[id] = &domain.Department{ID: id, OrganizationID: orgID, Name: name}
}

func (f *fakeDepartmentRepo) Create(_ context.Context, dept *domain.Department) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.departments {
		if d.OrganizationID == dept.OrganizationID && strings.EqualFold(d.Name, dept.Name) {
			return uniqueViolation()
		}
	}
	dept.ID = uuid.NewString()
	dept.CreatedAt = time.Now().UTC()
	dept.UpdatedAt = dept.CreatedAt
	clone := *dept
	f.departments[dept.ID] = &clone
	return nil
}

func (f *fakeDepartmentRepo) Update(_ context.Context, dept *domain.Department) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.departments[dept.ID]
	if !ok || existing.OrganizationID != dept.OrganizationID {
		return pgx.ErrNoRows
	}
	for _, d := range f.departments {
		if d.ID != dept.ID && d.OrganizationID == dept.OrganizationID && strings.EqualFold(d.Name, dept.Name) {
			return uniqueViolation()
		}
	}
	clone := *dept
	f.departments[dept.ID] = &clone
	return nil
}

func (f *fakeDepartmentRepo) Delete(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.departments[id]
	if !ok || d.OrganizationID != orgID {
		return pgx.ErrNoRows
	}
	delete(f.departments, id)
	return nil
}

func (f *fakeDepartmentRepo) GetByID(_ context.Context, orgID, id string) (*domain.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.departments[id]
	if !ok || d.OrganizationID != orgID {
		return nil, pgx.ErrNoRows
	}
	clone := *d
	return &clone, nil
}

func (f *fakeDepartmentRepo) ListByOrganization(_ context.Context, orgID string) ([]domain.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Department
	for _, d := range f.departments {
		if d.OrganizationID == orgID {
			out = append(out, *d)
		}
	}
	return out, nil
}

// fakeMembershipRepo mirrors the guarded SQL semantics in memory so the
// last-admin tests exercise the same decision the database makes.
type fakeMembershipRepo struct {
	mu      sync.Mutex
	members map[string]*domain.Membership
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{members: make(map[string]*domain.Membership)}
}

func (f *fakeMembershipRepo) seed(m domain.Membership) *domain.Membership {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	stored := m
	f.members[m.ID] = &stored
	snapshot := m
	return &snapshot
}

func (f *fakeMembershipRepo) Create(_ context.Context, m *domain.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.members {
		if existing.OrganizationID == m.OrganizationID && strings.EqualFold(existing.Email, m.Email) {
			return uniqueViolation()
		}
	}
	m.ID = uuid.NewString()
	m.InvitedAt = time.Now().UTC()
	m.CreatedAt = m.InvitedAt
	m.UpdatedAt = m.InvitedAt
	clone := *m
	f.members[m.ID] = &clone
	return nil
}

func (f *fakeMembershipRepo) Update(_ context.Context, m *domain.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.members[m.ID]
	if !ok || existing.OrganizationID != m.OrganizationID {
		return pgx.ErrNoRows
	}
	clone := *m
	f.members[m.ID] = &clone
	return nil
}

func (f *fakeMembershipRepo) GetByID(_ context.Context, orgID, id string) (*domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok || m.OrganizationID != orgID {
		return nil, pgx.ErrNoRows
	}
	clone := *m
	return &clone, nil
}

func (f *fakeMembershipRepo) GetByEmail(_ context.Context, orgID, email string) (*domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.OrganizationID == orgID && strings.EqualFold(m.Email, email) {
			clone := *m
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeMembershipRepo) GetByUser(_ context.Context, orgID, userID string) (*domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.OrganizationID == orgID && m.UserID != nil && *m.UserID == userID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeMembershipRepo) List(_ context.Context, orgID string, _ repository.MembershipFilter) ([]domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Membership
	for _, m := range f.members {
		if m.OrganizationID == orgID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) ListByIDs(_ context.Context, orgID string, ids []string) ([]domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Membership
	for _, id := range ids {
		if m, ok := f.members[id]; ok && m.OrganizationID == orgID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) ListInvitedByEmail(_ context.Context, email string) ([]domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Membership
	for _, m := range f.members {
		if m.Status == domain.MembershipStatusInvited && strings.EqualFold(m.Email, email) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMembershipRepo) CountActiveAdmins(_ context.Context, orgID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countActiveAdminsLocked(orgID), nil
}

func (f *fakeMembershipRepo) countActiveAdminsLocked(orgID string) int {
	count := 0
	for _, m := range f.members {
		if m.OrganizationID == orgID && m.Role == domain.RoleAdmin && m.Status == domain.MembershipStatusActive {
			count++
		}
	}
	return count
}

func (f *fakeMembershipRepo) CountActiveByDepartment(_ context.Context, orgID, departmentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.members {
		if m.OrganizationID == orgID && m.Status == domain.MembershipStatusActive &&
			m.DepartmentID != nil && *m.DepartmentID == departmentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeMembershipRepo) UpdateRoleGuarded(_ context.Context, orgID, id string, role domain.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok || m.OrganizationID != orgID {
		return false, pgx.ErrNoRows
	}
	demotingActiveAdmin := m.Role == domain.RoleAdmin && m.Status == domain.MembershipStatusActive && role != domain.RoleAdmin
	if demotingActiveAdmin && f.countActiveAdminsLocked(orgID) <= 1 {
		return false, nil
	}
	m.Role = role
	return true, nil
}

func (f *fakeMembershipRepo) UpdateDepartment(_ context.Context, orgID, id string, departmentID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok || m.OrganizationID != orgID {
		return pgx.ErrNoRows
	}
	m.DepartmentID = departmentID
	return nil
}

func (f *fakeMembershipRepo) DeleteGuarded(_ context.Context, orgID, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok || m.OrganizationID != orgID {
		return false, pgx.ErrNoRows
	}
	if m.Role == domain.RoleAdmin && m.Status == domain.MembershipStatusActive && f.countActiveAdminsLocked(orgID) <= 1 {
		return false, nil
	}
	delete(f.members, id)
	return true, nil
}

func (f *fakeMembershipRepo) ActivateInvite(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok || m.Status != domain.MembershipStatusInvited {
		return pgx.ErrNoRows
	}
	now := time.Now().UTC()
	m.UserID = &userID
	m.Status = domain.MembershipStatusActive
	m.JoinedAt = &now
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) seed(u domain.User) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	clone := u
	f.users[u.ID] = &clone
	return &clone
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return uniqueViolation()
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func newFakeHistoryRepo() *fakeHistoryRepo { return &fakeHistoryRepo{} }

func (f *fakeHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeHistoryRepo) ListByTicket(_ context.Context, orgID, ticketID string, _, _ int) ([]domain.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range f.entries {
		if e.OrganizationID == orgID && e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

// captureDispatcher records published events for assertions.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) published(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
