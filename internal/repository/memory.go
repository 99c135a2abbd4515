package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/balmohsen/backend/pkg/models"
)

// MemoryFormStore is an in-memory FormStore with the same compare-and-update
// semantics as the Postgres implementation. Used in tests and local tooling.
type MemoryFormStore struct {
	mu    sync.Mutex
	forms map[string]*models.Form
	audit map[string][]models.AuditEntry
}

// NewMemoryFormStore creates an empty MemoryFormStore.
func NewMemoryFormStore() *MemoryFormStore {
	return &MemoryFormStore{
		forms: make(map[string]*models.Form),
		audit: make(map[string][]models.AuditEntry),
	}
}

func cloneForm(form *models.Form) *models.Form {
	clone := *form
	clone.StageStatuses = make(map[models.Role]models.StageStatus, len(form.StageStatuses))
	for role, status := range form.StageStatuses {
		clone.StageStatuses[role] = status
	}
	if form.RejectionReason != nil {
		reason := *form.RejectionReason
		clone.RejectionReason = &reason
	}
	clone.AuditTrail = nil
	return &clone
}

// Create persists a new form in its initial stage.
func (s *MemoryFormStore) Create(ctx context.Context, form *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.ID] = cloneForm(form)
	return nil
}

// Get retrieves a form with its full audit trail.
func (s *MemoryFormStore) Get(ctx context.Context, id string) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneForm(form)
	out.AuditTrail = append([]models.AuditEntry(nil), s.audit[id]...)
	return out, nil
}

// ListByOwner returns all forms submitted by a principal, newest first.
func (s *MemoryFormStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var forms []*models.Form
	for _, form := range s.forms {
		if form.SubmittedBy == ownerID {
			forms = append(forms, cloneForm(form))
		}
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].CreatedAt.After(forms[j].CreatedAt) })
	return forms, nil
}

// ListPendingForRole returns non-terminal forms waiting on the given role,
// oldest first.
func (s *MemoryFormStore) ListPendingForRole(ctx context.Context, role models.Role) ([]*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var forms []*models.Form
	for _, form := range s.forms {
		if form.CurrentApprover == role && !form.IsTerminal() {
			forms = append(forms, cloneForm(form))
		}
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].CreatedAt.Before(forms[j].CreatedAt) })
	return forms, nil
}

// CompareAndUpdate applies mutate under the store lock, keyed on the expected
// current stage.
func (s *MemoryFormStore) CompareAndUpdate(ctx context.Context, id string, expectedStage models.Role, mutate Mutator) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[id]
	if !ok {
		return nil, ErrNotFound
	}
	if form.IsTerminal() || form.CurrentApprover != expectedStage {
		return nil, ErrConflict
	}

	next := cloneForm(form)
	entry, err := mutate(next)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	s.forms[id] = next
	s.audit[id] = append(s.audit[id], *entry)

	out := cloneForm(next)
	out.AuditTrail = append([]models.AuditEntry(nil), s.audit[id]...)
	return out, nil
}

// MemoryUserStore is an in-memory UserStore.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

// NewMemoryUserStore creates an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*models.User)}
}

// Create persists a new user.
func (s *MemoryUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

// GetByID retrieves a user by id.
func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

// GetByEmail retrieves a user by email.
func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

// List returns all users ordered by username.
func (s *MemoryUserStore) List(ctx context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []*models.User
	for _, user := range s.users {
		clone := *user
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// UpdateRole reassigns a user's role.
func (s *MemoryUserStore) UpdateRole(ctx context.Context, id string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Role = role
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// ResolveRole returns the current holders of a role.
func (s *MemoryUserStore) ResolveRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []*models.User
	for _, user := range s.users {
		if user.Role == role {
			clone := *user
			users = append(users, &clone)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}
