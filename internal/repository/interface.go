package repository

import (
	"context"
	"errors"

	"github.com/balmohsen/backend/pkg/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned by CompareAndUpdate when the record's stage no
	// longer matches the expected one, including the terminal case.
	ErrConflict = errors.New("record stage has changed")
)

// Mutator is applied to a freshly loaded form inside the store's update
// transaction. It returns the audit entry to append alongside the mutation.
type Mutator func(form *models.Form) (*models.AuditEntry, error)

// FormStore is durable storage for form records and their audit trails.
type FormStore interface {
	// Create persists a new form in its initial stage.
	Create(ctx context.Context, form *models.Form) error
	// Get retrieves a form with its full audit trail.
	Get(ctx context.Context, id string) (*models.Form, error)
	// ListByOwner returns all forms submitted by a principal.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Form, error)
	// ListPendingForRole returns non-terminal forms waiting on the given role.
	ListPendingForRole(ctx context.Context, role models.Role) ([]*models.Form, error)
	// CompareAndUpdate atomically applies mutate to the form if and only if
	// its CurrentApprover still equals expectedStage. Exactly one of two
	// racing calls against the same record succeeds; the loser gets
	// ErrConflict. The audit entry returned by mutate commits in the same
	// transaction as the mutation.
	CompareAndUpdate(ctx context.Context, id string, expectedStage models.Role, mutate Mutator) (*models.Form, error)
}

// UserStore is the user directory: principals and the roles they hold.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
	// ResolveRole returns the current holders of a role. An empty slice with
	// no error means nobody holds the role right now.
	ResolveRole(ctx context.Context, role models.Role) ([]*models.User, error)
}
