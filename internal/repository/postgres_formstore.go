package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balmohsen/backend/pkg/models"
)

const formColumns = `id, form_type, title, submitted_by, submitter_email, payload, status, current_approver, stage_statuses, rejection_reason, created_at, updated_at`

// PostgresFormStore is a PostgreSQL implementation of the FormStore interface.
type PostgresFormStore struct {
	db *pgxpool.Pool
}

// NewPostgresFormStore creates a new PostgresFormStore.
func NewPostgresFormStore(db *pgxpool.Pool) *PostgresFormStore {
	return &PostgresFormStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (*models.Form, error) {
	var form models.Form
	err := row.Scan(
		&form.ID, &form.Type, &form.Title, &form.SubmittedBy, &form.SubmitterEmail,
		&form.Payload, &form.Status, &form.CurrentApprover, &form.StageStatuses,
		&form.RejectionReason, &form.CreatedAt, &form.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &form, nil
}

// Create persists a new form in its initial stage.
func (s *PostgresFormStore) Create(ctx context.Context, form *models.Form) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO forms (`+formColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		form.ID, form.Type, form.Title, form.SubmittedBy, form.SubmitterEmail,
		form.Payload, form.Status, form.CurrentApprover, form.StageStatuses,
		form.RejectionReason, form.CreatedAt, form.UpdatedAt,
	)
	return err
}

// Get retrieves a form with its full audit trail.
func (s *PostgresFormStore) Get(ctx context.Context, id string) (*models.Form, error) {
	form, err := scanForm(s.db.QueryRow(ctx, `SELECT `+formColumns+` FROM forms WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	trail, err := s.auditTrail(ctx, id)
	if err != nil {
		return nil, err
	}
	form.AuditTrail = trail
	return form, nil
}

// ListByOwner returns all forms submitted by a principal, newest first.
func (s *PostgresFormStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Form, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+formColumns+` FROM forms WHERE submitted_by = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectForms(rows)
}

// ListPendingForRole returns non-terminal forms waiting on the given role,
// oldest first.
func (s *PostgresFormStore) ListPendingForRole(ctx context.Context, role models.Role) ([]*models.Form, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+formColumns+` FROM forms WHERE current_approver = $1 AND status NOT IN ($2, $3) ORDER BY created_at`,
		role, models.FormStatusApproved, models.FormStatusRejected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectForms(rows)
}

// CompareAndUpdate applies mutate under a row lock, keyed on the expected
// current stage. A terminal record or a stage mismatch yields ErrConflict.
func (s *PostgresFormStore) CompareAndUpdate(ctx context.Context, id string, expectedStage models.Role, mutate Mutator) (*models.Form, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	form, err := scanForm(tx.QueryRow(ctx, `SELECT `+formColumns+` FROM forms WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if form.IsTerminal() || form.CurrentApprover != expectedStage {
		return nil, ErrConflict
	}

	entry, err := mutate(form)
	if err != nil {
		return nil, err
	}
	form.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`UPDATE forms SET status = $1, current_approver = $2, stage_statuses = $3, rejection_reason = $4, updated_at = $5 WHERE id = $6`,
		form.Status, form.CurrentApprover, form.StageStatuses, form.RejectionReason, form.UpdatedAt, form.ID)
	if err != nil {
		return nil, err
	}

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	trail, err := s.auditTrail(ctx, id)
	if err != nil {
		return nil, err
	}
	form.AuditTrail = trail
	return form, nil
}

func (s *PostgresFormStore) auditTrail(ctx context.Context, formID string) ([]models.AuditEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, form_id, role, action, performed_by, performer_name, reason, created_at FROM form_audit WHERE form_id = $1 ORDER BY seq`,
		formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trail []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.FormID, &e.Role, &e.Action, &e.PerformedBy, &e.PerformerName, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		trail = append(trail, e)
	}
	return trail, rows.Err()
}

func insertAuditEntry(ctx context.Context, tx pgx.Tx, entry *models.AuditEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO form_audit (id, form_id, role, action, performed_by, performer_name, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.FormID, entry.Role, entry.Action, entry.PerformedBy, entry.PerformerName, entry.Reason, entry.CreatedAt)
	return err
}

func collectForms(rows pgx.Rows) ([]*models.Form, error) {
	var forms []*models.Form
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, rows.Err()
}
