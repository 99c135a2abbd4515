// Package workflow implements the multi-stage approval state machine. A form
// routes through the stage sequence configured for its type; exactly one role
// may act at any non-terminal instant, every accepted decision appends one
// audit entry, and Approved/Rejected are absorbing.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/balmohsen/backend/internal/notify"
	"github.com/balmohsen/backend/internal/repository"
	"github.com/balmohsen/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Dispatcher receives notifications after a transition commits. Enqueue must
// not block; delivery is fire-and-forget from the engine's perspective.
type Dispatcher interface {
	Enqueue(msg notify.Message)
}

// Engine drives form records through their approval stage sequences.
type Engine struct {
	store         repository.FormStore
	directory     repository.UserStore
	dispatcher    Dispatcher
	routes        Routes
	logger        Logger
	adminOverride bool
	decisions     metric.Int64Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithAdminOverride lets administrators decide in place of the current stage
// role. Off by default.
func WithAdminOverride() Option {
	return func(e *Engine) { e.adminOverride = true }
}

// New creates an Engine. A nil routes falls back to DefaultRoutes.
func New(store repository.FormStore, directory repository.UserStore, dispatcher Dispatcher, routes Routes, logger Logger, opts ...Option) (*Engine, error) {
	if routes == nil {
		routes = DefaultRoutes()
	}
	if err := routes.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stage routes: %w", err)
	}

	e := &Engine{
		store:      store,
		directory:  directory,
		dispatcher: dispatcher,
		routes:     routes,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	meter := otel.Meter("github.com/balmohsen/backend/internal/workflow")
	decisions, err := meter.Int64Counter("approval_decisions_total",
		metric.WithDescription("Accepted approve/reject decisions"))
	if err != nil {
		return nil, err
	}
	e.decisions = decisions

	return e, nil
}

// Submit creates a form record at the first stage of its type's sequence and
// notifies the first stage's role holders.
func (e *Engine) Submit(ctx context.Context, actor models.Principal, formType models.FormType, title string, payload json.RawMessage) (*models.Form, error) {
	seq, ok := e.routes[formType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown form type %q", ErrValidation, formType)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	first := seq.First()
	statuses := make(map[models.Role]models.StageStatus, len(seq))
	for _, stage := range seq {
		statuses[stage] = models.StagePending
	}

	now := time.Now().UTC()
	form := &models.Form{
		ID:              uuid.New().String(),
		Type:            formType,
		Title:           title,
		SubmittedBy:     actor.ID,
		SubmitterEmail:  actor.Email,
		Payload:         payload,
		Status:          models.PendingStatus(first),
		CurrentApprover: first,
		StageStatuses:   statuses,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.store.Create(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}

	e.logger.Info("form submitted", "form_id", form.ID, "type", string(formType), "first_stage", first.String())
	e.notifyStage(ctx, form, first)

	return form, nil
}

// Decide applies one approve or reject decision by the current approver.
// The mutation commits atomically against the expected current stage; of two
// racing calls exactly one succeeds and the loser observes ErrConflict.
func (e *Engine) Decide(ctx context.Context, actor models.Principal, formID string, action models.DecisionAction, reason string) (*models.Form, error) {
	if action != models.ActionApprove && action != models.ActionReject {
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}

	form, err := e.Get(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form.IsTerminal() {
		return nil, fmt.Errorf("%w: form is already %s", ErrConflict, form.Status)
	}

	actingRole := actor.Role
	if e.adminOverride && actor.Role == models.RoleAdministrator && actingRole != form.CurrentApprover {
		actingRole = form.CurrentApprover
	}
	if actingRole != form.CurrentApprover {
		return nil, fmt.Errorf("%w: role %s cannot act while form awaits %s", ErrForbidden, actor.Role, form.CurrentApprover)
	}

	seq, ok := e.routes[form.Type]
	if !ok {
		return nil, fmt.Errorf("no stage sequence configured for form type %q", form.Type)
	}

	updated, err := e.store.CompareAndUpdate(ctx, formID, actingRole, func(f *models.Form) (*models.AuditEntry, error) {
		entry := &models.AuditEntry{
			ID:            uuid.New().String(),
			FormID:        f.ID,
			Role:          actingRole,
			Action:        action,
			PerformedBy:   actor.ID,
			PerformerName: actor.Username,
			Reason:        reason,
			CreatedAt:     time.Now().UTC(),
		}

		switch action {
		case models.ActionApprove:
			f.StageStatuses[actingRole] = models.StageApproved
			if next, ok := seq.Next(actingRole); ok {
				f.CurrentApprover = next
				f.Status = models.PendingStatus(next)
			} else {
				f.Status = models.FormStatusApproved
				f.CurrentApprover = models.RoleCompleted
			}
		case models.ActionReject:
			f.StageStatuses[actingRole] = models.StageRejected
			f.Status = models.FormStatusRejected
			f.CurrentApprover = models.RoleCompleted
			if reason != "" {
				f.RejectionReason = &reason
			}
		}

		return entry, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: %s", ErrNotFound, formID)
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%w: stage changed under this decision", ErrConflict)
		default:
			return nil, fmt.Errorf("failed to update form: %w", err)
		}
	}

	e.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("form_type", string(updated.Type)),
	))
	e.logger.Info("decision recorded",
		"form_id", updated.ID, "action", string(action), "role", actingRole.String(), "status", string(updated.Status))

	if updated.IsTerminal() {
		event := notify.EventApproved
		if updated.Status == models.FormStatusRejected {
			event = notify.EventRejected
		}
		e.dispatcher.Enqueue(notify.Message{
			Recipients: []string{updated.SubmitterEmail},
			Event:      event,
			FormID:     updated.ID,
			FormTitle:  updated.Title,
			FormType:   string(updated.Type),
			Detail:     reason,
		})
	} else {
		e.notifyStage(ctx, updated, updated.CurrentApprover)
	}

	return updated, nil
}

// Get fetches a form with its audit trail.
func (e *Engine) Get(ctx context.Context, formID string) (*models.Form, error) {
	form, err := e.store.Get(ctx, formID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, formID)
		}
		return nil, fmt.Errorf("failed to load form: %w", err)
	}
	return form, nil
}

// ListForOwner returns the forms a principal has submitted.
func (e *Engine) ListForOwner(ctx context.Context, ownerID string) ([]*models.Form, error) {
	return e.store.ListByOwner(ctx, ownerID)
}

// ListPendingForRole returns the non-terminal forms waiting on a role.
func (e *Engine) ListPendingForRole(ctx context.Context, role models.Role) ([]*models.Form, error) {
	return e.store.ListPendingForRole(ctx, role)
}

// notifyStage addresses the holders of a stage role. Resolution failures are
// non-fatal: the transition has already committed, delivery is just skipped.
func (e *Engine) notifyStage(ctx context.Context, form *models.Form, stage models.Role) {
	holders, err := e.directory.ResolveRole(ctx, stage)
	if err != nil {
		e.logger.Error("role resolution failed, notification skipped", "form_id", form.ID, "role", stage.String(), "error", err)
		return
	}
	if len(holders) == 0 {
		e.logger.Warn("no holder for role, notification skipped", "form_id", form.ID, "role", stage.String())
		return
	}

	addrs := make([]string, 0, len(holders))
	for _, u := range holders {
		addrs = append(addrs, u.Email)
	}
	e.dispatcher.Enqueue(notify.Message{
		Recipients: addrs,
		Event:      notify.EventAwaitingDecision,
		FormID:     form.ID,
		FormTitle:  form.Title,
		FormType:   string(form.Type),
	})
}
