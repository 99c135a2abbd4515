package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balmohsen/backend/internal/notify"
	"github.com/balmohsen/backend/internal/repository"
	"github.com/balmohsen/backend/pkg/models"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Warn(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// capturingDispatcher records every enqueued message.
type capturingDispatcher struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (d *capturingDispatcher) Enqueue(msg notify.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
}

func (d *capturingDispatcher) byEvent(kind notify.EventKind) []notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.Message
	for _, msg := range d.messages {
		if msg.Event == kind {
			out = append(out, msg)
		}
	}
	return out
}

func principal(role models.Role) models.Principal {
	return models.Principal{
		ID:       "uid-" + string(role),
		Username: string(role),
		Email:    string(role) + "@localhost",
		Role:     role,
	}
}

func seedDirectory(t *testing.T) *repository.MemoryUserStore {
	t.Helper()
	users := repository.NewMemoryUserStore()
	for _, role := range []models.Role{models.RoleEmployee, models.RoleFinance, models.RoleManager, models.RoleVP, models.RoleAdministrator} {
		p := principal(role)
		err := users.Create(context.Background(), &models.User{
			ID:        p.ID,
			Username:  p.Username,
			Email:     p.Email,
			Role:      role,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	return users
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *repository.MemoryFormStore, *capturingDispatcher) {
	t.Helper()
	store := repository.NewMemoryFormStore()
	dispatcher := &capturingDispatcher{}
	engine, err := New(store, seedDirectory(t), dispatcher, nil, &NoOpLogger{}, opts...)
	require.NoError(t, err)
	return engine, store, dispatcher
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	engine, _, dispatcher := newTestEngine(t)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", []byte(`{"contract":"C-1"}`))
	require.NoError(t, err)

	assert.Equal(t, models.PendingStatus(models.RoleFinance), form.Status)
	assert.Equal(t, models.RoleFinance, form.CurrentApprover)
	assert.Equal(t, "uid-employee", form.SubmittedBy)
	assert.Len(t, form.StageStatuses, 3)
	for _, status := range form.StageStatuses {
		assert.Equal(t, models.StagePending, status)
	}
	assert.Empty(t, form.AuditTrail)

	awaiting := dispatcher.byEvent(notify.EventAwaitingDecision)
	require.Len(t, awaiting, 1)
	assert.Equal(t, []string{"finance@localhost"}, awaiting[0].Recipients)
	assert.Equal(t, form.ID, awaiting[0].FormID)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	_, err := engine.Submit(ctx, principal(models.RoleEmployee), "travel", "title", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFullApprovalChain(t *testing.T) {
	ctx := context.Background()
	engine, _, dispatcher := newTestEngine(t)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", nil)
	require.NoError(t, err)

	form, err = engine.Decide(ctx, principal(models.RoleFinance), form.ID, models.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatus(models.RoleManager), form.Status)
	assert.Equal(t, models.RoleManager, form.CurrentApprover)
	assert.Equal(t, models.StageApproved, form.StageStatuses[models.RoleFinance])

	form, err = engine.Decide(ctx, principal(models.RoleManager), form.ID, models.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatus(models.RoleVP), form.Status)

	form, err = engine.Decide(ctx, principal(models.RoleVP), form.ID, models.ActionApprove, "")
	require.NoError(t, err)

	assert.Equal(t, models.FormStatusApproved, form.Status)
	assert.Equal(t, models.RoleCompleted, form.CurrentApprover)
	for _, status := range form.StageStatuses {
		assert.Equal(t, models.StageApproved, status)
	}

	require.Len(t, form.AuditTrail, 3)
	assert.Equal(t, models.RoleFinance, form.AuditTrail[0].Role)
	assert.Equal(t, models.RoleManager, form.AuditTrail[1].Role)
	assert.Equal(t, models.RoleVP, form.AuditTrail[2].Role)

	approved := dispatcher.byEvent(notify.EventApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, []string{"employee@localhost"}, approved[0].Recipients)
}

func TestCertificationChain(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCertification, "ISO renewal", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, form.CurrentApprover)

	for _, role := range []models.Role{models.RoleManager, models.RoleFinance, models.RoleVP, models.RoleAdministrator} {
		form, err = engine.Decide(ctx, principal(role), form.ID, models.ActionApprove, "")
		require.NoError(t, err)
	}

	assert.Equal(t, models.FormStatusApproved, form.Status)
	assert.Equal(t, models.RoleCompleted, form.CurrentApprover)
	assert.Len(t, form.AuditTrail, 4)
}

func TestRejectIsImmediatelyTerminal(t *testing.T) {
	ctx := context.Background()
	engine, _, dispatcher := newTestEngine(t)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", nil)
	require.NoError(t, err)

	form, err = engine.Decide(ctx, principal(models.RoleFinance), form.ID, models.ActionApprove, "")
	require.NoError(t, err)

	form, err = engine.Decide(ctx, principal(models.RoleManager), form.ID, models.ActionReject, "missing docs")
	require.NoError(t, err)

	assert.Equal(t, models.FormStatusRejected, form.Status)
	assert.Equal(t, models.RoleCompleted, form.CurrentApprover)
	require.NotNil(t, form.RejectionReason)
	assert.Equal(t, "missing docs", *form.RejectionReason)
	assert.Equal(t, models.StageRejected, form.StageStatuses[models.RoleManager])
	assert.Equal(t, models.StagePending, form.StageStatuses[models.RoleVP])

	require.Len(t, form.AuditTrail, 2)
	assert.Equal(t, models.ActionReject, form.AuditTrail[1].Action)
	assert.Equal(t, "missing docs", form.AuditTrail[1].Reason)

	rejected := dispatcher.byEvent(notify.EventRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, []string{"employee@localhost"}, rejected[0].Recipients)
	assert.Equal(t, "missing docs", rejected[0].Detail)
}

func TestWrongRoleIsForbidden(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", nil)
	require.NoError(t, err)

	_, err = engine.Decide(ctx, principal(models.RoleVP), form.ID, models.ActionApprove, "")
	assert.ErrorIs(t, err, ErrForbidden)

	// denial leaves the record and audit trail unchanged
	unchanged, err := engine.Get(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatus(models.RoleFinance), unchanged.Status)
	assert.Equal(t, models.RoleFinance, unchanged.CurrentApprover)
	assert.Empty(t, unchanged.AuditTrail)
}

func TestDecideOnTerminalIsConflict(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", nil)
	require.NoError(t, err)

	_, err = engine.Decide(ctx, principal(models.RoleFinance), form.ID, models.ActionReject, "duplicate submission")
	require.NoError(t, err)

	_, err = engine.Decide(ctx, principal(models.RoleFinance), form.ID, models.ActionApprove, "")
	assert.ErrorIs(t, err, ErrConflict)

	unchanged, err := engine.Get(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FormStatusRejected, unchanged.Status)
	assert.Len(t, unchanged.AuditTrail, 1)
}

func TestDecideValidation(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	_, err := engine.Decide(ctx, principal(models.RoleFinance), uuid.New().String(), models.ActionApprove, "")
	assert.ErrorIs(t, err, ErrNotFound)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", nil)
	require.NoError(t, err)

	_, err = engine.Decide(ctx, principal(models.RoleFinance), form.ID, "escalate", "")
	assert.ErrorIs(t, err, ErrValidation)
}

// stalledStore holds the first two Gets until both racing callers have read
// the same pre-decision snapshot, forcing the conflict onto the
// compare-and-update.
type stalledStore struct {
	*repository.MemoryFormStore
	barrier   sync.WaitGroup
	remaining atomic.Int32
}

func (s *stalledStore) Get(ctx context.Context, id string) (*models.Form, error) {
	form, err := s.MemoryFormStore.Get(ctx, id)
	if s.remaining.Add(-1) >= 0 {
		s.barrier.Done()
		s.barrier.Wait()
	}
	return form, err
}

func TestConcurrentDecides(t *testing.T) {
	ctx := context.Background()

	store := &stalledStore{MemoryFormStore: repository.NewMemoryFormStore()}
	dispatcher := &capturingDispatcher{}
	engine, err := New(store, seedDirectory(t), dispatcher, nil, &NoOpLogger{})
	require.NoError(t, err)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", nil)
	require.NoError(t, err)

	store.remaining.Store(2)
	store.barrier.Add(2)
	results := make(chan error, 2)
	go func() {
		_, err := engine.Decide(ctx, principal(models.RoleFinance), form.ID, models.ActionApprove, "")
		results <- err
	}()
	go func() {
		_, err := engine.Decide(ctx, principal(models.RoleFinance), form.ID, models.ActionReject, "budget hold")
		results <- err
	}()

	first, second := <-results, <-results
	if first == nil {
		assert.ErrorIs(t, second, ErrConflict)
	} else {
		assert.ErrorIs(t, first, ErrConflict)
		assert.NoError(t, second)
	}

	// final state matches the winner's transition and carries exactly one entry
	final, err := engine.Get(ctx, form.ID)
	require.NoError(t, err)
	assert.Len(t, final.AuditTrail, 1)
	switch final.AuditTrail[0].Action {
	case models.ActionApprove:
		assert.Equal(t, models.RoleManager, final.CurrentApprover)
	case models.ActionReject:
		assert.Equal(t, models.FormStatusRejected, final.Status)
	default:
		t.Fatalf("unexpected audit action %q", final.AuditTrail[0].Action)
	}
}

func TestAuditTrailOrderStable(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCertification, "ISO renewal", nil)
	require.NoError(t, err)
	for _, role := range []models.Role{models.RoleManager, models.RoleFinance, models.RoleVP} {
		_, err = engine.Decide(ctx, principal(role), form.ID, models.ActionApprove, "")
		require.NoError(t, err)
	}

	want := []models.Role{models.RoleManager, models.RoleFinance, models.RoleVP}
	for i := 0; i < 3; i++ {
		got, err := engine.Get(ctx, form.ID)
		require.NoError(t, err)
		require.Len(t, got.AuditTrail, len(want))
		for j, role := range want {
			assert.Equal(t, role, got.AuditTrail[j].Role)
		}
	}
}

func TestMissingRoleHolderDoesNotBlockTransition(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryFormStore()
	users := repository.NewMemoryUserStore() // nobody holds any role
	dispatcher := &capturingDispatcher{}
	engine, err := New(store, users, dispatcher, nil, &NoOpLogger{})
	require.NoError(t, err)

	form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", nil)
	require.NoError(t, err)
	assert.Empty(t, dispatcher.byEvent(notify.EventAwaitingDecision))

	form, err = engine.Decide(ctx, principal(models.RoleFinance), form.ID, models.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, form.CurrentApprover)
	assert.Empty(t, dispatcher.byEvent(notify.EventAwaitingDecision))
}

func TestAdminOverride(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled by default", func(t *testing.T) {
		engine, _, _ := newTestEngine(t)
		form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", nil)
		require.NoError(t, err)

		_, err = engine.Decide(ctx, principal(models.RoleAdministrator), form.ID, models.ActionApprove, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("acts for the current stage when enabled", func(t *testing.T) {
		engine, _, _ := newTestEngine(t, WithAdminOverride())
		form, err := engine.Submit(ctx, principal(models.RoleEmployee), models.FormTypeCOC, "Q3 conformance", nil)
		require.NoError(t, err)

		form, err = engine.Decide(ctx, principal(models.RoleAdministrator), form.ID, models.ActionApprove, "")
		require.NoError(t, err)
		assert.Equal(t, models.RoleManager, form.CurrentApprover)
		assert.Equal(t, models.StageApproved, form.StageStatuses[models.RoleFinance])

		require.Len(t, form.AuditTrail, 1)
		assert.Equal(t, models.RoleFinance, form.AuditTrail[0].Role)
		assert.Equal(t, "uid-administrator", form.AuditTrail[0].PerformedBy)
	})
}
