// Package models defines the domain models for the approval service
package models

import (
	"encoding/json"
	"time"
)

// Role identifies an approver role (or the plain submitter role).
type Role string

const (
	RoleEmployee      Role = "employee"
	RoleFinance       Role = "finance"
	RoleManager       Role = "manager"
	RoleVP            Role = "vp"
	RoleAdministrator Role = "administrator"

	// RoleCompleted is the terminal sentinel for Form.CurrentApprover once a
	// record reaches Approved or Rejected. It is never a member of any stage
	// sequence.
	RoleCompleted Role = "completed"
)

var validRoles = map[Role]bool{
	RoleEmployee:      true,
	RoleFinance:       true,
	RoleManager:       true,
	RoleVP:            true,
	RoleAdministrator: true,
}

// IsValid returns true if the role is an assignable user role.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// FormType selects which approval stage sequence a form routes through.
type FormType string

const (
	FormTypeCOC           FormType = "coc"
	FormTypeCertification FormType = "certification"
)

// FormStatus is the overall lifecycle label of a form.
type FormStatus string

const (
	FormStatusApproved FormStatus = "approved"
	FormStatusRejected FormStatus = "rejected"
)

var terminalStatuses = map[FormStatus]bool{
	FormStatusApproved: true,
	FormStatusRejected: true,
}

// PendingStatus returns the lifecycle label for a form waiting on the given
// stage role, e.g. "pending_finance".
func PendingStatus(stage Role) FormStatus {
	return FormStatus("pending_" + string(stage))
}

// IsTerminal returns true if the status is absorbing (no further transitions).
func (s FormStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// StageStatus is the per-role sub-status of one stage.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageApproved StageStatus = "approved"
	StageRejected StageStatus = "rejected"
)

// DecisionAction is what a principal does to a form.
type DecisionAction string

const (
	ActionSubmit  DecisionAction = "submit"
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// AuditEntry is one append-only record of an action taken on a form.
type AuditEntry struct {
	ID            string         `json:"id" db:"id"`
	FormID        string         `json:"form_id" db:"form_id"`
	Role          Role           `json:"role" db:"role"`
	Action        DecisionAction `json:"action" db:"action"`
	PerformedBy   string         `json:"performed_by" db:"performed_by"`
	PerformerName string         `json:"performer_name,omitempty" db:"performer_name"`
	Reason        string         `json:"reason,omitempty" db:"reason"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// Form is the unit the workflow operates on. Payload is opaque to the engine;
// it is validated against the form type's schema before submission.
type Form struct {
	ID              string               `json:"id" db:"id"`
	Type            FormType             `json:"type" db:"form_type"`
	Title           string               `json:"title" db:"title"`
	SubmittedBy     string               `json:"submitted_by" db:"submitted_by"`
	SubmitterEmail  string               `json:"submitter_email" db:"submitter_email"`
	Payload         json.RawMessage      `json:"payload,omitempty" db:"payload"`
	Status          FormStatus           `json:"status" db:"status"`
	CurrentApprover Role                 `json:"current_approver" db:"current_approver"`
	StageStatuses   map[Role]StageStatus `json:"stage_statuses" db:"stage_statuses"`
	RejectionReason *string              `json:"rejection_reason,omitempty" db:"rejection_reason"`
	AuditTrail      []AuditEntry         `json:"audit_trail,omitempty"`
	CreatedAt       time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the record has reached an absorbing state.
func (f *Form) IsTerminal() bool {
	return f.Status.IsTerminal()
}

// HealthStatus represents service health
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProblemDetails represents RFC 7807 Problem Details
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
