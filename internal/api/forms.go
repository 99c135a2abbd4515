package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/balmohsen/backend/internal/auth"
	"github.com/balmohsen/backend/pkg/models"
)

// SubmitFormRequest is the body for creating a form. Payload is the
// form-type-specific field set, opaque to the workflow.
type SubmitFormRequest struct {
	Type    models.FormType `json:"type"`
	Title   string          `json:"title"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecisionRequest is the body for acting on a form at its current stage.
type DecisionRequest struct {
	Action models.DecisionAction `json:"action"`
	Reason string                `json:"reason,omitempty"`
}

// SubmitForm creates a form record at the first stage of its sequence
// (POST /api/v1/forms)
func (s *Server) SubmitForm(c echo.Context) error {
	principal, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "no authenticated principal")
	}

	var req SubmitFormRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Validation Error", "invalid request body: "+err.Error())
	}

	form, err := s.Engine.Submit(c.Request().Context(), principal, req.Type, req.Title, req.Payload)
	if err != nil {
		return s.workflowProblem(c, err)
	}
	return c.JSON(http.StatusCreated, form)
}

// DecideForm applies an approve/reject decision at the current stage
// (POST /api/v1/forms/:id/decision)
func (s *Server) DecideForm(c echo.Context) error {
	principal, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "no authenticated principal")
	}

	var req DecisionRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Validation Error", "invalid request body: "+err.Error())
	}

	form, err := s.Engine.Decide(c.Request().Context(), principal, c.Param("id"), req.Action, req.Reason)
	if err != nil {
		return s.workflowProblem(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

// GetForm returns one form with its audit trail. Visible to its submitter,
// the role it currently waits on, and administrators.
// (GET /api/v1/forms/:id)
func (s *Server) GetForm(c echo.Context) error {
	principal, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "no authenticated principal")
	}

	form, err := s.Engine.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.workflowProblem(c, err)
	}

	if form.SubmittedBy != principal.ID &&
		form.CurrentApprover != principal.Role &&
		principal.Role != models.RoleAdministrator {
		return problem(c, http.StatusForbidden, "Forbidden", "not a party to this form")
	}
	return c.JSON(http.StatusOK, form)
}

// ListMyForms returns the caller's own submissions
// (GET /api/v1/forms)
func (s *Server) ListMyForms(c echo.Context) error {
	principal, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "no authenticated principal")
	}

	forms, err := s.Engine.ListForOwner(c.Request().Context(), principal.ID)
	if err != nil {
		return s.workflowProblem(c, err)
	}
	return c.JSON(http.StatusOK, forms)
}

// ListPendingForms returns the forms waiting on the caller's role
// (GET /api/v1/forms/pending)
func (s *Server) ListPendingForms(c echo.Context) error {
	principal, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "no authenticated principal")
	}

	forms, err := s.Engine.ListPendingForRole(c.Request().Context(), principal.Role)
	if err != nil {
		return s.workflowProblem(c, err)
	}
	return c.JSON(http.StatusOK, forms)
}
