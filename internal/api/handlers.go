// Package api contains the HTTP handlers for the approval service
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/balmohsen/backend/internal/auth"
	"github.com/balmohsen/backend/internal/repository"
	"github.com/balmohsen/backend/internal/workflow"
	"github.com/balmohsen/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Pinger reports storage liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the API server.
type Server struct {
	Engine *workflow.Engine
	Users  repository.UserStore
	DB     Pinger
	Logger Logger
}

// NewServer creates a new Server.
func NewServer(engine *workflow.Engine, users repository.UserStore, db Pinger, logger Logger) *Server {
	return &Server{Engine: engine, Users: users, DB: db, Logger: logger}
}

// RegisterRoutes mounts the versioned API under the given group. The group is
// expected to already carry the authentication middleware; the authorization
// gate is applied per route here.
func RegisterRoutes(g *echo.Group, s *Server) {
	g.POST("/forms", s.SubmitForm, auth.RequireOperation(auth.OpSubmitForm))
	g.GET("/forms", s.ListMyForms, auth.RequireOperation(auth.OpViewForm))
	g.GET("/forms/pending", s.ListPendingForms, auth.RequireOperation(auth.OpDecideForm))
	g.GET("/forms/:id", s.GetForm, auth.RequireOperation(auth.OpViewForm))
	g.POST("/forms/:id/decision", s.DecideForm, auth.RequireOperation(auth.OpDecideForm))

	users := g.Group("/users", auth.RequireOperation(auth.OpManageUsers))
	users.GET("", s.ListUsers)
	users.POST("", s.CreateUser)
	users.PUT("/:id/role", s.UpdateUserRole)
}

// HandleHealth returns service health including a storage check.
func (s *Server) HandleHealth(c echo.Context) error {
	status := models.HealthStatus{
		Status:    "ok",
		Service:   "approval-backend",
		Version:   "1.0.0",
		Timestamp: time.Now(),
		Checks:    map[string]string{"db": "ok"},
	}
	if err := s.DB.Ping(c.Request().Context()); err != nil {
		status.Status = "degraded"
		status.Checks["db"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

// problem writes an RFC 7807 Problem Details response.
func problem(c echo.Context, status int, title, detail string) error {
	p := models.ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, p)
}

// workflowProblem maps engine errors onto their client-facing outcomes.
// Anything outside the taxonomy surfaces as a server error.
func (s *Server) workflowProblem(c echo.Context, err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return problem(c, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, workflow.ErrForbidden):
		return problem(c, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, workflow.ErrConflict):
		return problem(c, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, workflow.ErrValidation):
		return problem(c, http.StatusBadRequest, "Validation Error", err.Error())
	default:
		s.Logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
		return problem(c, http.StatusInternalServerError, "Internal Server Error", "the request could not be processed")
	}
}
