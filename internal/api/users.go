package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/balmohsen/backend/internal/repository"
	"github.com/balmohsen/backend/pkg/models"
)

// CreateUserRequest is the admin body for provisioning a directory entry.
type CreateUserRequest struct {
	Username    string              `json:"username"`
	Email       openapi_types.Email `json:"email"`
	DisplayName string              `json:"display_name,omitempty"`
	Role        models.Role         `json:"role"`
}

// UpdateRoleRequest reassigns the role a user holds.
type UpdateRoleRequest struct {
	Role models.Role `json:"role"`
}

// ListUsers returns the user directory
// (GET /api/v1/users)
func (s *Server) ListUsers(c echo.Context) error {
	users, err := s.Users.List(c.Request().Context())
	if err != nil {
		return s.workflowProblem(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// CreateUser provisions a directory entry with a role
// (POST /api/v1/users)
func (s *Server) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Validation Error", "invalid request body: "+err.Error())
	}
	if req.Username == "" || req.Email == "" {
		return problem(c, http.StatusBadRequest, "Validation Error", "username and email are required")
	}
	if !req.Role.IsValid() {
		return problem(c, http.StatusBadRequest, "Validation Error", "unknown role "+req.Role.String())
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:          uuid.New().String(),
		Username:    req.Username,
		Email:       string(req.Email),
		DisplayName: req.DisplayName,
		Role:        req.Role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Users.Create(c.Request().Context(), user); err != nil {
		return s.workflowProblem(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

// UpdateUserRole reassigns the role a user holds
// (PUT /api/v1/users/:id/role)
func (s *Server) UpdateUserRole(c echo.Context) error {
	var req UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Validation Error", "invalid request body: "+err.Error())
	}
	if !req.Role.IsValid() {
		return problem(c, http.StatusBadRequest, "Validation Error", "unknown role "+req.Role.String())
	}

	id := c.Param("id")
	if err := s.Users.UpdateRole(c.Request().Context(), id, req.Role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return problem(c, http.StatusNotFound, "Not Found", "no user with id "+id)
		}
		return s.workflowProblem(c, err)
	}

	user, err := s.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		return s.workflowProblem(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
