package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/response"
)

// UserHandler user management endpoints
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler creates a UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// CreateUser
// @Summary   Create a staff account; the temporary password is emailed and returned once
// @Tags      users
// @Security  BearerAuth
// @Param     body body dto.CreateUserRequest true "user"
// @Success   201 {object} response.Response{data=dto.CreateUserResponse}
// @Router    /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.userSvc.CreateUser(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.Created(c, result)
}

// ListUsers
// @Summary   List users; heads of department only see their department
// @Tags      users
// @Security  BearerAuth
// @Param     page query int false "page"
// @Param     page_size query int false "page size"
// @Success   200 {object} response.Response{data=response.PageData}
// @Router    /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.UserListRequest
	if !bindQuery(c, &req) {
		return
	}

	users, total, err := h.userSvc.List(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OKPage(c, users, total, req.GetPage(), req.GetPageSize())
}

// GetUser
// @Summary   User by id
// @Tags      users
// @Security  BearerAuth
// @Param     id path string true "user id"
// @Success   200 {object} response.Response{data=dto.UserResponse}
// @Router    /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	user, err := h.userSvc.GetByID(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, user)
}

// UpdateUser
// @Summary   Update a user
// @Tags      users
// @Security  BearerAuth
// @Param     id path string true "user id"
// @Param     body body dto.UpdateUserRequest true "fields"
// @Success   200 {object} response.Response{data=dto.UserResponse}
// @Router    /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userSvc.Update(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, user)
}

// DeleteUser
// @Summary   Soft-delete a user
// @Tags      users
// @Security  BearerAuth
// @Param     id path string true "user id"
// @Success   200 {object} response.Response
// @Router    /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.userSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, nil)
}

// AssignRole
// @Summary   Change a user's role
// @Tags      users
// @Security  BearerAuth
// @Param     id path string true "user id"
// @Param     body body dto.AssignRoleRequest true "role"
// @Success   200 {object} response.Response
// @Router    /users/{id}/role [put]
func (h *UserHandler) AssignRole(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.AssignRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userSvc.AssignRole(c.Request.Context(), c.Param("id"), &req, callerID); err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, nil)
}

// ResetPassword
// @Summary   Issue a new temporary password
// @Tags      users
// @Security  BearerAuth
// @Param     id path string true "user id"
// @Success   200 {object} response.Response{data=dto.ResetPasswordResponse}
// @Router    /users/{id}/reset-password [post]
func (h *UserHandler) ResetPassword(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.userSvc.ResetPassword(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, result)
}

// ListRoles
// @Summary   Available roles
// @Tags      users
// @Security  BearerAuth
// @Success   200 {object} response.Response{data=[]dto.RoleResponse}
// @Router    /roles [get]
func (h *UserHandler) ListRoles(c *gin.Context) {
	roles, err := h.userSvc.ListRoles(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, roles)
}

// ImportUsers
// @Summary   Bulk-create users from an xlsx sheet
// @Tags      users
// @Security  BearerAuth
// @Accept    multipart/form-data
// @Param     file formData file true "xlsx workbook"
// @Success   200 {object} response.Response{data=dto.ImportResponse}
// @Router    /users/import [post]
func (h *UserHandler) ImportUsers(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	f, ok := uploadedFile(c)
	if !ok {
		return
	}
	defer f.Close()

	rows, err := h.userSvc.ParseImportFile(f)
	if err != nil {
		handleImportParseError(c, err)
		return
	}

	result, err := h.userSvc.ImportUsers(c.Request.Context(), rows, callerID)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	response.OK(c, result)
}

// handleUserError maps user errors to 20xxx codes.
func (h *UserHandler) handleUserError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 20001, "user not found")
	case errors.Is(err, service.ErrStaffIDExists):
		response.Conflict(c, 20002, "staff id already exists")
	case errors.Is(err, service.ErrEmailExists):
		response.Conflict(c, 20003, "email already exists")
	case errors.Is(err, service.ErrUserSelfRoleChange):
		response.Forbidden(c, 20004, "cannot change your own role")
	case errors.Is(err, service.ErrUserSelfDelete):
		response.Forbidden(c, 20005, "cannot delete yourself")
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.BadRequest(c, 20006, "department not found")
	case errors.Is(err, service.ErrRoleNotFound):
		response.BadRequest(c, 20007, "role not found")
	default:
		response.InternalError(c)
	}
}
