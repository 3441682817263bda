package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/response"
)

// DepartmentHandler department endpoints
type DepartmentHandler struct {
	deptSvc service.DepartmentService
}

// NewDepartmentHandler creates a DepartmentHandler
func NewDepartmentHandler(deptSvc service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{deptSvc: deptSvc}
}

// Create
// @Summary   Create a department
// @Tags      departments
// @Security  BearerAuth
// @Param     body body dto.CreateDepartmentRequest true "department"
// @Success   201 {object} response.Response{data=dto.DepartmentDetailResponse}
// @Router    /departments [post]
func (h *DepartmentHandler) Create(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateDepartmentRequest
	if !bindJSON(c, &req) {
		return
	}

	dept, err := h.deptSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}
	response.Created(c, dept)
}

// List
// @Summary   List departments
// @Tags      departments
// @Security  BearerAuth
// @Success   200 {object} response.Response{data=[]dto.DepartmentDetailResponse}
// @Router    /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	var req dto.DepartmentListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, err := h.deptSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, list)
}

// Get
// @Summary   Department by id
// @Tags      departments
// @Security  BearerAuth
// @Param     id path string true "department id"
// @Success   200 {object} response.Response{data=dto.DepartmentDetailResponse}
// @Router    /departments/{id} [get]
func (h *DepartmentHandler) Get(c *gin.Context) {
	dept, err := h.deptSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}
	response.OK(c, dept)
}

// Update
// @Summary   Update a department
// @Tags      departments
// @Security  BearerAuth
// @Param     id path string true "department id"
// @Param     body body dto.UpdateDepartmentRequest true "fields"
// @Success   200 {object} response.Response{data=dto.DepartmentDetailResponse}
// @Router    /departments/{id} [put]
func (h *DepartmentHandler) Update(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.UpdateDepartmentRequest
	if !bindJSON(c, &req) {
		return
	}

	dept, err := h.deptSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}
	response.OK(c, dept)
}

// Delete
// @Summary   Delete an empty department
// @Tags      departments
// @Security  BearerAuth
// @Param     id path string true "department id"
// @Success   200 {object} response.Response
// @Router    /departments/{id} [delete]
func (h *DepartmentHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.deptSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleDepartmentError(c, err)
		return
	}
	response.OK(c, nil)
}

// Staff
// @Summary   Members of a department with their completion counts
// @Tags      departments
// @Security  BearerAuth
// @Param     id path string true "department id"
// @Success   200 {object} response.Response{data=response.PageData}
// @Router    /departments/{id}/staff [get]
func (h *DepartmentHandler) Staff(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.PaginationRequest
	if !bindQuery(c, &req) {
		return
	}

	staff, total, err := h.deptSvc.GetStaff(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		h.handleDepartmentError(c, err)
		return
	}
	response.OKPage(c, staff, total, req.GetPage(), req.GetPageSize())
}

// handleDepartmentError maps department errors to 21xxx codes.
func (h *DepartmentHandler) handleDepartmentError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.NotFound(c, 21001, "department not found")
	case errors.Is(err, service.ErrDepartmentNameExists):
		response.Conflict(c, 21002, "department name already exists")
	case errors.Is(err, service.ErrDepartmentHasMembers):
		response.Conflict(c, 21003, "department still has members")
	default:
		response.InternalError(c)
	}
}
