package handler

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"crisp-academy/backend/internal/api/middleware"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/response"
	"crisp-academy/backend/pkg/validator"
)

// MustGetUserID reads user_id set by JWTAuth. On false a 401 was written
// and the caller should return.
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(middleware.CtxUserID)
	if s == "" {
		response.Unauthorized(c, response.CodeUnauthorized, "not authenticated")
		return "", false
	}
	return s, true
}

// MustGetCaller reads the caller identity set by JWTAuth.
func MustGetCaller(c *gin.Context) (service.Caller, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Caller{}, false
	}
	role := c.GetString(middleware.CtxRole)
	if role == "" {
		response.Unauthorized(c, response.CodeUnauthorized, "not authenticated")
		return service.Caller{}, false
	}
	return service.Caller{
		UserID:       userID,
		Role:         role,
		DepartmentID: c.GetString(middleware.CtxDepartmentID),
	}, true
}

// tokenInfo jti and expiry of the access token of this request.
func tokenInfo(c *gin.Context) (string, time.Time) {
	exp, _ := c.Get(middleware.CtxTokenExpiry)
	expiresAt, _ := exp.(time.Time)
	return c.GetString(middleware.CtxTokenID), expiresAt
}

// bindJSON binds the body and writes a 400 with readable details on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			_ = c.Error(err)
			return false
		}
		response.ValidationFailed(c, validator.Translate(err))
		return false
	}
	return true
}

// bindQuery binds query parameters and writes a 400 on failure.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.ValidationFailed(c, validator.Translate(err))
		return false
	}
	return true
}

// uploadedFile opens the multipart "file" field.
func uploadedFile(c *gin.Context) (io.ReadCloser, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			_ = c.Error(err)
			return nil, false
		}
		response.BadRequest(c, response.CodeValidation, "an xlsx file is required in the \"file\" field")
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, response.CodeValidation, "the uploaded file cannot be read")
		return nil, false
	}
	return f, true
}

// handleCommonError maps errors shared by every module; false means unhandled.
func handleCommonError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, response.CodeForbidden, "permission denied")
	case errors.Is(err, service.ErrFeatureUnavailable):
		response.ServiceUnavailable(c, err.Error())
	default:
		return false
	}
	return true
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleImportParseError maps spreadsheet parse failures to 400.
func handleImportParseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrImportNoData):
		response.BadRequest(c, response.CodeValidation, "spreadsheet has no data rows")
	case errors.Is(err, service.ErrImportTooManyRows),
		errors.Is(err, service.ErrImportBadHeader):
		response.BadRequest(c, response.CodeValidation, err.Error())
	default:
		response.BadRequest(c, response.CodeValidation, "the uploaded file is not a readable xlsx workbook")
	}
}
