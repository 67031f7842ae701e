package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/outcome"
	"github.com/getevo/evo/v2/lib/text"
	"github.com/gofiber/fiber/v2"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Authentication & Authorization errors
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeInvalidToken ErrorCode = "invalid_token"

	// Input validation errors
	ErrorCodeInvalidInput    ErrorCode = "invalid_input"
	ErrorCodeMissingRequired ErrorCode = "missing_required"
	ErrorCodeInvalidStatus   ErrorCode = "invalid_status"
	ErrorCodeInvalidFile     ErrorCode = "invalid_file"

	// Resource errors
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeRequisitionNotFound ErrorCode = "requisition_not_found"
	ErrorCodeQueryNotFound       ErrorCode = "query_not_found"
	ErrorCodeEmployeeNotFound    ErrorCode = "employee_not_found"

	// State errors
	ErrorCodeConflict          ErrorCode = "conflict"
	ErrorCodeInvalidTransition ErrorCode = "invalid_transition"
	ErrorCodeWithdrawExpired   ErrorCode = "withdraw_window_expired"
	ErrorCodeTooManyRequests   ErrorCode = "too_many_requests"

	// Internal errors
	ErrorCodeInternalError ErrorCode = "internal_error"
	ErrorCodeDatabaseError ErrorCode = "database_error"
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode `json:"error"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    string    `json:"details,omitempty"`
}

// Error implements the error interface
func (e AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Response returns an outcome.Response for the error
func (e AppError) Response() outcome.Response {
	var body = map[string]interface{}{
		"success": false,
		"error":   string(e.Code),
		"message": e.Message,
	}
	if e.Details != "" {
		body["details"] = e.Details
	}
	return outcome.Response{
		ContentType: "application/json",
		StatusCode:  e.StatusCode,
		Data:        text.ToJSON(body),
	}
}

// Is matches errors by code so a reworded copy still compares equal
func (e AppError) Is(target error) bool {
	t, ok := target.(AppError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of the error carrying a different message
func (e AppError) WithMessage(format string, args ...any) AppError {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// NewError creates a new AppError
func NewError(code ErrorCode, message string, statusCode int) AppError {
	return AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewErrorWithDetails creates a new AppError with additional details
func NewErrorWithDetails(code ErrorCode, message string, statusCode int, details string) AppError {
	return AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// Predefined common errors
var (
	ErrUnauthorized = AppError{
		Code:       ErrorCodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = AppError{
		Code:       ErrorCodeForbidden,
		Message:    "You are not allowed to perform this action",
		StatusCode: http.StatusForbidden,
	}

	ErrInvalidToken = AppError{
		Code:       ErrorCodeInvalidToken,
		Message:    "Invalid or expired token",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidInput = AppError{
		Code:       ErrorCodeInvalidInput,
		Message:    "Invalid request data",
		StatusCode: http.StatusBadRequest,
	}

	ErrMissingRequired = AppError{
		Code:       ErrorCodeMissingRequired,
		Message:    "Missing required fields",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidStatus = AppError{
		Code:       ErrorCodeInvalidStatus,
		Message:    "Unknown status value",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidFile = AppError{
		Code:       ErrorCodeInvalidFile,
		Message:    "File is too large or of a type that is not accepted",
		StatusCode: http.StatusBadRequest,
	}

	ErrNotFound = AppError{
		Code:       ErrorCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrRequisitionNotFound = AppError{
		Code:       ErrorCodeRequisitionNotFound,
		Message:    "Manpower requisition not found",
		StatusCode: http.StatusNotFound,
	}

	ErrQueryNotFound = AppError{
		Code:       ErrorCodeQueryNotFound,
		Message:    "No query has been raised for this requisition",
		StatusCode: http.StatusNotFound,
	}

	ErrEmployeeNotFound = AppError{
		Code:       ErrorCodeEmployeeNotFound,
		Message:    "Employee not found",
		StatusCode: http.StatusNotFound,
	}

	ErrConflict = AppError{
		Code:       ErrorCodeConflict,
		Message:    "Resource already exists",
		StatusCode: http.StatusConflict,
	}

	ErrInvalidTransition = AppError{
		Code:       ErrorCodeInvalidTransition,
		Message:    "Status change is not allowed from the current state",
		StatusCode: http.StatusConflict,
	}

	ErrWithdrawExpired = AppError{
		Code:       ErrorCodeWithdrawExpired,
		Message:    "Requisition can only be withdrawn within 7 days of submission",
		StatusCode: http.StatusConflict,
	}

	ErrTooManyRequests = AppError{
		Code:       ErrorCodeTooManyRequests,
		Message:    "Too many requests. Please try again later.",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternalError = AppError{
		Code:       ErrorCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrDatabaseError = AppError{
		Code:       ErrorCodeDatabaseError,
		Message:    "Database operation failed",
		StatusCode: http.StatusInternalServerError,
	}
)

// Error creates an outcome.Response from an AppError
func Error(err AppError) outcome.Response {
	return err.Response()
}

// AsAppError extracts an AppError from the chain, falling back to ErrInternalError
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	var appErrPtr *AppError
	if errors.As(err, &appErrPtr) && appErrPtr != nil {
		return *appErrPtr, true
	}
	return ErrInternalError, false
}

// From maps any service error to a response. Errors outside the AppError
// taxonomy are logged and reported as 500.
func From(err error) outcome.Response {
	appErr, ok := AsAppError(err)
	if !ok {
		log.Error("unhandled error: %v", err)
	}
	return appErr.Response()
}

// =====================================================
// STANDARDIZED SUCCESS RESPONSE SYSTEM
// =====================================================

// APIResponse represents a standardized API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (r APIResponse) ToJSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// Meta contains metadata for API responses
type Meta struct {
	Page       int   `json:"page,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
	Count      int   `json:"count,omitempty"`

	Extra map[string]interface{} `json:"extra,omitempty"`
}

func jsonResponse(status int, body APIResponse) outcome.Response {
	return outcome.Response{
		ContentType: "application/json",
		StatusCode:  status,
		Data:        body.ToJSON(),
	}
}

// OK creates a standardized success response
func OK(data interface{}) outcome.Response {
	return jsonResponse(http.StatusOK, APIResponse{Success: true, Data: data})
}

// OKWithMessage creates a success response with a message
func OKWithMessage(data interface{}, message string) outcome.Response {
	return jsonResponse(http.StatusOK, APIResponse{Success: true, Data: data, Message: message})
}

// OKWithMeta creates a success response with metadata
func OKWithMeta(data interface{}, meta *Meta) outcome.Response {
	return jsonResponse(http.StatusOK, APIResponse{Success: true, Data: data, Meta: meta})
}

// Created creates a 201 Created response
func Created(data interface{}) outcome.Response {
	return jsonResponse(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// CreatedWithMessage creates a 201 Created response with message
func CreatedWithMessage(data interface{}, message string) outcome.Response {
	return jsonResponse(http.StatusCreated, APIResponse{Success: true, Data: data, Message: message})
}

// List creates a response for lists/collections with count
func List(data interface{}, count int) outcome.Response {
	return OKWithMeta(data, &Meta{Count: count})
}

// Message creates a response with only a success message
func Message(message string) outcome.Response {
	return jsonResponse(http.StatusOK, APIResponse{Success: true, Message: message})
}

// Fiber helpers for handlers registered on the raw fiber router
// (multipart uploads, websocket upgrades, file downloads).

// FiberError writes err in the same envelope as Error
func FiberError(c *fiber.Ctx, err error) error {
	appErr, ok := AsAppError(err)
	if !ok {
		log.Error("unhandled error on %s: %v", c.Path(), err)
	}
	var body = fiber.Map{
		"success": false,
		"error":   string(appErr.Code),
		"message": appErr.Message,
	}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	return c.Status(appErr.StatusCode).JSON(body)
}

// FiberOK writes a success envelope with the given status
func FiberOK(c *fiber.Ctx, status int, data interface{}, message string) error {
	return c.Status(status).JSON(APIResponse{Success: true, Data: data, Message: message})
}
