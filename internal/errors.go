package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "VALIDATION_ERROR"
	ErrorTypeInvalidReference ErrorType = "INVALID_REFERENCE"
	ErrorTypeNotFound         ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized     ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden        ErrorType = "FORBIDDEN"
	ErrorTypeConflict         ErrorType = "CONFLICT"
	ErrorTypeRateLimited      ErrorType = "RATE_LIMITED"
	ErrorTypeInternal         ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeRequiredField      ErrorCode = "REQUIRED_FIELD"
	ErrCodeInvalidFormat      ErrorCode = "INVALID_FORMAT"
	ErrCodeTooLong            ErrorCode = "TOO_LONG"
	ErrCodeFieldNotPermitted  ErrorCode = "FIELD_NOT_PERMITTED"
	ErrCodeInvalidRequestBody ErrorCode = "INVALID_REQUEST_BODY"

	ErrCodeUnknownCategory   ErrorCode = "UNKNOWN_CATEGORY"
	ErrCodeUnknownStatus     ErrorCode = "UNKNOWN_STATUS"
	ErrCodeUnknownType       ErrorCode = "UNKNOWN_TYPE"
	ErrCodeUnknownTechnician ErrorCode = "UNKNOWN_TECHNICIAN"

	ErrCodeTicketNotFound   ErrorCode = "TICKET_NOT_FOUND"
	ErrCodeUserNotFound     ErrorCode = "USER_NOT_FOUND"
	ErrCodeRouteNotFound    ErrorCode = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	ErrCodeRoleNotPermitted ErrorCode = "ROLE_NOT_PERMITTED"
	ErrCodeNotAssigned      ErrorCode = "NOT_ASSIGNED"
	ErrCodeUnknownRole      ErrorCode = "UNKNOWN_ROLE"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeMissingToken       ErrorCode = "MISSING_TOKEN"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTooManyRequests    ErrorCode = "TOO_MANY_REQUESTS"

	ErrCodeEmailTaken     ErrorCode = "EMAIL_TAKEN"
	ErrCodeCannotDeleteMe ErrorCode = "CANNOT_DELETE_SELF"

	ErrCodeMissingFile  ErrorCode = "MISSING_FILE"
	ErrCodeInvalidCSV   ErrorCode = "INVALID_CSV"
	ErrCodeImportFailed ErrorCode = "IMPORT_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel errors survive copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause returns a copy carrying cause. Sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithMessage(message string) *AppError {
	cp := *e
	cp.Message = message
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewInvalidReferenceError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidReference,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewHTTPError builds an AppError for failures raised by the transport
// itself (routing, body decoding, rate limiting) rather than a service.
func NewHTTPError(status int, message string) *AppError {
	e := &AppError{Message: message, StatusCode: status}
	switch status {
	case http.StatusBadRequest:
		e.Type, e.Code = ErrorTypeValidation, ErrCodeInvalidRequestBody
	case http.StatusUnauthorized:
		e.Type, e.Code = ErrorTypeUnauthorized, ErrCodeMissingToken
	case http.StatusForbidden:
		e.Type, e.Code = ErrorTypeForbidden, ErrCodeRoleNotPermitted
	case http.StatusNotFound:
		e.Type, e.Code = ErrorTypeNotFound, ErrCodeRouteNotFound
	case http.StatusMethodNotAllowed:
		e.Type, e.Code = ErrorTypeValidation, ErrCodeMethodNotAllowed
	case http.StatusTooManyRequests:
		e.Type, e.Code = ErrorTypeRateLimited, ErrCodeTooManyRequests
	default:
		e.Type, e.Code = ErrorTypeInternal, ErrCodeInternal
	}
	return e
}

var (
	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrMissingToken       = NewUnauthorizedError("Missing bearer token", ErrCodeMissingToken)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)

	ErrRoleNotPermitted = NewForbiddenError("Your role does not allow this operation", ErrCodeRoleNotPermitted)
	ErrNotAssigned      = NewForbiddenError("Not your ticket", ErrCodeNotAssigned)
	ErrUnknownRole      = NewForbiddenError("Unknown role", ErrCodeUnknownRole)

	ErrTicketNotFound = NewNotFoundError("Ticket not found", ErrCodeTicketNotFound)
	ErrUserNotFound   = NewNotFoundError("User not found", ErrCodeUserNotFound)

	ErrUnknownCategory = NewInvalidReferenceError("categorie_id", "Unknown category", ErrCodeUnknownCategory)
	ErrUnknownStatus   = NewInvalidReferenceError("statut_id", "Unknown status", ErrCodeUnknownStatus)
	ErrUnknownType     = NewInvalidReferenceError("type_id", "Unknown type", ErrCodeUnknownType)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
