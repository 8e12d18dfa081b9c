package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeUnprocessable ErrorType = "UNPROCESSABLE"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal      ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidName      ErrorCode = "INVALID_NAME"
	ErrCodeInvalidScope     ErrorCode = "INVALID_SCOPE"
	ErrCodeEmptyUpload      ErrorCode = "EMPTY_UPLOAD"

	ErrCodeFileNotFound       ErrorCode = "FILE_NOT_FOUND"
	ErrCodeFolderNotFound     ErrorCode = "FOLDER_NOT_FOUND"
	ErrCodeShareLinkNotFound  ErrorCode = "SHARE_LINK_NOT_FOUND"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeEmployeeNotFound   ErrorCode = "EMPLOYEE_NOT_FOUND"
	ErrCodeDepartmentNotFound ErrorCode = "DEPARTMENT_NOT_FOUND"

	ErrCodeAccessDenied      ErrorCode = "ACCESS_DENIED"
	ErrCodeShareLinkExpired  ErrorCode = "SHARE_LINK_EXPIRED"
	ErrCodeShareLinkPassword ErrorCode = "SHARE_LINK_PASSWORD_REQUIRED"
	ErrCodeFolderCycle       ErrorCode = "FOLDER_CYCLE"
	ErrCodeResourceTrashed   ErrorCode = "RESOURCE_TRASHED"

	ErrCodeIdempotencyKeyMissing  ErrorCode = "IDEMPOTENCY_KEY_MISSING"
	ErrCodeIdempotencyKeyConflict ErrorCode = "IDEMPOTENCY_KEY_CONFLICT"
	ErrCodeIdempotencyInProgress  ErrorCode = "IDEMPOTENCY_IN_PROGRESS"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeUserNotApproved    ErrorCode = "USER_NOT_APPROVED"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeEmployeeClaimed    ErrorCode = "EMPLOYEE_ALREADY_CLAIMED"
	ErrCodeEmployeeInactive   ErrorCode = "EMPLOYEE_INACTIVE"
	ErrCodeEmailTaken         ErrorCode = "EMAIL_ALREADY_TAKEN"
	ErrCodeInvalidStatus      ErrorCode = "INVALID_STATUS"
	ErrCodeSelfBlock          ErrorCode = "SELF_BLOCK"
	ErrCodeRoleNotFound       ErrorCode = "ROLE_NOT_FOUND"
	ErrCodeDepartmentInUse    ErrorCode = "DEPARTMENT_IN_USE"
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
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy so that the shared sentinel errors stay immutable.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
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

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewUnprocessableError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnprocessable,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrFileNotFound       = NewNotFoundError("File not found", ErrCodeFileNotFound)
	ErrFolderNotFound     = NewNotFoundError("Folder not found", ErrCodeFolderNotFound)
	ErrShareLinkNotFound  = NewNotFoundError("Share link not found", ErrCodeShareLinkNotFound)
	ErrUserNotFound       = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrEmployeeNotFound   = NewNotFoundError("Employee not found", ErrCodeEmployeeNotFound)
	ErrDepartmentNotFound = NewNotFoundError("Department not found", ErrCodeDepartmentNotFound)

	ErrAccessDenied     = NewForbiddenError("Access denied", ErrCodeAccessDenied)
	ErrShareLinkExpired = NewForbiddenError("Share link is no longer accessible", ErrCodeShareLinkExpired)
	ErrShareLinkPassword = NewUnauthorizedError("Share link password is missing or incorrect", ErrCodeShareLinkPassword)
	ErrFolderCycle      = NewValidationError("Folder cannot be moved into its own subtree", ErrCodeFolderCycle)

	ErrIdempotencyKeyMissing  = NewUnprocessableError("Idempotency-Key header is required", ErrCodeIdempotencyKeyMissing)
	ErrIdempotencyKeyConflict = NewConflictError("Idempotency key was already used with a different payload", ErrCodeIdempotencyKeyConflict)
	ErrIdempotencyInProgress  = NewConflictError("A request with this idempotency key is already in progress", ErrCodeIdempotencyInProgress)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrUserNotApproved    = NewForbiddenError("User account has not been approved", ErrCodeUserNotApproved)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrEmployeeClaimed    = NewConflictError("Employee is already linked to a user", ErrCodeEmployeeClaimed)
	ErrEmployeeInactive   = NewUnprocessableError("Employee is not active", ErrCodeEmployeeInactive)
	ErrEmailTaken         = NewConflictError("Email address is already registered", ErrCodeEmailTaken)
	ErrRoleNotFound       = NewNotFoundError("Role not found", ErrCodeRoleNotFound)

	ErrInternalServer = NewInternalError("Something went wrong", nil)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
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
