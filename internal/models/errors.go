package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes. Each maps to exactly one HTTP status.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeConflict     = "CONFLICT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
)

// Machine-readable reasons carried alongside the code.
const (
	ReasonPostNotFound                  = "post_not_found"
	ReasonPostCommentNotFound           = "post_comment_not_found"
	ReasonUserNotFound                  = "user_not_found"
	ReasonUserFollowNotFound            = "user_follow_not_found"
	ReasonUnauthorizedPostAccess        = "unauthorized_post_access"
	ReasonUnauthorizedPostCommentAccess = "unauthorized_post_comment_access"
	ReasonPostAlreadyReported           = "post_already_reported"
	ReasonFollowInProgress              = "follow_in_progress"
	ReasonUserAlreadyExists             = "user_already_exists"
	ReasonFileExtensionNotAllowed       = "file_extension_not_allowed"
	ReasonCannotFollowSelf              = "cannot_follow_self"
	ReasonInvalidPassword               = "invalid_password"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Reason  string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code and reason so callers can compare with errors.Is
// against a freshly built sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Reason == t.Reason
}

// HTTPStatus maps the error code onto a response status.
func (e *AppError) HTTPStatus() int {
	return StatusForCode(e.Code)
}

// StatusForCode maps an error code onto a response status.
func StatusForCode(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HasReason reports whether err is an AppError with the given reason.
func HasReason(err error, reason string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Reason == reason
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// NewRateLimitedError is returned when a caller exhausted a limit bucket.
func NewRateLimitedError() *AppError {
	return &AppError{Code: CodeRateLimited, Message: "Too many requests. Please try again later."}
}

func NewUnavailableError(message string) *AppError {
	return &AppError{Code: CodeUnavailable, Message: message}
}

// Domain errors.

func ErrPostNotFound() *AppError {
	return &AppError{Code: CodeNotFound, Reason: ReasonPostNotFound, Message: "Post not found."}
}

func ErrPostCommentNotFound() *AppError {
	return &AppError{Code: CodeNotFound, Reason: ReasonPostCommentNotFound, Message: "Post comment not found."}
}

func ErrUserNotFound() *AppError {
	return &AppError{Code: CodeNotFound, Reason: ReasonUserNotFound, Message: "User not found."}
}

func ErrUserFollowNotFound() *AppError {
	return &AppError{Code: CodeNotFound, Reason: ReasonUserFollowNotFound, Message: "Follow request not found."}
}

// ErrUnauthorizedPostAccess is returned when a non-owner tries to change a
// post. action is the verb used in the message ("modified", "deleted").
func ErrUnauthorizedPostAccess(action string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Reason:  ReasonUnauthorizedPostAccess,
		Message: fmt.Sprintf("This post can only be %s by its owner.", action),
	}
}

func ErrUnauthorizedPostCommentAccess() *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Reason:  ReasonUnauthorizedPostCommentAccess,
		Message: "This comment can only be deleted by its owner.",
	}
}

func ErrPostAlreadyReported() *AppError {
	return &AppError{Code: CodeConflict, Reason: ReasonPostAlreadyReported, Message: "You have already reported this post."}
}

func ErrFollowInProgress() *AppError {
	return &AppError{
		Code:    CodeConflict,
		Reason:  ReasonFollowInProgress,
		Message: "A follow request between these users is already being processed.",
	}
}

func ErrUserAlreadyExists(email string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Reason:  ReasonUserAlreadyExists,
		Message: fmt.Sprintf("The email address %s is already in use.", email),
	}
}

func ErrFileExtensionNotAllowed(ext string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Reason:  ReasonFileExtensionNotAllowed,
		Message: fmt.Sprintf("%s type file is not allowed. Please try to upload a different type of file.", ext),
	}
}

func ErrCannotFollowSelf() *AppError {
	return &AppError{Code: CodeValidation, Reason: ReasonCannotFollowSelf, Message: "You cannot follow yourself."}
}

func ErrInvalidPassword() *AppError {
	return &AppError{
		Code:    CodeValidation,
		Reason:  ReasonInvalidPassword,
		Message: "Password should have 8+ characters with at least one uppercase, one lowercase, one digit, and one special character (@$!%*?&).",
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error:  appErr.Message,
			Code:   appErr.Code,
			Reason: appErr.Reason,
		}
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
