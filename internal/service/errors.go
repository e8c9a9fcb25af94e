package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrActivityNotFound indicates the requested activity does not exist.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrClassNotFound indicates the requested class does not exist.
	ErrClassNotFound = errors.New("class not found")
	// ErrAnnouncementNotFound indicates the requested announcement does not exist.
	ErrAnnouncementNotFound = errors.New("announcement not found")
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAttachmentNotFound indicates there is no file to serve.
	ErrAttachmentNotFound = errors.New("file not found")
	// ErrDuplicateSubmission indicates the student already submitted for the activity.
	ErrDuplicateSubmission = errors.New("you have already submitted for this activity, use resubmit instead")
	// ErrDuplicateClassName indicates another class already uses the name.
	ErrDuplicateClassName = errors.New("a class with this name already exists")
	// ErrDuplicateEmail indicates another user already registered the email.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrUserInUse indicates the user still owns classes or authored announcements or comments.
	ErrUserInUse = errors.New("user still owns classes or posts and cannot be deleted")
	// ErrActivityLocked indicates the activity no longer accepts submissions.
	ErrActivityLocked = errors.New("activity is locked for submissions")
	// ErrClassAccessDenied indicates the caller does not own the class, or it does not exist.
	ErrClassAccessDenied = errors.New("access denied or class not found")
	// ErrForbidden indicates the caller may not act on behalf of another user.
	ErrForbidden = errors.New("you are not allowed to act on this resource")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadScanFailed indicates validation of the file failed.
	ErrUploadScanFailed = errors.New("file scanning failed")
	// ErrStorageUnavailable indicates no cloud storage is configured.
	ErrStorageUnavailable = errors.New("file storage is not configured")
)

// ValidationError reports a rejected request payload together with the offending fields.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

func newValidationError(message string, fields ...string) *ValidationError {
	if message == "" {
		message = "validation failed"
	}
	return &ValidationError{Message: message, Fields: fields}
}

// validationFailure converts validator errors into a ValidationError and passes anything else through.
func validationFailure(err error) error {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, toSnakeCase(fieldErr.Field()))
	}
	return newValidationError("validation failed", fields...)
}

func toSnakeCase(name string) string {
	var builder strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || (nextLower && runes[i-1] >= 'A' && runes[i-1] <= 'Z') {
				builder.WriteRune('_')
			}
		}
		if isUpper {
			r += 'a' - 'A'
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
