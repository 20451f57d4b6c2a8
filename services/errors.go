package services

import "errors"

var (
	// ErrUserNotFound means no account has the login identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is the constraint violation raised when signing up with a taken email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrBadCredentials covers both unknown emails and wrong passwords.
	ErrBadCredentials = errors.New("invalid email or password")
	// ErrInvalidInput is returned for missing required fields.
	ErrInvalidInput = errors.New("invalid input")
	ErrPostNotFound = errors.New("post not found")
	// ErrAttachmentNotFound means no attachment matches the (attachment, post) pair.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrFileTooLarge is returned when an upload exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrStorage wraps failures reading or writing attachment bytes.
	ErrStorage = errors.New("file storage failure")
)
