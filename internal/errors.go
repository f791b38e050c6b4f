package internal

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrOrderNotFound = errors.New("order not found")

	ErrMissingStudentInfo = errors.New("student name and id are required")
	ErrNoFiles            = errors.New("order has no files")
	ErrInvalidConfig      = errors.New("invalid print config")
)
