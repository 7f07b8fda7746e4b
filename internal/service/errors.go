package service

import "errors"

// Shared service-level error classes. Workflow precondition failures keep
// their own sentinels in the workflow package; handlers classify both sets
// with errors.Is to pick the HTTP status.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("operation not allowed for this role")
)
