// Package asset defines domain-specific errors
package asset

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	// Reference errors
	ErrInvalidKind = errors.New("invalid asset kind")
	ErrInvalidName = errors.New("invalid asset name")
	ErrNotFound    = errors.New("asset not found")

	// Filter validation errors
	ErrInvalidLimit  = errors.New("limit cannot be negative")
	ErrInvalidOffset = errors.New("offset cannot be negative")

	// Bundle and settings errors
	ErrBundleNotFound  = errors.New("flow bundle not found")
	ErrSettingNotFound = errors.New("setting not found")

	// Persistence errors
	ErrSaveFailed   = errors.New("failed to save asset")
	ErrLoadFailed   = errors.New("failed to load asset")
	ErrDeleteFailed = errors.New("failed to delete asset")
)
