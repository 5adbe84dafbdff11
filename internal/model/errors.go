package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy.
// Use errors.Is() to check against these.
var (
	// ErrCatalogUnavailable: the initial catalog fetch failed. The cache
	// degrades to an empty catalog; non-fatal for callers.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrProductNotFound: the loaded catalog lacks the requested product.
	// Surfaced as "feature unavailable" for that product, non-fatal.
	ErrProductNotFound = errors.New("product not found")

	// ErrNoChoices: a product has no usable variant labels. The add
	// control should be disabled, not an exception raised.
	ErrNoChoices = errors.New("no variant choices")

	// ErrIdentifierUnresolvable: a variant id could not be reduced to
	// numeric form. Per-line only; never aborts a whole build.
	ErrIdentifierUnresolvable = errors.New("identifier unresolvable")

	// ErrBackendUnreachable: the cart backend cannot be reached. Triggers
	// the single-item fallback redirect so intent is never dropped.
	ErrBackendUnreachable = errors.New("cart backend unreachable")

	// ErrMutationRejected: the backend refused an add/change (non-2xx).
	// Cart state is left unchanged.
	ErrMutationRejected = errors.New("mutation rejected")

	ErrInvalidRequest = errors.New("invalid request")
)

// StoreError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type StoreError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewProductNotFoundError creates a 404 error for a missing catalog entry.
func NewProductNotFoundError(productID string) *StoreError {
	return &StoreError{
		Code:       "PRODUCT_NOT_FOUND",
		Message:    fmt.Sprintf("product %s not found", productID),
		StatusCode: 404,
		Err:        ErrProductNotFound,
	}
}

// NewCatalogUnavailableError wraps a failed catalog fetch.
func NewCatalogUnavailableError(err error) *StoreError {
	return &StoreError{
		Code:       "CATALOG_UNAVAILABLE",
		Message:    "catalog fetch failed",
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrCatalogUnavailable, err),
	}
}

// NewBackendUnreachableError wraps a failed cart backend call.
func NewBackendUnreachableError(err error) *StoreError {
	return &StoreError{
		Code:       "BACKEND_UNREACHABLE",
		Message:    "cart backend request failed",
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrBackendUnreachable, err),
	}
}

// NewMutationRejectedError creates an error for a non-2xx add/change
// response. The message carries the backend's reason when it gave one so
// the shopper sees "sold out" rather than a status code.
func NewMutationRejectedError(status int, reason string) *StoreError {
	if reason == "" {
		reason = fmt.Sprintf("cart mutation rejected with status %d", status)
	}
	return &StoreError{
		Code:       "MUTATION_REJECTED",
		Message:    reason,
		StatusCode: status,
		Err:        fmt.Errorf("%w: status %d", ErrMutationRejected, status),
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *StoreError {
	return &StoreError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *StoreError {
	return &StoreError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}
