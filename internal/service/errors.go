package service

import (
	"errors"
	"fmt"
)

// Base error classes. Every error returned by the services wraps one of
// these, or is a persistence failure.
var (
	ErrValidation                = errors.New("validation error")
	ErrNotFound                  = errors.New("not found")
	ErrInvalidSupplierForProduct = errors.New("supplier does not serve product")
	ErrStateConflict             = errors.New("state conflict")
)

var (
	ErrNoItems              = fmt.Errorf("%w: no items provided", ErrValidation)
	ErrInvalidStatus        = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidPaymentMethod = fmt.Errorf("%w: invalid payment method", ErrValidation)
	ErrInvalidFilter        = fmt.Errorf("%w: invalid filter", ErrValidation)

	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrSupplierNotFound = fmt.Errorf("supplier %w", ErrNotFound)

	ErrAlreadyPaid       = fmt.Errorf("%w: order already paid", ErrStateConflict)
	ErrNotDelivered      = fmt.Errorf("%w: order not delivered", ErrStateConflict)
	ErrRequestInProgress = fmt.Errorf("%w: request with this idempotency key is in progress", ErrStateConflict)
)

// Kind classifies an error for callers
type Kind int

const (
	KindPersistence Kind = iota
	KindValidation
	KindNotFound
	KindInvalidSupplier
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidSupplier:
		return "invalid_supplier"
	case KindConflict:
		return "conflict"
	}
	return "persistence"
}

// KindOf returns the class of err. Unclassified errors are persistence failures.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidSupplierForProduct):
		return KindInvalidSupplier
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStateConflict):
		return KindConflict
	}
	return KindPersistence
}
