package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPersistence  = errors.New("persistence failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	// ErrConflict means a row changed between read and conditional write.
	ErrConflict = errors.New("concurrent update")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (requested %d, available %d)", e.Name, e.Requested, e.Available)
}

// Coupon rejection reasons.
const (
	CouponReasonNotFound     = "not_found"
	CouponReasonInactive     = "inactive"
	CouponReasonExhausted    = "exhausted"
	CouponReasonNotStarted   = "not_started"
	CouponReasonExpired      = "expired"
	CouponReasonBelowMinimum = "below_minimum"
)

type CouponNotApplicableError struct {
	Code   string
	Reason string
}

func (e *CouponNotApplicableError) Error() string {
	return fmt.Sprintf("coupon %s not applicable: %s", e.Code, e.Reason)
}
