package service

import (
	"errors"
	"fmt"

	"github.com/nutreterra/api/internal/enum"
)

// Errors returned by the status machine.
var (
	ErrUnknownStatus        = errors.New("unknown order status")
	ErrUnknownPaymentStatus = errors.New("unknown payment status")
	ErrStatusTransition     = errors.New("invalid status transition")
	ErrPaymentTransition    = errors.New("invalid payment status transition")
)

// allowedStatusTransitions is the forward path PENDING → PROCESSING →
// SHIPPED → DELIVERED, with CANCELLED and REFUNDED as side exits.
// Terminal states carry no entry, so any transition out of them fails.
var allowedStatusTransitions = map[string][]string{
	enum.OrderStatusPending:    {enum.OrderStatusProcessing, enum.OrderStatusCancelled},
	enum.OrderStatusProcessing: {enum.OrderStatusShipped, enum.OrderStatusCancelled, enum.OrderStatusRefunded},
	enum.OrderStatusShipped:    {enum.OrderStatusDelivered, enum.OrderStatusRefunded},
}

// allowedPaymentTransitions: a failed payment may be retried; a paid
// payment is final (order-level refunds are the REFUNDED order status).
var allowedPaymentTransitions = map[string][]string{
	enum.PaymentStatusPending: {enum.PaymentStatusPaid, enum.PaymentStatusFailed},
	enum.PaymentStatusFailed:  {enum.PaymentStatusPending, enum.PaymentStatusPaid},
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusProcessing, enum.OrderStatusShipped,
		enum.OrderStatusDelivered, enum.OrderStatusCancelled, enum.OrderStatusRefunded:
		return true
	}
	return false
}

// IsValidPaymentStatus reports whether s is a known payment status.
func IsValidPaymentStatus(s string) bool {
	switch s {
	case enum.PaymentStatusPending, enum.PaymentStatusPaid, enum.PaymentStatusFailed:
		return true
	}
	return false
}

// ValidateStatusTransition checks the order status transition table.
// current == next is a no-op and always allowed.
func ValidateStatusTransition(current, next string) error {
	if !IsValidStatus(next) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, next)
	}
	if current == next {
		return nil
	}
	for _, s := range allowedStatusTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrStatusTransition, current, next)
}

// ValidatePaymentTransition checks the payment status transition table.
func ValidatePaymentTransition(current, next string) error {
	if !IsValidPaymentStatus(next) {
		return fmt.Errorf("%w: %q", ErrUnknownPaymentStatus, next)
	}
	if current == next {
		return nil
	}
	for _, s := range allowedPaymentTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrPaymentTransition, current, next)
}
