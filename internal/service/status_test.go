package service

import (
	"errors"
	"testing"

	"github.com/nutreterra/api/internal/enum"
)

func TestValidateStatusTransition_Allowed(t *testing.T) {
	cases := []struct{ from, to string }{
		{enum.OrderStatusPending, enum.OrderStatusProcessing},
		{enum.OrderStatusPending, enum.OrderStatusCancelled},
		{enum.OrderStatusProcessing, enum.OrderStatusShipped},
		{enum.OrderStatusProcessing, enum.OrderStatusCancelled},
		{enum.OrderStatusProcessing, enum.OrderStatusRefunded},
		{enum.OrderStatusShipped, enum.OrderStatusDelivered},
		{enum.OrderStatusShipped, enum.OrderStatusRefunded},
	}
	for _, tc := range cases {
		if err := ValidateStatusTransition(tc.from, tc.to); err != nil {
			t.Errorf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
	}
}

func TestValidateStatusTransition_Rejected(t *testing.T) {
	cases := []struct{ from, to string }{
		{enum.OrderStatusPending, enum.OrderStatusShipped},
		{enum.OrderStatusPending, enum.OrderStatusDelivered},
		{enum.OrderStatusPending, enum.OrderStatusRefunded},
		{enum.OrderStatusProcessing, enum.OrderStatusPending},
		{enum.OrderStatusShipped, enum.OrderStatusCancelled},
		{enum.OrderStatusDelivered, enum.OrderStatusRefunded},
		{enum.OrderStatusCancelled, enum.OrderStatusPending},
		{enum.OrderStatusRefunded, enum.OrderStatusProcessing},
	}
	for _, tc := range cases {
		err := ValidateStatusTransition(tc.from, tc.to)
		if !errors.Is(err, ErrStatusTransition) {
			t.Errorf("%s -> %s: expected ErrStatusTransition, got: %v", tc.from, tc.to, err)
		}
	}
}

func TestValidateStatusTransition_SameStatusIsNoop(t *testing.T) {
	for _, s := range []string{
		enum.OrderStatusPending,
		enum.OrderStatusDelivered,
		enum.OrderStatusCancelled,
	} {
		if err := ValidateStatusTransition(s, s); err != nil {
			t.Errorf("%s -> %s: unexpected error: %v", s, s, err)
		}
	}
}

func TestValidateStatusTransition_UnknownStatus(t *testing.T) {
	if err := ValidateStatusTransition("ARCHIVED", enum.OrderStatusPending); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("unknown from-status: expected ErrUnknownStatus, got: %v", err)
	}
	if err := ValidateStatusTransition(enum.OrderStatusPending, "archived"); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("unknown to-status: expected ErrUnknownStatus, got: %v", err)
	}
	// Status values are case sensitive.
	if err := ValidateStatusTransition("pending", enum.OrderStatusProcessing); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("lowercase status: expected ErrUnknownStatus, got: %v", err)
	}
}

func TestValidatePaymentTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{enum.PaymentStatusPending, enum.PaymentStatusPaid},
		{enum.PaymentStatusPending, enum.PaymentStatusFailed},
		{enum.PaymentStatusFailed, enum.PaymentStatusPending},
		{enum.PaymentStatusFailed, enum.PaymentStatusPaid},
	}
	for _, tc := range allowed {
		if err := ValidatePaymentTransition(tc.from, tc.to); err != nil {
			t.Errorf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
	}

	rejected := []struct{ from, to string }{
		{enum.PaymentStatusPaid, enum.PaymentStatusPending},
		{enum.PaymentStatusPaid, enum.PaymentStatusFailed},
	}
	for _, tc := range rejected {
		err := ValidatePaymentTransition(tc.from, tc.to)
		if !errors.Is(err, ErrPaymentTransition) {
			t.Errorf("%s -> %s: expected ErrPaymentTransition, got: %v", tc.from, tc.to, err)
		}
	}

	if err := ValidatePaymentTransition("refunded", enum.PaymentStatusPaid); !errors.Is(err, ErrUnknownPaymentStatus) {
		t.Errorf("unknown payment status: expected ErrUnknownPaymentStatus, got: %v", err)
	}
}
