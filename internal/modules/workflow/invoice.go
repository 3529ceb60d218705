package workflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

// DerivePaymentStatus is the only source of an invoice's payment status.
// Precedence: cancelled, paid, overdue, partial, pending.
func DerivePaymentStatus(paid, total decimal.Decimal, dueDate time.Time, cancelled bool, now time.Time) PaymentStatus {
	switch {
	case cancelled:
		return PaymentCancelled
	case paid.GreaterThanOrEqual(total):
		return PaymentPaid
	case now.After(dueDate):
		return PaymentOverdue
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentPending
	}
}

// CheckInvoiceCreation allows an invoice only for a completed record without a
// live invoice.
func CheckInvoiceCreation(rec ServiceRecord, hasLive bool) error {
	if rec.Status != RecordCompleted {
		return apperror.InvalidTransition("invoice requires a completed service record, got %s", rec.Status)
	}
	if hasLive {
		return apperror.Conflict("service record %s already has an invoice", rec.ID)
	}
	return nil
}

// NewInvoice builds an unpaid invoice for rec.
func NewInvoice(rec ServiceRecord, totals Totals, quotationID *uuid.UUID, dueDate time.Time, createdBy uuid.UUID, notes string, now time.Time) Invoice {
	inv := Invoice{
		ID:              uuid.New(),
		ServiceRecordID: rec.ID,
		StoreID:         rec.StoreID,
		CustomerID:      rec.CustomerID,
		QuotationID:     quotationID,
		Number:          NewNumber(InvoicePrefix, now),
		Items:           totals.Items,
		Subtotal:        totals.Subtotal,
		TaxRate:         totals.TaxRate,
		TaxAmount:       totals.TaxAmount,
		Total:           totals.Total,
		PaidAmount:      decimal.Zero,
		DueDate:         dueDate,
		Notes:           notes,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	inv.PaymentStatus = DerivePaymentStatus(inv.PaidAmount, inv.Total, inv.DueDate, false, now)
	return inv
}

// RecordPayment adds amount to the invoice. Overpayment and payments against
// paid or cancelled invoices are conflicts.
func RecordPayment(inv Invoice, amount decimal.Decimal, now time.Time) (Invoice, error) {
	if !amount.IsPositive() {
		return inv, apperror.Field("amount", "must be greater than zero")
	}
	current := DerivePaymentStatus(inv.PaidAmount, inv.Total, inv.DueDate, inv.CancelledAt != nil, now)
	switch current {
	case PaymentCancelled:
		return inv, apperror.Conflict("invoice %s is cancelled", inv.Number)
	case PaymentPaid:
		return inv, apperror.Conflict("invoice %s is already paid", inv.Number)
	}
	balance := inv.Balance()
	if amount.GreaterThan(balance) {
		return inv, apperror.Conflict("payment of %s exceeds outstanding balance %s", amount.StringFixed(2), balance.StringFixed(2)).
			WithDetails(map[string]string{"balance": balance.StringFixed(2)})
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.PaymentStatus = DerivePaymentStatus(inv.PaidAmount, inv.Total, inv.DueDate, false, now)
	inv.UpdatedAt = now
	return inv, nil
}

// CancelInvoice cancels a pending, partial or overdue invoice.
func CancelInvoice(inv Invoice, now time.Time) (Invoice, error) {
	current := DerivePaymentStatus(inv.PaidAmount, inv.Total, inv.DueDate, inv.CancelledAt != nil, now)
	switch current {
	case PaymentCancelled:
		return inv, apperror.Conflict("invoice %s is already cancelled", inv.Number)
	case PaymentPaid:
		return inv, apperror.InvalidTransition("invoice %s is fully paid and cannot be cancelled", inv.Number)
	}
	inv.CancelledAt = &now
	inv.PaymentStatus = PaymentCancelled
	inv.UpdatedAt = now
	return inv, nil
}

// RefreshPaymentStatus re-derives the stored status. changed is false when the
// stored value is already current.
func RefreshPaymentStatus(inv Invoice, now time.Time) (Invoice, bool) {
	next := DerivePaymentStatus(inv.PaidAmount, inv.Total, inv.DueDate, inv.CancelledAt != nil, now)
	if next == inv.PaymentStatus {
		return inv, false
	}
	inv.PaymentStatus = next
	inv.UpdatedAt = now
	return inv, true
}
