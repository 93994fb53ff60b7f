package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/afiliapay/AfiliaPay/app/models"
	"gorm.io/gorm"
)

// DefaultReprocessLimit bounds one ReprocessAll batch.
const DefaultReprocessLimit = 100

// ErrPaymentNotFound is returned by ReprocessOne for an unknown payment id.
var ErrPaymentNotFound = errors.New("payment not found")

// ReprocessAll scans payments whose commissions were never generated
// (zero-amount payments excluded by the query) and settles each one
// independently: a single item's failure never aborts the batch, it just
// lands in the report as an error outcome.
func (s *Service) ReprocessAll(ctx context.Context, limit int) (*ReprocessReport, error) {
	if limit <= 0 {
		limit = DefaultReprocessLimit
	}

	payments, err := s.repo.ListUnprocessedPayments(limit)
	if err != nil {
		return nil, fmt.Errorf("candidate scan failed: %w", err)
	}

	report := &ReprocessReport{}
	for i := range payments {
		report.Add(s.reprocessPayment(ctx, &payments[i]))
	}
	return report, nil
}

// ReprocessOne settles a single payment regardless of its current flag. Used
// for admin-triggered retries of errored payments after the underlying data
// issue (say, a missing plan mapping) was fixed.
func (s *Service) ReprocessOne(ctx context.Context, paymentID uint) (*ReprocessItem, error) {
	payment, err := s.repo.GetPaymentByID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	item := s.reprocessPayment(ctx, payment)
	return &item, nil
}

func (s *Service) reprocessPayment(ctx context.Context, payment *models.Payment) ReprocessItem {
	item := ReprocessItem{
		PaymentID:         payment.ID,
		ExternalPaymentID: payment.ExternalPaymentID,
	}

	// Re-read current state so the classification reflects races with the
	// live webhook path, then decide before touching anything.
	existing, err := s.repo.CountCommissionsByPaymentID(payment.ID)
	if err != nil {
		item.Outcome = OutcomeError
		item.Error = err.Error()
		return item
	}

	switch classifyOutcome(payment.CommissionProcessed, existing) {
	case OutcomeAlreadyProcessed:
		item.Outcome = OutcomeAlreadyProcessed
		return item
	case OutcomeCommissionsFound:
		if err := s.repo.MarkPaymentProcessed(payment.ID, int(existing)); err != nil {
			item.Outcome = OutcomeError
			item.Error = err.Error()
			return item
		}
		item.Outcome = OutcomeCommissionsFound
		item.CommissionsCreated = 0
		return item
	}

	outcome, created, err := s.Settle(ctx, payment)
	if err != nil {
		item.Outcome = OutcomeError
		item.Error = err.Error()
		if setErr := s.repo.SetPaymentError(payment.ID, err.Error()); setErr != nil {
			item.Error = fmt.Sprintf("%s (error capture failed: %v)", err.Error(), setErr)
		}
		return item
	}

	item.Outcome = outcome
	item.CommissionsCreated = created
	return item
}
