package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned for an unknown withdrawal id.
	ErrNotFound = errors.New("withdrawal not found")
	// ErrInvalidTransition is returned when the requested transition is not
	// legal from the withdrawal's current status.
	ErrInvalidTransition = errors.New("invalid withdrawal transition")
	// ErrNoCommissions is returned when a request names no commission ids.
	ErrNoCommissions = errors.New("at least one commission id is required")
	// ErrCommissionUnavailable is returned when any requested commission is
	// not available to the requesting affiliate.
	ErrCommissionUnavailable = errors.New("commission not available for withdrawal")
	// ErrPixKeyRequired is returned when a request carries no payout pix key.
	ErrPixKeyRequired = errors.New("pix key is required")
	// ErrProofRequired is returned when paying without any proof attachment.
	ErrProofRequired = errors.New("at least one payment proof is required")
	// ErrReasonRequired is returned when rejecting without a reason.
	ErrReasonRequired = errors.New("rejection reason is required")
)

// Service owns the withdrawal lifecycle: pending -> approved -> paid, with
// rejection from pending and an administrative paid -> approved revert.
type Service struct {
	repo Repository

	Now func() time.Time
}

// NewService creates a withdrawal service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, Now: time.Now}
}

// NewServiceFromDB creates a withdrawal service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Request creates a pending withdrawal over the given commissions, reserving
// them atomically. Every commission must belong to the affiliate and read as
// available right now; any conflict, and any validation failure, rolls the
// whole request back so no reservation outlives a rejected request.
func (s *Service) Request(ctx context.Context, affiliateID uint, commissionIDs []uint, pixKey string) (*models.Withdrawal, error) {
	_ = ctx
	if len(commissionIDs) == 0 {
		return nil, ErrNoCommissions
	}
	if strings.TrimSpace(pixKey) == "" {
		return nil, ErrPixKeyRequired
	}

	now := s.Now().UTC()
	w := &models.Withdrawal{
		PublicID:    uuid.NewString(),
		AffiliateID: affiliateID,
		Status:      models.WithdrawalStatusPending,
		PixKey:      pixKey,
		RequestedAt: now,
	}

	if err := s.repo.CreateReserving(w, commissionIDs, now); err != nil {
		if errors.Is(err, ErrReservationConflict) {
			return nil, ErrCommissionUnavailable
		}
		return nil, err
	}
	return w, nil
}

// Approve transitions pending -> approved, recording the approver.
func (s *Service) Approve(ctx context.Context, id uint, approvedBy string) (*models.Withdrawal, error) {
	_ = ctx
	w, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WithdrawalStatusPending {
		return nil, fmt.Errorf("%w: %s -> approved", ErrInvalidTransition, w.Status)
	}

	now := s.Now().UTC()
	w.Status = models.WithdrawalStatusApproved
	w.ApprovedAt = &now
	w.ApprovedBy = approvedBy
	if err := s.repo.Save(w); err != nil {
		return nil, err
	}
	return w, nil
}

// MarkPaid transitions approved -> paid. Requires at least one proof of
// payment; the reserved commissions become withdrawn in the same
// transaction.
func (s *Service) MarkPaid(ctx context.Context, id uint, proofURLs []string) (*models.Withdrawal, error) {
	_ = ctx
	w, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WithdrawalStatusApproved {
		return nil, fmt.Errorf("%w: %s -> paid", ErrInvalidTransition, w.Status)
	}
	if len(proofURLs) == 0 {
		return nil, ErrProofRequired
	}

	now := s.Now().UTC()
	w.Status = models.WithdrawalStatusPaid
	w.PaidAt = &now
	if err := w.SetPaymentProofURLs(proofURLs); err != nil {
		return nil, err
	}
	if err := s.repo.SavePaid(w); err != nil {
		return nil, err
	}
	return w, nil
}

// Reject transitions pending -> rejected with a mandatory reason and
// releases the reserved commissions back to available.
func (s *Service) Reject(ctx context.Context, id uint, reason string) (*models.Withdrawal, error) {
	_ = ctx
	if reason == "" {
		return nil, ErrReasonRequired
	}

	w, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WithdrawalStatusPending {
		return nil, fmt.Errorf("%w: %s -> rejected", ErrInvalidTransition, w.Status)
	}

	w.Status = models.WithdrawalStatusRejected
	w.RejectedReason = reason
	if err := s.repo.SaveRejected(w); err != nil {
		return nil, err
	}
	return w, nil
}

// RevertPaid transitions paid -> approved, the administrative correction
// path for payment errors. The commission status change made at paid time
// is undone; the reservation stays in place.
func (s *Service) RevertPaid(ctx context.Context, id uint) (*models.Withdrawal, error) {
	_ = ctx
	w, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WithdrawalStatusPaid {
		return nil, fmt.Errorf("%w: %s -> approved", ErrInvalidTransition, w.Status)
	}

	w.Status = models.WithdrawalStatusApproved
	w.PaidAt = nil
	w.PaymentProofsJSON = ""
	if err := s.repo.SaveReverted(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) get(id uint) (*models.Withdrawal, error) {
	w, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return w, nil
}
