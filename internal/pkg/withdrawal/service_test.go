package withdrawal

import (
	"context"
	"testing"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeWithdrawalRepo mirrors the guarded-update semantics of the real
// repository: reservation succeeds only for owned, matured, unreserved
// pending commissions, and every composite is all-or-nothing.
type fakeWithdrawalRepo struct {
	withdrawals map[uint]*models.Withdrawal
	commissions map[uint]*models.Commission
	nextID      uint
}

func newFakeWithdrawalRepo() *fakeWithdrawalRepo {
	return &fakeWithdrawalRepo{
		withdrawals: make(map[uint]*models.Withdrawal),
		commissions: make(map[uint]*models.Commission),
	}
}

func (r *fakeWithdrawalRepo) addCommission(c models.Commission) *models.Commission {
	stored := c
	r.commissions[stored.ID] = &stored
	return &stored
}

func (r *fakeWithdrawalRepo) GetByID(id uint) (*models.Withdrawal, error) {
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *w
	return &copied, nil
}

func (r *fakeWithdrawalRepo) ListByAffiliate(affiliateID uint, offset, limit int) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	for _, w := range r.withdrawals {
		if w.AffiliateID == affiliateID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (r *fakeWithdrawalRepo) List(offset, limit int) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	for _, w := range r.withdrawals {
		out = append(out, *w)
	}
	return out, nil
}

func (r *fakeWithdrawalRepo) ListReservedCommissions(withdrawalID uint) ([]models.Commission, error) {
	var out []models.Commission
	for _, c := range r.commissions {
		if c.WithdrawalID != nil && *c.WithdrawalID == withdrawalID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeWithdrawalRepo) CreateReserving(w *models.Withdrawal, commissionIDs []uint, now time.Time) error {
	var total int64
	for _, id := range commissionIDs {
		c, ok := r.commissions[id]
		if !ok ||
			c.AffiliateID != w.AffiliateID ||
			c.Status != models.CommissionStatusPending ||
			c.AvailableDate.After(now) ||
			c.WithdrawalID != nil {
			return ErrReservationConflict
		}
		total += c.AmountCents
	}
	w.AmountCents = total
	if err := w.Validate(); err != nil {
		return err
	}
	r.nextID++
	w.ID = r.nextID
	stored := *w
	r.withdrawals[w.ID] = &stored
	for _, id := range commissionIDs {
		wid := w.ID
		r.commissions[id].WithdrawalID = &wid
	}
	return nil
}

func (r *fakeWithdrawalRepo) Save(w *models.Withdrawal) error {
	stored := *w
	r.withdrawals[w.ID] = &stored
	return nil
}

func (r *fakeWithdrawalRepo) SavePaid(w *models.Withdrawal) error {
	if err := r.Save(w); err != nil {
		return err
	}
	for _, c := range r.commissions {
		if c.WithdrawalID != nil && *c.WithdrawalID == w.ID {
			c.Status = models.CommissionStatusWithdrawn
		}
	}
	return nil
}

func (r *fakeWithdrawalRepo) SaveRejected(w *models.Withdrawal) error {
	if err := r.Save(w); err != nil {
		return err
	}
	for _, c := range r.commissions {
		if c.WithdrawalID != nil && *c.WithdrawalID == w.ID {
			c.WithdrawalID = nil
		}
	}
	return nil
}

func (r *fakeWithdrawalRepo) SaveReverted(w *models.Withdrawal) error {
	if err := r.Save(w); err != nil {
		return err
	}
	for _, c := range r.commissions {
		if c.WithdrawalID != nil && *c.WithdrawalID == w.ID {
			c.Status = models.CommissionStatusPending
		}
	}
	return nil
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestWithdrawalService(repo Repository) *Service {
	svc := NewService(repo)
	svc.Now = func() time.Time { return testNow }
	return svc
}

func maturedCommission(id, affiliateID uint, cents int64) models.Commission {
	return models.Commission{
		ID:            id,
		AffiliateID:   affiliateID,
		PaymentID:     id,
		Level:         1,
		AmountCents:   cents,
		Status:        models.CommissionStatusPending,
		AvailableDate: testNow.Add(-24 * time.Hour),
	}
}

func TestRequest(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	repo.addCommission(maturedCommission(1, 10, 2000))
	repo.addCommission(maturedCommission(2, 10, 3000))
	svc := newTestWithdrawalService(repo)

	w, err := svc.Request(context.Background(), 10, []uint{1, 2}, "pix-key@bank")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, w.Status)
	assert.Equal(t, int64(5000), w.AmountCents)
	assert.NotEmpty(t, w.PublicID)

	for _, id := range []uint{1, 2} {
		require.NotNil(t, repo.commissions[id].WithdrawalID)
		assert.Equal(t, w.ID, *repo.commissions[id].WithdrawalID)
		assert.Equal(t, models.CommissionStatusPending, repo.commissions[id].Status,
			"reservation must not change stored status")
	}
}

func TestRequest_NoCommissionIDs(t *testing.T) {
	svc := newTestWithdrawalService(newFakeWithdrawalRepo())
	_, err := svc.Request(context.Background(), 10, nil, "pix")
	assert.ErrorIs(t, err, ErrNoCommissions)
}

func TestRequest_MissingPixKeyLeavesNothingBehind(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	repo.addCommission(maturedCommission(1, 10, 2000))
	svc := newTestWithdrawalService(repo)

	_, err := svc.Request(context.Background(), 10, []uint{1}, "")
	assert.ErrorIs(t, err, ErrPixKeyRequired)
	assert.Empty(t, repo.withdrawals, "rejected request must not persist a withdrawal")
	assert.Nil(t, repo.commissions[1].WithdrawalID, "rejected request must not reserve")

	// A corrected retry goes through.
	w, err := svc.Request(context.Background(), 10, []uint{1}, "pix-key@bank")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), w.AmountCents)
}

func TestRequest_RejectsUnavailableCommissions(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	repo.addCommission(maturedCommission(1, 10, 2000))

	immature := maturedCommission(2, 10, 1000)
	immature.AvailableDate = testNow.Add(24 * time.Hour)
	repo.addCommission(immature)

	foreign := maturedCommission(3, 99, 1000)
	repo.addCommission(foreign)

	withdrawn := maturedCommission(4, 10, 1000)
	withdrawn.Status = models.CommissionStatusWithdrawn
	repo.addCommission(withdrawn)

	svc := newTestWithdrawalService(repo)
	for _, ids := range [][]uint{{1, 2}, {1, 3}, {1, 4}, {1, 999}} {
		_, err := svc.Request(context.Background(), 10, ids, "pix")
		assert.ErrorIs(t, err, ErrCommissionUnavailable, "ids %v", ids)
	}

	// The good commission stays unreserved after each failed attempt.
	assert.Nil(t, repo.commissions[1].WithdrawalID)
}

func TestRequest_ReservationIsExclusive(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	repo.addCommission(maturedCommission(1, 10, 2000))
	svc := newTestWithdrawalService(repo)

	_, err := svc.Request(context.Background(), 10, []uint{1}, "pix")
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), 10, []uint{1}, "pix")
	assert.ErrorIs(t, err, ErrCommissionUnavailable)
}

func TestLifecycle_ApprovePayRevert(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	repo.addCommission(maturedCommission(1, 10, 2000))
	svc := newTestWithdrawalService(repo)

	w, err := svc.Request(context.Background(), 10, []uint{1}, "pix")
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), w.ID, "admin@afiliapay")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusApproved, approved.Status)
	assert.Equal(t, "admin@afiliapay", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	paid, err := svc.MarkPaid(context.Background(), w.ID, []string{"https://proofs/1.pdf"})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, []string{"https://proofs/1.pdf"}, paid.PaymentProofURLs())
	assert.Equal(t, models.CommissionStatusWithdrawn, repo.commissions[1].Status)

	reverted, err := svc.RevertPaid(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusApproved, reverted.Status)
	assert.Nil(t, reverted.PaidAt)
	assert.Empty(t, reverted.PaymentProofURLs())
	assert.Equal(t, models.CommissionStatusPending, repo.commissions[1].Status)
	require.NotNil(t, repo.commissions[1].WithdrawalID, "revert keeps the reservation")
}

func TestMarkPaid_RequiresProof(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	repo.addCommission(maturedCommission(1, 10, 2000))
	svc := newTestWithdrawalService(repo)

	w, err := svc.Request(context.Background(), 10, []uint{1}, "pix")
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), w.ID, "admin")
	require.NoError(t, err)

	_, err = svc.MarkPaid(context.Background(), w.ID, nil)
	assert.ErrorIs(t, err, ErrProofRequired)
}

func TestReject_ReleasesReservation(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	repo.addCommission(maturedCommission(1, 10, 2000))
	svc := newTestWithdrawalService(repo)

	w, err := svc.Request(context.Background(), 10, []uint{1}, "pix")
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), w.ID, "pix key does not match")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Status)
	assert.Equal(t, "pix key does not match", rejected.RejectedReason)
	assert.Nil(t, repo.commissions[1].WithdrawalID)

	// Released commission can be requested again.
	_, err = svc.Request(context.Background(), 10, []uint{1}, "pix")
	require.NoError(t, err)
}

func TestReject_RequiresReason(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	repo.addCommission(maturedCommission(1, 10, 2000))
	svc := newTestWithdrawalService(repo)

	w, err := svc.Request(context.Background(), 10, []uint{1}, "pix")
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), w.ID, "")
	assert.ErrorIs(t, err, ErrReasonRequired)
}

func TestInvalidTransitions(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	repo.addCommission(maturedCommission(1, 10, 2000))
	svc := newTestWithdrawalService(repo)

	w, err := svc.Request(context.Background(), 10, []uint{1}, "pix")
	require.NoError(t, err)

	// pending cannot be paid or reverted.
	_, err = svc.MarkPaid(context.Background(), w.ID, []string{"proof"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.RevertPaid(context.Background(), w.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Approve(context.Background(), w.ID, "admin")
	require.NoError(t, err)

	// approved cannot be approved again or rejected.
	_, err = svc.Approve(context.Background(), w.ID, "admin")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Reject(context.Background(), w.ID, "reason")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUnknownWithdrawal(t *testing.T) {
	svc := newTestWithdrawalService(newFakeWithdrawalRepo())
	_, err := svc.Approve(context.Background(), 42, "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}
