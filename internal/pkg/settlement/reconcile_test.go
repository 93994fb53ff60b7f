package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		processed bool
		existing  int64
		want      ReprocessOutcome
	}{
		{processed: true, existing: 0, want: OutcomeAlreadyProcessed},
		{processed: true, existing: 2, want: OutcomeAlreadyProcessed},
		{processed: false, existing: 2, want: OutcomeCommissionsFound},
		{processed: false, existing: 0, want: OutcomeReprocessed},
	}
	for _, tt := range tests {
		if got := classifyOutcome(tt.processed, tt.existing); got != tt.want {
			t.Fatalf("classifyOutcome(%v, %d) = %q, want %q", tt.processed, tt.existing, got, tt.want)
		}
	}
}

func TestReprocessAll_MixedBatch(t *testing.T) {
	repo := newFakeSettlementRepo()
	repo.addAffiliate(2, true)
	repo.edges = []models.SubAffiliate{edge(2, 1)}
	repo.planLevels[7] = []models.PlanCommissionLevel{{PlanID: 7, Level: 1, Percentage: 20}}

	// Settles cleanly.
	repo.addPayment(models.Payment{
		ExternalPaymentID: "in_ok",
		AffiliateID:       1,
		PlanID:            7,
		AmountCents:       10000,
		PaymentDate:       time.Unix(1700000000, 0).UTC(),
	})
	// Has commissions but the flag was lost: heals.
	flagged := repo.addPayment(models.Payment{
		ExternalPaymentID: "in_heal",
		AffiliateID:       1,
		PlanID:            7,
		AmountCents:       10000,
	})
	repo.commissions = append(repo.commissions,
		models.Commission{PaymentID: flagged.ID, AffiliateID: 2, Level: 1})
	// Unmapped plan: errors, but must not abort the batch.
	repo.addPayment(models.Payment{
		ExternalPaymentID: "in_bad",
		AffiliateID:       1,
		PlanID:            0,
		AmountCents:       10000,
	})

	svc := newTestService(repo)
	report, err := svc.ReprocessAll(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Reprocessed)
	assert.Equal(t, 1, report.CommissionsFound)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 0, report.AlreadyProcessed)

	// The errored payment carries its message for the admin.
	badStored := repo.paymentsByExt["in_bad"]
	assert.NotEmpty(t, repo.errMessages[badStored.ID])
	// The healed payment got its flag back without new rows.
	assert.True(t, repo.payments[flagged.ID].CommissionProcessed)
	assert.Len(t, repo.commissions, 2)
}

func TestReprocessAll_ScanFailure(t *testing.T) {
	repo := newFakeSettlementRepo()
	repo.listErr = assert.AnError

	svc := newTestService(repo)
	_, err := svc.ReprocessAll(context.Background(), 10)
	assert.Error(t, err)
}

func TestReprocessOne(t *testing.T) {
	repo := newFakeSettlementRepo()
	repo.addAffiliate(2, true)
	repo.edges = []models.SubAffiliate{edge(2, 1)}
	repo.planLevels[7] = []models.PlanCommissionLevel{{PlanID: 7, Level: 1, Percentage: 20}}
	payment := repo.addPayment(models.Payment{
		ExternalPaymentID: "in_one",
		AffiliateID:       1,
		PlanID:            7,
		AmountCents:       4000,
		PaymentDate:       time.Unix(1700000000, 0).UTC(),
	})

	svc := newTestService(repo)
	item, err := svc.ReprocessOne(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReprocessed, item.Outcome)
	assert.Equal(t, 1, item.CommissionsCreated)
	assert.Equal(t, "in_one", item.ExternalPaymentID)
}

func TestReprocessOne_ResolvesPlanArrivedLate(t *testing.T) {
	repo := newFakeSettlementRepo()
	repo.addAffiliate(2, true)
	repo.edges = []models.SubAffiliate{edge(2, 1)}
	repo.planLevels[7] = []models.PlanCommissionLevel{{PlanID: 7, Level: 1, Percentage: 20}}

	// The invoice arrived before its subscription: the plan was unknown at
	// record time and the first settlement attempt errored.
	payment := repo.addPayment(models.Payment{
		ExternalPaymentID:      "in_ooo",
		SubscriptionExternalID: "sub_late",
		AffiliateID:            1,
		PlanID:                 0,
		AmountCents:            10000,
		PaymentDate:            time.Unix(1700000000, 0).UTC(),
		CommissionError:        "missing plan mapping for payment in_ooo",
	})

	// The subscription shows up afterwards.
	repo.subscriptions["sub_late"] = &models.Subscription{ID: 11, PlanID: 7}

	svc := newTestService(repo)
	item, err := svc.ReprocessOne(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReprocessed, item.Outcome)
	assert.Equal(t, 1, item.CommissionsCreated)

	stored := repo.payments[payment.ID]
	assert.Equal(t, uint(7), stored.PlanID)
	require.NotNil(t, stored.SubscriptionID)
	assert.Equal(t, uint(11), *stored.SubscriptionID)
	assert.True(t, stored.CommissionProcessed)
}

func TestReprocessOne_AlreadyProcessed(t *testing.T) {
	repo := newFakeSettlementRepo()
	payment := repo.addPayment(models.Payment{
		ExternalPaymentID:   "in_done",
		AffiliateID:         1,
		AmountCents:         4000,
		CommissionProcessed: true,
	})

	svc := newTestService(repo)
	item, err := svc.ReprocessOne(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, item.Outcome)
}

func TestReprocessOne_UnknownPayment(t *testing.T) {
	svc := newTestService(newFakeSettlementRepo())
	_, err := svc.ReprocessOne(context.Background(), 999)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}
