package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/afiliapay/AfiliaPay/internal/pkg/cache"
	"github.com/afiliapay/AfiliaPay/internal/pkg/env"
	"github.com/afiliapay/AfiliaPay/internal/pkg/webhook"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const planLevelsCacheKey = "settlement:plan_levels:%d"

// Service is the commission settlement engine. On a qualifying paid invoice
// it walks the payer's referral chain and emits one commission per eligible
// level. All settlement is idempotent on the payment's external id.
type Service struct {
	repo Repository

	// MaxDepth caps the referral chain walk; MaturationWindow is the delay
	// before a commission becomes available for withdrawal.
	MaxDepth         int
	MaturationWindow time.Duration

	// CacheTTL controls plan commission-config caching in Redis; zero
	// disables the cache entirely.
	CacheTTL time.Duration

	// OnCommissionsCreated is called after a settlement inserts commissions,
	// with the number inserted. Nil means no reporting.
	OnCommissionsCreated func(n int)

	Now func() time.Time
}

// NewService creates a settlement service with limits from the process
// configuration.
func NewService(repo Repository) *Service {
	maxDepth, err := strconv.Atoi(env.GetEnv("COMMISSION_MAX_DEPTH", "3"))
	if err != nil || maxDepth < 1 {
		maxDepth = 3
	}
	maturationDays, err := strconv.Atoi(env.GetEnv("COMMISSION_MATURATION_DAYS", "30"))
	if err != nil || maturationDays < 0 {
		maturationDays = 30
	}

	return &Service{
		repo:             repo,
		MaxDepth:         maxDepth,
		MaturationWindow: time.Duration(maturationDays) * 24 * time.Hour,
		CacheTTL:         10 * time.Minute,
		Now:              time.Now,
	}
}

// NewServiceFromDB creates a settlement service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// RecordPaidInvoice persists the payment observed in a paid-invoice intent
// and settles it. Settlement-level failures are captured on the payment row;
// a returned error means the payment itself could not be recorded.
func (s *Service) RecordPaidInvoice(ctx context.Context, intent *webhook.Intent, environment string) error {
	invoice := intent.Invoice
	if invoice == nil {
		return nil
	}
	if intent.Metadata.UserID == nil {
		log.Printf("settlement: invoice %s carries no correlated user, skipping", invoice.ExternalPaymentID)
		return nil
	}

	payment := &models.Payment{
		ExternalPaymentID: invoice.ExternalPaymentID,
		AffiliateID:       *intent.Metadata.UserID,
		AmountCents:       invoice.AmountCents,
		Currency:          invoice.Currency,
		BillingReason:     invoice.BillingReason,
		PaymentDate:       invoice.PaidAt,
		Environment:       environment,
	}
	if intent.Metadata.PlanID != nil {
		payment.PlanID = *intent.Metadata.PlanID
	}
	if invoice.SubscriptionExternalID != "" {
		payment.SubscriptionExternalID = invoice.SubscriptionExternalID
		sub, err := s.repo.GetSubscriptionByExternalID(invoice.SubscriptionExternalID)
		if err == nil {
			payment.SubscriptionID = &sub.ID
			if payment.PlanID == 0 {
				payment.PlanID = sub.PlanID
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	created, stored, err := s.repo.CreatePaymentIfNotExists(payment)
	if err != nil {
		return err
	}
	if !created && stored.CommissionProcessed {
		// Webhook retry for a payment that already settled.
		return nil
	}

	if _, _, err := s.Settle(ctx, stored); err != nil {
		log.Printf("settlement: payment %s failed to settle: %v", stored.ExternalPaymentID, err)
		if setErr := s.repo.SetPaymentError(stored.ID, err.Error()); setErr != nil {
			return setErr
		}
	}
	return nil
}

// Settle derives commissions for one payment. It is safe to call repeatedly
// for the same payment: a prior settlement short-circuits without inserting
// anything. The returned error is a settlement failure the caller should
// capture on the payment; the outcome tag tells what actually happened.
func (s *Service) Settle(ctx context.Context, payment *models.Payment) (ReprocessOutcome, int, error) {
	_ = ctx
	if payment.CommissionProcessed {
		return OutcomeAlreadyProcessed, 0, nil
	}

	existing, err := s.repo.CountCommissionsByPaymentID(payment.ID)
	if err != nil {
		return OutcomeError, 0, fmt.Errorf("commission lookup failed: %w", err)
	}
	if existing > 0 {
		// Heal the flag; never insert a second commission set.
		if err := s.repo.MarkPaymentProcessed(payment.ID, int(existing)); err != nil {
			return OutcomeError, 0, err
		}
		return OutcomeCommissionsFound, int(existing), nil
	}

	if payment.IsZeroAmount() {
		// Free trials settle to an empty set so reconciliation never sees
		// them as stuck.
		if err := s.repo.MarkPaymentProcessed(payment.ID, 0); err != nil {
			return OutcomeError, 0, err
		}
		return OutcomeReprocessed, 0, nil
	}

	if err := s.resolvePlanBinding(payment); err != nil {
		return OutcomeError, 0, err
	}

	commissions, err := s.deriveCommissions(payment)
	if err != nil {
		return OutcomeError, 0, err
	}

	if err := s.repo.SettlePayment(payment, commissions); err != nil {
		return OutcomeError, 0, fmt.Errorf("commission insert failed: %w", err)
	}
	if s.OnCommissionsCreated != nil && len(commissions) > 0 {
		s.OnCommissionsCreated(len(commissions))
	}
	return OutcomeReprocessed, len(commissions), nil
}

// resolvePlanBinding retries the subscription lookup for a payment whose plan
// was unknown when the invoice was recorded. An invoice delivered before its
// subscription stores PlanID 0; once the subscription (or its price mapping)
// exists, a reprocess run picks the plan up here and persists the binding.
func (s *Service) resolvePlanBinding(payment *models.Payment) error {
	if payment.PlanID != 0 || payment.SubscriptionExternalID == "" {
		return nil
	}

	sub, err := s.repo.GetSubscriptionByExternalID(payment.SubscriptionExternalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("subscription lookup failed: %w", err)
	}
	if sub.PlanID == 0 {
		return nil
	}

	payment.SubscriptionID = &sub.ID
	payment.PlanID = sub.PlanID
	if err := s.repo.UpdatePaymentBinding(payment.ID, payment.SubscriptionID, payment.PlanID); err != nil {
		return fmt.Errorf("plan binding update failed: %w", err)
	}
	return nil
}

func (s *Service) deriveCommissions(payment *models.Payment) ([]models.Commission, error) {
	if payment.PlanID == 0 {
		return nil, fmt.Errorf("missing plan mapping for payment %s", payment.ExternalPaymentID)
	}

	levels, err := s.planLevels(payment.PlanID)
	if err != nil {
		return nil, fmt.Errorf("plan commission lookup failed: %w", err)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no commission configuration for plan %d", payment.PlanID)
	}
	percentageByLevel := make(map[int]float64, len(levels))
	for _, l := range levels {
		percentageByLevel[l.Level] = l.Percentage
	}

	edges, err := s.repo.ListReferralEdges()
	if err != nil {
		return nil, fmt.Errorf("referral chain lookup failed: %w", err)
	}
	chain := BuildReferralChain(edges, payment.AffiliateID, s.MaxDepth)

	availableDate := payment.PaymentDate.Add(s.MaturationWindow)
	referenceMonth := payment.PaymentDate.Format("2006-01")

	var commissions []models.Commission
	for _, link := range chain {
		percentage, ok := percentageByLevel[link.Level]
		if !ok {
			continue
		}

		affiliate, err := s.repo.GetAffiliate(link.AffiliateID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("settlement: affiliate %d in chain of payment %s no longer exists, skipping level %d",
					link.AffiliateID, payment.ExternalPaymentID, link.Level)
				continue
			}
			return nil, fmt.Errorf("affiliate lookup failed: %w", err)
		}
		if !affiliate.CommissionEligible {
			continue
		}

		commissions = append(commissions, models.Commission{
			AffiliateID:    link.AffiliateID,
			SubscriptionID: payment.SubscriptionID,
			PaymentID:      payment.ID,
			CommissionType: models.CommissionTypeSubscription,
			Level:          link.Level,
			Percentage:     percentage,
			AmountCents:    applyPercentage(payment.AmountCents, percentage),
			Status:         models.CommissionStatusPending,
			PaymentDate:    payment.PaymentDate,
			AvailableDate:  availableDate,
			ReferenceMonth: referenceMonth,
		})
	}
	return commissions, nil
}

// applyPercentage computes cents * pct / 100 with half-up rounding.
func applyPercentage(amountCents int64, percentage float64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromFloat(percentage)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func (s *Service) planLevels(planID uint) ([]models.PlanCommissionLevel, error) {
	key := fmt.Sprintf(planLevelsCacheKey, planID)
	if s.CacheTTL > 0 {
		if raw, err := cache.Get(key); err == nil && raw != "" {
			var levels []models.PlanCommissionLevel
			if err := json.Unmarshal([]byte(raw), &levels); err == nil {
				return levels, nil
			}
		}
	}

	levels, err := s.repo.GetPlanCommissionLevels(planID)
	if err != nil {
		return nil, err
	}

	if s.CacheTTL > 0 && len(levels) > 0 {
		if raw, err := json.Marshal(levels); err == nil {
			if err := cache.Set(key, string(raw), s.CacheTTL); err != nil {
				log.Printf("settlement: failed to cache plan levels for plan %d: %v", planID, err)
			}
		}
	}
	return levels, nil
}
