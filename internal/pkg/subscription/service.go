package subscription

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/afiliapay/AfiliaPay/internal/pkg/env"
	"github.com/afiliapay/AfiliaPay/internal/pkg/webhook"
	"gorm.io/gorm"
)

// Service is the subscription state machine. It applies classified webhook
// intents to the subscription aggregate; nothing else mutates subscriptions.
type Service struct {
	repo Repository

	// Environment selects which price mappings apply for plan-change
	// detection. Defaults to the process configuration.
	Environment func() string
}

// NewService creates a subscription service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, Environment: env.PaymentEnvironment}
}

// NewServiceFromDB creates a subscription service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ApplyCreated creates the subscription aggregate for a new external
// subscription. Creation requires correlated user and plan ids; without them
// the mutation is skipped (the raw event is still retained upstream).
func (s *Service) ApplyCreated(ctx context.Context, intent *webhook.Intent) error {
	_ = ctx
	data := intent.Subscription
	if data == nil {
		return nil
	}
	if intent.Metadata.UserID == nil || intent.Metadata.PlanID == nil {
		log.Printf("subscription: event %s missing user/plan correlation, skipping create", intent.EventID)
		return nil
	}

	if _, err := s.repo.GetByExternalID(data.ExternalID); err == nil {
		// At-least-once delivery: the aggregate already exists.
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	sub := &models.Subscription{
		UserID:                 *intent.Metadata.UserID,
		PlanID:                 *intent.Metadata.PlanID,
		ExternalSubscriptionID: data.ExternalID,
		ExternalPriceID:        data.PriceID,
		Status:                 normalizeStatus(data.Status),
		CurrentPeriodStart:     data.CurrentPeriodStart,
		CurrentPeriodEnd:       data.CurrentPeriodEnd,
		TrialEnd:               data.TrialEnd,
		CancelAt:               data.CancelAt,
	}
	if data.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *data.CancelAtPeriodEnd
	}
	return s.repo.Create(sub)
}

// ApplyUpdated merges fields present in the update payload into the stored
// aggregate. Absent fields never overwrite stored values. A changed price id
// triggers plan-change detection via the active price mappings; an unmapped
// price logs the discrepancy and leaves the plan untouched.
func (s *Service) ApplyUpdated(ctx context.Context, intent *webhook.Intent) error {
	_ = ctx
	data := intent.Subscription
	if data == nil {
		return nil
	}

	sub, err := s.repo.GetByExternalID(data.ExternalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("subscription: update for unknown subscription %s, skipping", data.ExternalID)
			return nil
		}
		return err
	}

	if data.Status != "" {
		sub.Status = normalizeStatus(data.Status)
	}
	if data.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart = data.CurrentPeriodStart
	}
	if data.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = data.CurrentPeriodEnd
	}
	if data.TrialEnd != nil {
		sub.TrialEnd = data.TrialEnd
	}
	if data.CancelAt != nil {
		sub.CancelAt = data.CancelAt
	}
	if data.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *data.CancelAtPeriodEnd
	}
	if data.CancellationReason != "" {
		sub.CancellationReason = data.CancellationReason
	}
	if data.CancellationComment != "" {
		sub.CancellationComment = data.CancellationComment
	}
	if data.CancellationFeedback != "" {
		sub.CancellationFeedback = data.CancellationFeedback
	}

	if data.PriceID != "" && data.PriceID != sub.ExternalPriceID {
		s.detectPlanChange(sub, data.PriceID)
	}

	return s.repo.Save(sub)
}

// ApplyCanceled marks the subscription canceled and captures the structured
// cancellation reason/comment/feedback triple when the payload supplies one.
func (s *Service) ApplyCanceled(ctx context.Context, intent *webhook.Intent) error {
	_ = ctx
	data := intent.Subscription
	if data == nil {
		return nil
	}

	sub, err := s.repo.GetByExternalID(data.ExternalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("subscription: cancel for unknown subscription %s, skipping", data.ExternalID)
			return nil
		}
		return err
	}

	sub.Status = models.SubscriptionStatusCanceled
	if data.CanceledAt != nil {
		sub.CancelledAt = data.CanceledAt
	} else {
		now := time.Now().UTC()
		sub.CancelledAt = &now
	}
	if data.CancellationReason != "" {
		sub.CancellationReason = data.CancellationReason
	}
	if data.CancellationComment != "" {
		sub.CancellationComment = data.CancellationComment
	}
	if data.CancellationFeedback != "" {
		sub.CancellationFeedback = data.CancellationFeedback
	}

	return s.repo.Save(sub)
}

func (s *Service) detectPlanChange(sub *models.Subscription, priceID string) {
	mapping, err := s.repo.FindActivePriceMapping(priceID, s.Environment())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("subscription: no active mapping for price %s, keeping plan %d on subscription %s",
				priceID, sub.PlanID, sub.ExternalSubscriptionID)
			return
		}
		log.Printf("subscription: price mapping lookup failed for %s: %v", priceID, err)
		return
	}
	sub.PlanID = mapping.PlanID
	sub.ExternalPriceID = priceID
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case models.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case models.SubscriptionStatusPastDue:
		return models.SubscriptionStatusPastDue
	case models.SubscriptionStatusCanceled:
		return models.SubscriptionStatusCanceled
	case models.SubscriptionStatusUnpaid:
		return models.SubscriptionStatusUnpaid
	case models.SubscriptionStatusPaused:
		return models.SubscriptionStatusPaused
	default:
		return models.SubscriptionStatusIncomplete
	}
}
