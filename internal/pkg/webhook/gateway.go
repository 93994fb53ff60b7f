package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/afiliapay/AfiliaPay/internal/pkg/env"
)

// ErrInvalidSignature is returned when a delivery fails signature
// verification. Nothing is persisted in that case.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrMalformedPayload is returned when the event envelope cannot be parsed
// at all. Nothing is persisted in that case either.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// SubscriptionSync applies subscription-family intents to durable state.
type SubscriptionSync interface {
	ApplyCreated(ctx context.Context, intent *Intent) error
	ApplyUpdated(ctx context.Context, intent *Intent) error
	ApplyCanceled(ctx context.Context, intent *Intent) error
}

// PaymentSettler records a paid invoice and derives commissions from it.
// Settlement-level failures are captured on the payment row, not returned:
// a returned error means the payment could not be recorded at all.
type PaymentSettler interface {
	RecordPaidInvoice(ctx context.Context, intent *Intent, environment string) error
}

// Gateway verifies, persists and dispatches inbound processor events.
// Delivery is at-least-once; the unique event id makes the whole path
// idempotent.
type Gateway struct {
	Repo          Repository
	Subscriptions SubscriptionSync
	Settler       PaymentSettler

	// Tolerance bounds the signed timestamp drift; Secrets selects the
	// environment and its verification secret per request. Both default to
	// the process configuration and are overridable in tests.
	Tolerance time.Duration
	Secrets   func() (environment, secret string)
	Now       func() time.Time
}

// NewGateway creates a gateway with the process-wide environment config.
func NewGateway(repo Repository, subs SubscriptionSync, settler PaymentSettler) *Gateway {
	return &Gateway{
		Repo:          repo,
		Subscriptions: subs,
		Settler:       settler,
		Tolerance:     DefaultSignatureTolerance,
		Secrets: func() (string, string) {
			return env.PaymentEnvironment(), env.WebhookSecret()
		},
		Now: time.Now,
	}
}

// Ingest handles one raw delivery: verify the signature against the active
// environment's secret, persist the event exactly once, then apply the
// classified intent. Duplicate event ids short-circuit without reprocessing.
func (g *Gateway) Ingest(ctx context.Context, rawBody []byte, signatureHeader string) (*IngestResult, error) {
	environment, secret := g.Secrets()
	if !VerifyWebhookSignature(rawBody, signatureHeader, secret, g.Tolerance, g.Now()) {
		return nil, ErrInvalidSignature
	}

	intent, err := Classify(rawBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	eventID := intent.EventID
	if eventID == "" {
		sum := sha256.Sum256(rawBody)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentEvent{
		EventID:     eventID,
		EventType:   intent.EventType,
		Environment: environment,
		PayloadJSON: string(rawBody),
		Email:       intent.Metadata.Email,
	}
	event.CorrelatedUserID = intent.Metadata.UserID
	event.CorrelatedPlanID = intent.Metadata.PlanID
	event.CorrelatedProductID = intent.Metadata.ProductID
	if intent.Subscription != nil {
		event.CancellationReason = intent.Subscription.CancellationReason
	}

	created, stored, err := g.Repo.CreateEventIfNotExists(event)
	if err != nil {
		return nil, err
	}
	if !created {
		if stored.Processed {
			return &IngestResult{EventID: eventID, Status: IngestDuplicate, Intent: intent.Kind}, nil
		}
		// An earlier delivery stored the event but its mutation failed.
		// The dispatch path is idempotent end-to-end, so the redelivery
		// replays it instead of dead-ending on the duplicate id.
		result := &IngestResult{EventID: eventID, Status: IngestDuplicate, Intent: intent.Kind}
		return result, g.process(ctx, intent, environment, stored.ID)
	}

	result := &IngestResult{EventID: eventID, Status: IngestAccepted, Intent: intent.Kind}
	return result, g.process(ctx, intent, environment, stored.ID)
}

// process applies the classified intent and records the outcome on the event
// row. A dispatch failure leaves the event unprocessed with the error
// captured, so the next delivery retries it.
func (g *Gateway) process(ctx context.Context, intent *Intent, environment string, eventRowID uint) error {
	if dispatchErr := g.dispatch(ctx, intent, environment); dispatchErr != nil {
		if markErr := g.Repo.MarkEventProcessed(eventRowID, dispatchErr.Error()); markErr != nil {
			log.Printf("webhook: failed to record processing error for event %s: %v", intent.EventID, markErr)
		}
		return dispatchErr
	}
	return g.Repo.MarkEventProcessed(eventRowID, "")
}

func (g *Gateway) dispatch(ctx context.Context, intent *Intent, environment string) error {
	switch intent.Kind {
	case IntentSubscriptionCreated:
		return g.Subscriptions.ApplyCreated(ctx, intent)
	case IntentSubscriptionUpdated:
		return g.Subscriptions.ApplyUpdated(ctx, intent)
	case IntentSubscriptionCanceled:
		return g.Subscriptions.ApplyCanceled(ctx, intent)
	case IntentInvoicePaid:
		return g.Settler.RecordPaidInvoice(ctx, intent, environment)
	case IntentInvoicePaymentFailed:
		log.Printf("webhook: payment failed for event %s (subscription %s)", intent.EventID, failedSubscriptionID(intent))
		return nil
	case IntentCheckoutCompleted:
		if intent.Metadata.UserID == nil || intent.Metadata.PlanID == nil {
			// Known quirk: checkout sessions started outside the app carry no
			// correlation metadata. The follow-up subscription event does.
			log.Printf("webhook: checkout event %s missing correlation metadata, skipping", intent.EventID)
		}
		return nil
	case IntentPaymentMethodAttached:
		return nil
	default:
		log.Printf("webhook: unhandled event type %q (event %s)", intent.EventType, intent.EventID)
		return nil
	}
}

func failedSubscriptionID(intent *Intent) string {
	if intent.Invoice == nil {
		return ""
	}
	return intent.Invoice.SubscriptionExternalID
}
