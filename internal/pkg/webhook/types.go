package webhook

import "time"

// IntentKind is the closed set of domain intents a raw processor event can
// classify into. Anything outside the set maps to IntentUnhandled, which is
// persisted for audit but causes no domain mutation.
type IntentKind string

const (
	IntentSubscriptionCreated   IntentKind = "subscription_created"
	IntentSubscriptionUpdated   IntentKind = "subscription_updated"
	IntentSubscriptionCanceled  IntentKind = "subscription_canceled"
	IntentInvoicePaid           IntentKind = "invoice_paid"
	IntentInvoicePaymentFailed  IntentKind = "invoice_payment_failed"
	IntentPaymentMethodAttached IntentKind = "payment_method_attached"
	IntentCheckoutCompleted     IntentKind = "checkout_completed"
	IntentUnhandled             IntentKind = "unhandled"
)

// Metadata is the correlation metadata carried by processor payloads. Which
// nesting level it lives at depends on the event family; see metadataProbes.
type Metadata struct {
	UserID    *uint
	PlanID    *uint
	ProductID string
	Email     string
}

// SubscriptionData is the normalized subscription snapshot extracted from
// subscription-family events.
type SubscriptionData struct {
	ExternalID           string
	PriceID              string
	Status               string
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	TrialEnd             *time.Time
	CancelAt             *time.Time
	CanceledAt           *time.Time
	CancelAtPeriodEnd    *bool
	CancellationReason   string
	CancellationComment  string
	CancellationFeedback string
}

// InvoiceData is the normalized payment snapshot extracted from
// invoice-family events.
type InvoiceData struct {
	ExternalPaymentID      string
	SubscriptionExternalID string
	AmountCents            int64
	Currency               string
	BillingReason          string
	PaidAt                 time.Time
}

// Intent is the classification result for one raw event.
type Intent struct {
	Kind         IntentKind
	EventID      string
	EventType    string
	Metadata     Metadata
	Subscription *SubscriptionData
	Invoice      *InvoiceData
}

// IngestStatus is the gateway-level outcome for one delivery.
type IngestStatus string

const (
	IngestAccepted  IngestStatus = "accepted"
	IngestDuplicate IngestStatus = "duplicate"
	IngestIgnored   IngestStatus = "ignored"
)

// IngestResult reports what the gateway did with a delivery.
type IngestResult struct {
	EventID string
	Status  IngestStatus
	Intent  IntentKind
}
