package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type rawEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type rawSubscription struct {
	ID                  string `json:"id"`
	Status              string `json:"status"`
	CurrentPeriodStart  int64  `json:"current_period_start"`
	CurrentPeriodEnd    int64  `json:"current_period_end"`
	TrialEnd            int64  `json:"trial_end"`
	CancelAt            int64  `json:"cancel_at"`
	CanceledAt          int64  `json:"canceled_at"`
	CancelAtPeriodEnd   *bool  `json:"cancel_at_period_end"`
	CancellationDetails struct {
		Reason   string `json:"reason"`
		Comment  string `json:"comment"`
		Feedback string `json:"feedback"`
	} `json:"cancellation_details"`
	Items struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type rawInvoice struct {
	ID                string `json:"id"`
	AmountPaid        int64  `json:"amount_paid"`
	Currency          string `json:"currency"`
	BillingReason     string `json:"billing_reason"`
	Subscription      string `json:"subscription"`
	Created           int64  `json:"created"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

// metadataProbe names one known location for correlation metadata inside the
// event object. Payload shapes changed over time, so extraction is an ordered
// list of probes tried in sequence rather than a single fixed path: the first
// probe that yields any metadata wins.
type metadataProbe struct {
	name string
	path []string
}

var metadataProbes = []metadataProbe{
	{name: "object_root", path: []string{"metadata"}},
	{name: "subscription_details", path: []string{"subscription_details", "metadata"}},
	{name: "legacy_parent", path: []string{"parent", "subscription_details", "metadata"}},
}

// Classify maps a raw processor event to a domain intent and extracts the
// correlation metadata and family-specific snapshot. A parse failure of the
// envelope itself is an error; an unknown event type is not, it classifies
// as IntentUnhandled.
func Classify(payload []byte) (*Intent, error) {
	var envelope rawEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}

	intent := &Intent{
		Kind:      intentKindForType(envelope.Type),
		EventID:   strings.TrimSpace(envelope.ID),
		EventType: strings.TrimSpace(envelope.Type),
	}

	if len(envelope.Data.Object) > 0 {
		intent.Metadata = extractMetadata(envelope.Data.Object)
	}

	switch intent.Kind {
	case IntentSubscriptionCreated, IntentSubscriptionUpdated, IntentSubscriptionCanceled:
		sub, err := parseSubscriptionObject(envelope.Data.Object)
		if err != nil {
			return nil, err
		}
		intent.Subscription = sub
	case IntentInvoicePaid, IntentInvoicePaymentFailed:
		inv, err := parseInvoiceObject(envelope.Data.Object)
		if err != nil {
			return nil, err
		}
		intent.Invoice = inv
	}

	return intent, nil
}

func intentKindForType(eventType string) IntentKind {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "customer.subscription.created":
		return IntentSubscriptionCreated
	case "customer.subscription.updated":
		return IntentSubscriptionUpdated
	case "customer.subscription.deleted":
		return IntentSubscriptionCanceled
	case "invoice.paid", "invoice.payment_succeeded":
		return IntentInvoicePaid
	case "invoice.payment_failed":
		return IntentInvoicePaymentFailed
	case "payment_method.attached":
		return IntentPaymentMethodAttached
	case "checkout.session.completed":
		return IntentCheckoutCompleted
	default:
		return IntentUnhandled
	}
}

func extractMetadata(object json.RawMessage) Metadata {
	var tree map[string]interface{}
	if err := json.Unmarshal(object, &tree); err != nil {
		return Metadata{}
	}

	for _, probe := range metadataProbes {
		fields, ok := lookupMap(tree, probe.path)
		if !ok || len(fields) == 0 {
			continue
		}
		md := Metadata{
			UserID:    parseUintField(fields, "user_id"),
			PlanID:    parseUintField(fields, "plan_id"),
			ProductID: stringField(fields, "product_id"),
			Email:     stringField(fields, "email"),
		}
		if md.UserID != nil || md.PlanID != nil || md.ProductID != "" || md.Email != "" {
			return md
		}
	}
	return Metadata{}
}

func lookupMap(tree map[string]interface{}, path []string) (map[string]interface{}, bool) {
	current := tree
	for _, key := range path {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func stringField(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func parseUintField(fields map[string]interface{}, key string) *uint {
	raw := stringField(fields, key)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return nil
	}
	id := uint(parsed)
	return &id
}

func parseSubscriptionObject(object json.RawMessage) (*SubscriptionData, error) {
	var raw rawSubscription
	if err := json.Unmarshal(object, &raw); err != nil {
		return nil, fmt.Errorf("malformed subscription object: %w", err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, fmt.Errorf("subscription object missing id")
	}

	sub := &SubscriptionData{
		ExternalID:           strings.TrimSpace(raw.ID),
		Status:               strings.ToLower(strings.TrimSpace(raw.Status)),
		CurrentPeriodStart:   unixTime(raw.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(raw.CurrentPeriodEnd),
		TrialEnd:             unixTime(raw.TrialEnd),
		CancelAt:             unixTime(raw.CancelAt),
		CanceledAt:           unixTime(raw.CanceledAt),
		CancelAtPeriodEnd:    raw.CancelAtPeriodEnd,
		CancellationReason:   strings.TrimSpace(raw.CancellationDetails.Reason),
		CancellationComment:  strings.TrimSpace(raw.CancellationDetails.Comment),
		CancellationFeedback: strings.TrimSpace(raw.CancellationDetails.Feedback),
	}
	if len(raw.Items.Data) > 0 {
		sub.PriceID = strings.TrimSpace(raw.Items.Data[0].Price.ID)
	}
	return sub, nil
}

func parseInvoiceObject(object json.RawMessage) (*InvoiceData, error) {
	var raw rawInvoice
	if err := json.Unmarshal(object, &raw); err != nil {
		return nil, fmt.Errorf("malformed invoice object: %w", err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, fmt.Errorf("invoice object missing id")
	}

	paidAt := raw.StatusTransitions.PaidAt
	if paidAt == 0 {
		paidAt = raw.Created
	}
	inv := &InvoiceData{
		ExternalPaymentID:      strings.TrimSpace(raw.ID),
		SubscriptionExternalID: strings.TrimSpace(raw.Subscription),
		AmountCents:            raw.AmountPaid,
		Currency:               strings.ToLower(strings.TrimSpace(raw.Currency)),
		BillingReason:          strings.TrimSpace(raw.BillingReason),
	}
	if paidAt > 0 {
		inv.PaidAt = time.Unix(paidAt, 0).UTC()
	} else {
		inv.PaidAt = time.Now().UTC()
	}
	return inv, nil
}

func unixTime(v int64) *time.Time {
	if v <= 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
