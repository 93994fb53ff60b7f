package settlement

// ReprocessOutcome classifies what reconciliation (or a settlement attempt)
// did with one payment. Exactly one outcome applies per item.
type ReprocessOutcome string

const (
	// OutcomeAlreadyProcessed: the processed flag was already set, usually a
	// race with the live webhook path.
	OutcomeAlreadyProcessed ReprocessOutcome = "already_processed"
	// OutcomeCommissionsFound: commission rows exist even though the flag was
	// false; healed by setting the flag instead of inserting duplicates.
	OutcomeCommissionsFound ReprocessOutcome = "commissions_found"
	// OutcomeReprocessed: no prior commissions existed and the engine created
	// them now.
	OutcomeReprocessed ReprocessOutcome = "reprocessed"
	// OutcomeError: settlement raised; the message is captured verbatim on
	// the payment and the flag stays false so a later retry remains possible.
	OutcomeError ReprocessOutcome = "error"
)

// ReprocessItem is the per-payment result of a reconciliation pass.
type ReprocessItem struct {
	PaymentID          uint             `json:"payment_id"`
	ExternalPaymentID  string           `json:"external_payment_id"`
	Outcome            ReprocessOutcome `json:"outcome"`
	CommissionsCreated int              `json:"commissions_created"`
	Error              string           `json:"error,omitempty"`
}

// ReprocessReport is the full outcome list plus aggregate counts.
type ReprocessReport struct {
	Items            []ReprocessItem `json:"items"`
	Total            int             `json:"total"`
	AlreadyProcessed int             `json:"already_processed"`
	CommissionsFound int             `json:"commissions_found"`
	Reprocessed      int             `json:"reprocessed"`
	Errors           int             `json:"errors"`
}

func (r *ReprocessReport) Add(item ReprocessItem) {
	r.Items = append(r.Items, item)
	r.Total++
	switch item.Outcome {
	case OutcomeAlreadyProcessed:
		r.AlreadyProcessed++
	case OutcomeCommissionsFound:
		r.CommissionsFound++
	case OutcomeReprocessed:
		r.Reprocessed++
	case OutcomeError:
		r.Errors++
	}
}

// classifyOutcome decides the reconciliation outcome from the current row
// state alone. Keeping it a pure function makes the four-way classification
// testable independently of any I/O.
func classifyOutcome(commissionProcessed bool, existingCommissions int64) ReprocessOutcome {
	if commissionProcessed {
		return OutcomeAlreadyProcessed
	}
	if existingCommissions > 0 {
		return OutcomeCommissionsFound
	}
	return OutcomeReprocessed
}
