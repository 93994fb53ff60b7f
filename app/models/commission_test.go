package models

import (
	"testing"
	"time"
)

func TestCommissionEffectiveStatus(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	pending := Commission{Status: CommissionStatusPending, AvailableDate: now.Add(24 * time.Hour)}
	if got := pending.EffectiveStatus(now); got != CommissionStatusPending {
		t.Fatalf("expected pending before maturation, got %q", got)
	}

	matured := Commission{Status: CommissionStatusPending, AvailableDate: now.Add(-time.Minute)}
	if got := matured.EffectiveStatus(now); got != CommissionStatusAvailable {
		t.Fatalf("expected available after maturation, got %q", got)
	}

	exact := Commission{Status: CommissionStatusPending, AvailableDate: now}
	if got := exact.EffectiveStatus(now); got != CommissionStatusAvailable {
		t.Fatalf("expected available at exact maturation time, got %q", got)
	}

	withdrawn := Commission{Status: CommissionStatusWithdrawn, AvailableDate: now.Add(-time.Hour)}
	if got := withdrawn.EffectiveStatus(now); got != CommissionStatusWithdrawn {
		t.Fatalf("expected withdrawn to stay terminal, got %q", got)
	}

	cancelled := Commission{Status: CommissionStatusCancelled, AvailableDate: now.Add(-time.Hour)}
	if got := cancelled.EffectiveStatus(now); got != CommissionStatusCancelled {
		t.Fatalf("expected cancelled to stay terminal, got %q", got)
	}
}

func TestCommissionIsAvailable(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	wid := uint(5)

	free := Commission{Status: CommissionStatusPending, AvailableDate: now.Add(-time.Hour)}
	if !free.IsAvailable(now) {
		t.Fatalf("expected matured unreserved commission to be available")
	}

	reserved := free
	reserved.WithdrawalID = &wid
	if reserved.IsAvailable(now) {
		t.Fatalf("expected reserved commission to be unavailable")
	}
}

func TestWithdrawalPaymentProofRoundTrip(t *testing.T) {
	w := Withdrawal{}
	if urls := w.PaymentProofURLs(); urls != nil {
		t.Fatalf("expected no proofs on empty withdrawal, got %v", urls)
	}

	want := []string{"https://proofs/a.pdf", "https://proofs/b.png"}
	if err := w.SetPaymentProofURLs(want); err != nil {
		t.Fatalf("SetPaymentProofURLs returned error: %v", err)
	}
	got := w.PaymentProofURLs()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected proofs: %v", got)
	}

	if err := w.SetPaymentProofURLs(nil); err != nil {
		t.Fatalf("SetPaymentProofURLs(nil) returned error: %v", err)
	}
	if w.PaymentProofsJSON != "" {
		t.Fatalf("expected cleared proofs, got %q", w.PaymentProofsJSON)
	}
}
