package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func signPayload(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	secret := "whsec_test"
	now := time.Unix(1700000000, 0)

	valid := signPayload(payload, secret, now.Unix())
	if !VerifyWebhookSignature(payload, valid, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected valid signature to verify")
	}

	if VerifyWebhookSignature(payload, valid, "whsec_other", DefaultSignatureTolerance, now) {
		t.Fatalf("expected wrong secret to fail")
	}

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = 'X'
	if VerifyWebhookSignature(tampered, valid, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected tampered payload to fail")
	}
}

func TestVerifyWebhookSignature_TimestampDrift(t *testing.T) {
	payload := []byte(`{"id":"evt_2"}`)
	secret := "whsec_test"
	now := time.Unix(1700000000, 0)

	stale := signPayload(payload, secret, now.Add(-6*time.Minute).Unix())
	if VerifyWebhookSignature(payload, stale, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected stale timestamp to fail")
	}

	future := signPayload(payload, secret, now.Add(6*time.Minute).Unix())
	if VerifyWebhookSignature(payload, future, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected future timestamp to fail")
	}

	edge := signPayload(payload, secret, now.Add(-4*time.Minute).Unix())
	if !VerifyWebhookSignature(payload, edge, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected in-tolerance timestamp to verify")
	}
}

func TestVerifyWebhookSignature_MultipleSignatures(t *testing.T) {
	payload := []byte(`{"id":"evt_3"}`)
	secret := "whsec_test"
	now := time.Unix(1700000000, 0)
	ts := now.Unix()

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	good := hex.EncodeToString(mac.Sum(nil))

	// Secret rotation sends the old and new signature in the same header.
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "00deadbeef", good)
	if !VerifyWebhookSignature(payload, header, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected any matching v1 entry to verify")
	}
}

func TestVerifyWebhookSignature_MalformedHeaders(t *testing.T) {
	payload := []byte(`{"id":"evt_4"}`)
	secret := "whsec_test"
	now := time.Unix(1700000000, 0)

	for _, header := range []string{
		"",
		"v1=deadbeef",
		"t=notanumber,v1=deadbeef",
		fmt.Sprintf("t=%d", now.Unix()),
		"garbage",
	} {
		if VerifyWebhookSignature(payload, header, secret, DefaultSignatureTolerance, now) {
			t.Fatalf("expected header %q to fail verification", header)
		}
	}

	valid := signPayload(payload, secret, now.Unix())
	if VerifyWebhookSignature(payload, valid, "", DefaultSignatureTolerance, now) {
		t.Fatalf("expected empty secret to fail verification")
	}
}
