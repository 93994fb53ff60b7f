package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/afiliapay/AfiliaPay/internal/pkg/database"
	"github.com/afiliapay/AfiliaPay/internal/pkg/metrics/counter"
	"github.com/afiliapay/AfiliaPay/internal/pkg/settlement"
	"github.com/afiliapay/AfiliaPay/internal/pkg/subscription"
	"github.com/afiliapay/AfiliaPay/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2"
)

const signatureHeaderName = "Processor-Signature"

// HandlePaymentWebhook receives processor deliveries. The processor retries on
// anything but 2xx, so duplicates answer 200 and only signature or envelope
// problems answer 400.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodOptions {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Content-Type, "+signatureHeaderName)
		return c.SendStatus(fiber.StatusNoContent)
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(signatureHeaderName))

	db := database.GetDB()
	settler := settlement.NewServiceFromDB(db)
	settler.OnCommissionsCreated = func(n int) {
		if err := counter.AddCommissionsCreated(n); err != nil {
			log.Printf("webhook: failed to count created commissions: %v", err)
		}
	}
	gateway := webhook.NewGateway(
		webhook.NewRepository(db),
		subscription.NewServiceFromDB(db),
		settler,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := counter.AddEventReceived(); err != nil {
		log.Printf("webhook: failed to count received event: %v", err)
	}

	result, err := gateway.Ingest(ctx, rawBody, signature)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		if errors.Is(err, webhook.ErrMalformedPayload) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	if result.Status == webhook.IngestDuplicate {
		if err := counter.AddEventDuplicate(); err != nil {
			log.Printf("webhook: failed to count duplicate event: %v", err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
