package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/afiliapay/AfiliaPay/internal/pkg/database"
	"github.com/afiliapay/AfiliaPay/internal/pkg/settlement"
	"github.com/gofiber/fiber/v2"
)

type reprocessRequest struct {
	ProcessAllPending bool   `json:"process_all_pending"`
	PaymentIDs        []uint `json:"payment_ids"`
	Limit             int    `json:"limit"`
}

// HandleCommissionReprocess runs the reconciliation pass over stuck payments.
// Either all unprocessed payments (bounded by limit) or an explicit id list;
// per-payment failures are reported in the items, never abort the batch.
func HandleCommissionReprocess(c *fiber.Ctx) error {
	var req reprocessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if !req.ProcessAllPending && len(req.PaymentIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "nothing_to_reprocess"})
	}

	svc := settlement.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if req.ProcessAllPending {
		report, err := svc.ReprocessAll(ctx, req.Limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reprocess_failed"})
		}
		return c.Status(fiber.StatusOK).JSON(report)
	}

	report := &settlement.ReprocessReport{}
	for _, id := range req.PaymentIDs {
		item, err := svc.ReprocessOne(ctx, id)
		if err != nil {
			if errors.Is(err, settlement.ErrPaymentNotFound) {
				report.Add(settlement.ReprocessItem{
					PaymentID: id,
					Outcome:   settlement.OutcomeError,
					Error:     "payment not found",
				})
				continue
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reprocess_failed"})
		}
		report.Add(*item)
	}
	return c.Status(fiber.StatusOK).JSON(report)
}
