package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/afiliapay/AfiliaPay/internal/pkg/database"
	"github.com/afiliapay/AfiliaPay/internal/pkg/withdrawal"
	"github.com/gofiber/fiber/v2"
)

type withdrawalRequestBody struct {
	AffiliateID   uint   `json:"affiliate_id"`
	CommissionIDs []uint `json:"commission_ids"`
	PixKey        string `json:"pix_key"`
}

type withdrawalApproveBody struct {
	ApprovedBy string `json:"approved_by"`
}

type withdrawalPayBody struct {
	PaymentProofURLs []string `json:"payment_proof_urls"`
}

type withdrawalRejectBody struct {
	Reason string `json:"reason"`
}

// HandleWithdrawalRequest creates a pending withdrawal over a set of
// available commissions, reserving them atomically.
func HandleWithdrawalRequest(c *fiber.Ctx) error {
	var body withdrawalRequestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}

	svc := withdrawal.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	w, err := svc.Request(ctx, body.AffiliateID, body.CommissionIDs, body.PixKey)
	if err != nil {
		return withdrawalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(w)
}

// HandleWithdrawalApprove moves a pending withdrawal to approved.
func HandleWithdrawalApprove(c *fiber.Ctx) error {
	id, err := withdrawalID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_withdrawal_id"})
	}
	var body withdrawalApproveBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}

	svc := withdrawal.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	w, err := svc.Approve(ctx, id, body.ApprovedBy)
	if err != nil {
		return withdrawalError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(w)
}

// HandleWithdrawalPay marks an approved withdrawal as paid. At least one
// proof-of-payment URL is required; the reserved commissions become withdrawn.
func HandleWithdrawalPay(c *fiber.Ctx) error {
	id, err := withdrawalID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_withdrawal_id"})
	}
	var body withdrawalPayBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}

	svc := withdrawal.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	w, err := svc.MarkPaid(ctx, id, body.PaymentProofURLs)
	if err != nil {
		return withdrawalError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(w)
}

// HandleWithdrawalReject rejects a pending withdrawal and releases its
// reserved commissions back to the affiliate's balance.
func HandleWithdrawalReject(c *fiber.Ctx) error {
	id, err := withdrawalID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_withdrawal_id"})
	}
	var body withdrawalRejectBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}

	svc := withdrawal.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	w, err := svc.Reject(ctx, id, body.Reason)
	if err != nil {
		return withdrawalError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(w)
}

// HandleWithdrawalRevert moves a paid withdrawal back to approved, clearing
// the payment record but keeping the commissions reserved.
func HandleWithdrawalRevert(c *fiber.Ctx) error {
	id, err := withdrawalID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_withdrawal_id"})
	}

	svc := withdrawal.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	w, err := svc.RevertPaid(ctx, id)
	if err != nil {
		return withdrawalError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(w)
}

// HandleWithdrawalList lists withdrawals, optionally filtered by affiliate.
func HandleWithdrawalList(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	repo := withdrawal.NewRepository(database.GetDB())
	if raw := c.Query("affiliate_id"); raw != "" {
		affiliateID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_affiliate_id"})
		}
		list, err := repo.ListByAffiliate(uint(affiliateID), offset, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "withdrawal_list_failed"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"withdrawals": list})
	}

	list, err := repo.List(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "withdrawal_list_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"withdrawals": list})
}

// HandleWithdrawalShow returns one withdrawal with its reserved commissions.
func HandleWithdrawalShow(c *fiber.Ctx) error {
	id, err := withdrawalID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_withdrawal_id"})
	}

	repo := withdrawal.NewRepository(database.GetDB())
	w, err := repo.GetByID(id)
	if err != nil {
		return withdrawalError(c, withdrawal.ErrNotFound)
	}
	commissions, err := repo.ListReservedCommissions(w.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "withdrawal_lookup_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"withdrawal":  w,
		"commissions": commissions,
	})
}

func withdrawalID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func withdrawalError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, withdrawal.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "withdrawal_not_found"})
	case errors.Is(err, withdrawal.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invalid_transition"})
	case errors.Is(err, withdrawal.ErrNoCommissions),
		errors.Is(err, withdrawal.ErrPixKeyRequired),
		errors.Is(err, withdrawal.ErrProofRequired),
		errors.Is(err, withdrawal.ErrReasonRequired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, withdrawal.ErrCommissionUnavailable),
		errors.Is(err, withdrawal.ErrReservationConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "commission_not_available"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "withdrawal_operation_failed"})
	}
}
