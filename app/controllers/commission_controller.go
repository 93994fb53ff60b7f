package controllers

import (
	"strconv"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"github.com/afiliapay/AfiliaPay/internal/pkg/database"
	"github.com/afiliapay/AfiliaPay/internal/pkg/statistics"
	"github.com/gofiber/fiber/v2"
)

type commissionView struct {
	models.Commission
	EffectiveStatus string `json:"effective_status"`
}

// HandleCommissionList lists an affiliate's commissions. The effective status
// is derived per row so matured pendings read as available without a stored
// transition.
func HandleCommissionList(c *fiber.Ctx) error {
	affiliateID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || affiliateID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_affiliate_id"})
	}
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var commissions []models.Commission
	if err := database.GetDB().
		Where("affiliate_id = ?", affiliateID).
		Order("payment_date DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&commissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "commission_list_failed"})
	}

	now := time.Now()
	statusFilter := c.Query("status")
	views := make([]commissionView, 0, len(commissions))
	for i := range commissions {
		effective := commissions[i].EffectiveStatus(now)
		if statusFilter != "" && effective != statusFilter {
			continue
		}
		views = append(views, commissionView{Commission: commissions[i], EffectiveStatus: effective})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"commissions": views})
}

// HandleCommissionBalance sums an affiliate's commissions per effective
// status. Reserved means locked to an open withdrawal.
func HandleCommissionBalance(c *fiber.Ctx) error {
	affiliateID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || affiliateID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_affiliate_id"})
	}

	var commissions []models.Commission
	if err := database.GetDB().
		Where("affiliate_id = ?", affiliateID).
		Find(&commissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "balance_lookup_failed"})
	}

	now := time.Now()
	var pending, available, reserved, withdrawn int64
	for i := range commissions {
		cm := &commissions[i]
		if cm.WithdrawalID != nil && cm.Status != models.CommissionStatusWithdrawn {
			reserved += cm.AmountCents
			continue
		}
		switch cm.EffectiveStatus(now) {
		case models.CommissionStatusPending:
			pending += cm.AmountCents
		case models.CommissionStatusAvailable:
			available += cm.AmountCents
		case models.CommissionStatusWithdrawn:
			withdrawn += cm.AmountCents
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"affiliate_id":    affiliateID,
		"pending_cents":   pending,
		"available_cents": available,
		"reserved_cents":  reserved,
		"withdrawn_cents": withdrawn,
	})
}

// HandleAdminStatistics serves the cached pipeline aggregates.
func HandleAdminStatistics(c *fiber.Ctx) error {
	data := statistics.GetStatistics()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"total_payments":           data.TotalPayments,
		"total_commissions":        data.TotalCommissions,
		"pending_commission_cents": data.PendingCommissionCents,
		"pending_withdrawals":      data.PendingWithdrawals,
		"errored_payments":         data.ErroredPayments,
	})
}
