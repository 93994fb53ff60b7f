package router

import (
	"github.com/afiliapay/AfiliaPay/app/controllers"
	"github.com/afiliapay/AfiliaPay/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max: 120,
		// Webhook retries must never be rate limited into a retry storm.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/webhooks/payment"
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Processor deliveries
	api.Post("/webhooks/payment", controllers.HandlePaymentWebhook)
	api.Options("/webhooks/payment", controllers.HandlePaymentWebhook)

	// Affiliate read surface
	api.Get("/affiliates/:id/commissions", controllers.HandleCommissionList)
	api.Get("/affiliates/:id/balance", controllers.HandleCommissionBalance)
	api.Get("/withdrawals", controllers.HandleWithdrawalList)
	api.Get("/withdrawals/:id", controllers.HandleWithdrawalShow)
	api.Post("/withdrawals", controllers.HandleWithdrawalRequest)

	// Admin surface, key protected
	admin := api.Group("/admin", middleware.AdminKeyMiddleware())
	admin.Post("/commissions/reprocess", controllers.HandleCommissionReprocess)
	admin.Post("/withdrawals/:id/approve", controllers.HandleWithdrawalApprove)
	admin.Post("/withdrawals/:id/pay", controllers.HandleWithdrawalPay)
	admin.Post("/withdrawals/:id/reject", controllers.HandleWithdrawalReject)
	admin.Post("/withdrawals/:id/revert", controllers.HandleWithdrawalRevert)
	admin.Get("/statistics", controllers.HandleAdminStatistics)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
