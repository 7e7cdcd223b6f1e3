package transport

import (
	"github.com/finagent/finance-agent/controllers"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/labstack/echo/v4"
)

func RegisterEndpoints(svc *service.FinanceService, e *echo.Echo, secured *echo.Group, strictRateLimitMiddleware echo.MiddlewareFunc, adminMw echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	e.GET("/health", controllers.NewHealthController(svc.DB).Check)

	e.POST(service.WebhookPath, controllers.NewTelegramWebhookController(svc, svc.Config.Telegram.WebhookSecret).Webhook, CreateChatIDMiddleware(), logMw)

	// admin token required, the middleware rejects everything when none is configured
	e.POST("/api/v1/admin/tokens", controllers.NewTokenController(svc, svc.Config.JWTSecret, svc.Config.JWTAccessTokenExpiry).IssueToken, strictRateLimitMiddleware, adminMw, logMw)

	transactionCtrl := controllers.NewTransactionController(svc)
	secured.GET("/api/v1/transactions", transactionCtrl.ListTransactions)
	secured.DELETE("/api/v1/transactions/:id", transactionCtrl.DeleteTransaction)
	secured.GET("/api/v1/summary", transactionCtrl.Summary)
}
