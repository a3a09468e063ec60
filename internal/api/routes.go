package api

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func InitializeRoutes(app *fiber.App, svc Service, store Pinger, log *zap.Logger) {
	app.Use(RequestLogger(log))

	app.Get("/", IndexHandler())
	app.Get("/api/health", HealthHandler(store))

	app.Post("/api/create_account", CreateAccountHandler(svc, log))
	app.Post("/api/deposit", DepositHandler(svc, log))
	app.Post("/api/withdraw", WithdrawHandler(svc, log))
	app.Post("/api/transfer", TransferHandler(svc, log))

	app.Get("/api/balance/:acc_no", BalanceHandler(svc, log))
	app.Get("/api/transactions/:acc_no", TransactionsHandler(svc, log))
	app.Get("/api/accounts", ListAccountsHandler(svc, log))
	app.Get("/api/accounts/search", SearchAccountsHandler(svc, log))
	app.Get("/api/summary", SummaryHandler(svc, log))
}

// RequestLogger tags every request with an id and writes one access-log line.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		requestID := uuid.NewString()
		c.Set("X-Request-Id", requestID)

		start := time.Now()
		err := c.Next()

		log.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("elapsed", time.Since(start)))
		return err
	}
}
