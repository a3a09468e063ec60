// Package api is the thin HTTP adapter over the ledger engine: it parses and
// validates request bodies, maps engine errors to status codes, and shapes
// the JSON envelope. No business rule lives here.
package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankledger/internal/helper"
	"bankledger/internal/ledger"
)

// Service is what the transport needs from the ledger engine.
type Service interface {
	OpenAccount(ctx context.Context, name string, initialDeposit decimal.Decimal) (*ledger.OpenResult, error)
	Deposit(ctx context.Context, accNo int64, amount decimal.Decimal) (*ledger.MutationResult, error)
	Withdraw(ctx context.Context, accNo int64, amount decimal.Decimal) (*ledger.MutationResult, error)
	Transfer(ctx context.Context, fromAcc, toAcc int64, amount decimal.Decimal) (*ledger.TransferResult, error)
	ViewBalance(ctx context.Context, accNo int64) (*ledger.Account, error)
	History(ctx context.Context, accNo int64, limit int) (*ledger.HistoryResult, error)
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	SearchAccounts(ctx context.Context, fragment string) ([]ledger.Account, error)
	Summary(ctx context.Context) (*ledger.SummaryResult, error)
}

// Pinger is the health check's view of the storage gateway.
type Pinger interface {
	Ping(ctx context.Context) error
}

func fail(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": message})
}

// renderError maps the engine's error taxonomy onto transport status codes.
func renderError(c fiber.Ctx, log *zap.Logger, err error) error {
	var vErr *ledger.ValidationError
	var fundsErr *ledger.InsufficientFundsError

	switch {
	case errors.As(err, &vErr):
		return fail(c, fiber.StatusBadRequest, vErr.Reason)
	case errors.As(err, &fundsErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":          false,
			"error":            "Insufficient balance",
			"current_balance":  fundsErr.CurrentBalance,
			"requested_amount": fundsErr.RequestedAmount,
		})
	case errors.Is(err, ledger.ErrAccountNotFound):
		return fail(c, fiber.StatusNotFound, "Account not found")
	default:
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Internal server error")
	}
}

func accountParam(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("acc_no"), 10, 64)
}

func CreateAccountHandler(svc Service, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req CreateAccountSchema
		if err := c.Bind().Body(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := helper.ValidateInput(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}

		res, err := svc.OpenAccount(c.Context(), req.Name, *req.Balance)
		if err != nil {
			return renderError(c, log, err)
		}

		return c.JSON(fiber.Map{
			"success":        true,
			"message":        "Account created successfully!",
			"account_number": res.AccountNumber,
			"name":           res.Name,
			"balance":        res.Balance,
		})
	}
}

func DepositHandler(svc Service, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req DepositSchema
		if err := c.Bind().Body(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := helper.ValidateInput(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}

		res, err := svc.Deposit(c.Context(), req.AccountNumber, *req.Amount)
		if err != nil {
			return renderError(c, log, err)
		}

		return c.JSON(fiber.Map{
			"success":        true,
			"message":        "Successfully deposited " + res.Amount.StringFixed(2),
			"account_number": res.AccountNumber,
			"amount":         res.Amount,
			"new_balance":    res.NewBalance,
		})
	}
}

func WithdrawHandler(svc Service, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req WithdrawSchema
		if err := c.Bind().Body(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := helper.ValidateInput(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}

		res, err := svc.Withdraw(c.Context(), req.AccountNumber, *req.Amount)
		if err != nil {
			return renderError(c, log, err)
		}

		return c.JSON(fiber.Map{
			"success":        true,
			"message":        "Successfully withdrew " + res.Amount.StringFixed(2),
			"account_number": res.AccountNumber,
			"amount":         res.Amount,
			"new_balance":    res.NewBalance,
		})
	}
}

func TransferHandler(svc Service, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req TransferSchema
		if err := c.Bind().Body(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := helper.ValidateInput(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}

		res, err := svc.Transfer(c.Context(), req.FromAccount, req.ToAccount, *req.Amount)
		if err != nil {
			return renderError(c, log, err)
		}

		return c.JSON(fiber.Map{
			"success":      true,
			"message":      "Transfer successful!",
			"from_account": res.FromAccount,
			"to_account":   res.ToAccount,
			"amount":       res.Amount,
		})
	}
}

func BalanceHandler(svc Service, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		accNo, err := accountParam(c)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid account number")
		}

		acc, err := svc.ViewBalance(c.Context(), accNo)
		if err != nil {
			return renderError(c, log, err)
		}

		return c.JSON(fiber.Map{
			"success":        true,
			"account_number": acc.AccountNumber,
			"name":           acc.Name,
			"balance":        acc.Balance,
			"created_at":     acc.CreatedAt,
		})
	}
}

func TransactionsHandler(svc Service, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		accNo, err := accountParam(c)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid account number")
		}
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(ledger.DefaultHistoryLimit)))
		if err != nil || limit <= 0 {
			return fail(c, fiber.StatusBadRequest, "Invalid limit")
		}

		res, err := svc.History(c.Context(), accNo, limit)
		if err != nil {
			return renderError(c, log, err)
		}

		return c.JSON(fiber.Map{
			"success":        true,
			"account_number": res.AccountNumber,
			"name":           res.Name,
			"transactions":   res.Transactions,
			"count":          res.Count,
			"total_count":    res.TotalCount,
		})
	}
}

func ListAccountsHandler(svc Service, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		accounts, err := svc.ListAccounts(c.Context())
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"success":  true,
			"accounts": accounts,
			"count":    len(accounts),
		})
	}
}

func SearchAccountsHandler(svc Service, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		fragment := c.Query("name")
		if fragment == "" {
			return fail(c, fiber.StatusBadRequest, "Query parameter 'name' is required")
		}

		accounts, err := svc.SearchAccounts(c.Context(), fragment)
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"success":  true,
			"accounts": accounts,
			"count":    len(accounts),
		})
	}
}

func SummaryHandler(svc Service, log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		res, err := svc.Summary(c.Context())
		if err != nil {
			return renderError(c, log, err)
		}
		return c.JSON(fiber.Map{
			"success":            true,
			"total_accounts":     res.TotalAccounts,
			"total_balance":      res.TotalBalance,
			"total_transactions": res.TotalTransactions,
			"recent_accounts":    res.RecentAccounts,
		})
	}
}

func HealthHandler(store Pinger) fiber.Handler {
	return func(c fiber.Ctx) error {
		if err := store.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"database": "connected",
		})
	}
}

func IndexHandler() fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Banking Ledger API",
			"status":  "running",
			"endpoints": fiber.Map{
				"health":         "/api/health (GET)",
				"create_account": "/api/create_account (POST)",
				"deposit":        "/api/deposit (POST)",
				"withdraw":       "/api/withdraw (POST)",
				"transfer":       "/api/transfer (POST)",
				"balance":        "/api/balance/:acc_no (GET)",
				"transactions":   "/api/transactions/:acc_no (GET)",
				"accounts":       "/api/accounts (GET)",
				"search":         "/api/accounts/search?name= (GET)",
				"summary":        "/api/summary (GET)",
			},
		})
	}
}
