package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankledger/internal/storage"
)

// UnitRunner scopes a sequence of storage operations to a single
// commit-or-rollback unit. *storage.Gateway implements it.
type UnitRunner interface {
	WithinUnit(ctx context.Context, fn func(q storage.Querier) error) error
	Reader() storage.Querier
}

// Engine orchestrates every balance-affecting operation. It holds no state
// between calls: each operation re-reads current rows inside its own unit of
// work, and the conditional balance adjustment in the store is what keeps
// concurrent callers from overdrawing an account.
type Engine struct {
	units      UnitRunner
	accounts   AccountStore
	txlog      TransactionStore
	minOpening decimal.Decimal
	log        *zap.Logger
}

func NewEngine(units UnitRunner, accounts AccountStore, txlog TransactionStore, minOpening decimal.Decimal, log *zap.Logger) *Engine {
	return &Engine{
		units:      units,
		accounts:   accounts,
		txlog:      txlog,
		minOpening: minOpening,
		log:        log,
	}
}

type OpenResult struct {
	AccountNumber int64           `json:"account_number"`
	Name          string          `json:"name"`
	Balance       decimal.Decimal `json:"balance"`
}

type MutationResult struct {
	AccountNumber int64           `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

type TransferResult struct {
	FromAccount int64           `json:"from_account"`
	ToAccount   int64           `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
}

type HistoryResult struct {
	AccountNumber int64               `json:"account_number"`
	Name          string              `json:"name"`
	Transactions  []TransactionRecord `json:"transactions"`
	Count         int                 `json:"count"`
	TotalCount    int64               `json:"total_count"`
}

type SummaryResult struct {
	TotalAccounts     int64           `json:"total_accounts"`
	TotalBalance      decimal.Decimal `json:"total_balance"`
	TotalTransactions int64           `json:"total_transactions"`
	RecentAccounts    int64           `json:"recent_accounts"`
}

// OpenAccount is the public creation path: it enforces the configured
// minimum opening deposit. CreateAccount below does not.
func (e *Engine) OpenAccount(ctx context.Context, name string, initialDeposit decimal.Decimal) (*OpenResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, validationf("name is required")
	}
	if err := checkScale(initialDeposit); err != nil {
		return nil, err
	}
	if initialDeposit.LessThan(e.minOpening) {
		return nil, validationf("minimum opening deposit is %s", e.minOpening.StringFixed(2))
	}
	return e.createAccount(ctx, name, initialDeposit)
}

// CreateAccount is the administrative creation path used by the CLI: any
// non-negative starting balance is accepted.
func (e *Engine) CreateAccount(ctx context.Context, name string, balance decimal.Decimal) (*OpenResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, validationf("name is required")
	}
	if err := checkScale(balance); err != nil {
		return nil, err
	}
	if balance.IsNegative() {
		return nil, validationf("balance cannot be negative")
	}
	return e.createAccount(ctx, name, balance)
}

func (e *Engine) createAccount(ctx context.Context, name string, balance decimal.Decimal) (*OpenResult, error) {
	var accNo int64
	err := e.units.WithinUnit(ctx, func(q storage.Querier) error {
		var err error
		if accNo, err = e.accounts.Create(ctx, q, name, balance); err != nil {
			return err
		}
		if balance.IsPositive() {
			return e.txlog.Append(ctx, q, accNo, KindInitialDeposit, balance)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("account opened",
		zap.Int64("account_number", accNo),
		zap.String("balance", balance.StringFixed(2)))

	return &OpenResult{AccountNumber: accNo, Name: name, Balance: balance}, nil
}

func (e *Engine) Deposit(ctx context.Context, accNo int64, amount decimal.Decimal) (*MutationResult, error) {
	if err := checkAccountNumber(accNo); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	var newBalance decimal.Decimal
	err := e.units.WithinUnit(ctx, func(q storage.Querier) error {
		if _, err := e.accounts.Fetch(ctx, q, accNo); err != nil {
			return err
		}
		if err := e.accounts.AdjustBalance(ctx, q, accNo, amount); err != nil {
			// a positive delta can only miss if the row vanished
			if errors.Is(err, errNoRowsAffected) {
				return fmt.Errorf("account %d: %w", accNo, ErrAccountNotFound)
			}
			return err
		}
		if err := e.txlog.Append(ctx, q, accNo, KindDeposit, amount); err != nil {
			return err
		}
		return e.reread(ctx, q, accNo, &newBalance)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("deposit",
		zap.Int64("account_number", accNo),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("new_balance", newBalance.StringFixed(2)))

	return &MutationResult{AccountNumber: accNo, Amount: amount, NewBalance: newBalance}, nil
}

func (e *Engine) Withdraw(ctx context.Context, accNo int64, amount decimal.Decimal) (*MutationResult, error) {
	if err := checkAccountNumber(accNo); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	var newBalance decimal.Decimal
	err := e.units.WithinUnit(ctx, func(q storage.Querier) error {
		acc, err := e.accounts.Fetch(ctx, q, accNo)
		if err != nil {
			return err
		}
		if acc.Balance.LessThan(amount) {
			return &InsufficientFundsError{CurrentBalance: acc.Balance, RequestedAmount: amount}
		}
		if err := e.accounts.AdjustBalance(ctx, q, accNo, amount.Neg()); err != nil {
			// a concurrent withdrawal won the race between our read and
			// the guarded update
			if errors.Is(err, errNoRowsAffected) {
				return &InsufficientFundsError{CurrentBalance: acc.Balance, RequestedAmount: amount}
			}
			return err
		}
		if err := e.txlog.Append(ctx, q, accNo, KindWithdrawal, amount); err != nil {
			return err
		}
		return e.reread(ctx, q, accNo, &newBalance)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("withdrawal",
		zap.Int64("account_number", accNo),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("new_balance", newBalance.StringFixed(2)))

	return &MutationResult{AccountNumber: accNo, Amount: amount, NewBalance: newBalance}, nil
}

// Transfer moves amount between two accounts as one atomic unit: both
// balance adjustments and both log records commit together or not at all.
// Transferring to the same account is permitted and nets to zero.
func (e *Engine) Transfer(ctx context.Context, fromAcc, toAcc int64, amount decimal.Decimal) (*TransferResult, error) {
	if err := checkAccountNumber(fromAcc); err != nil {
		return nil, err
	}
	if err := checkAccountNumber(toAcc); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	err := e.units.WithinUnit(ctx, func(q storage.Querier) error {
		source, err := e.accounts.Fetch(ctx, q, fromAcc)
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		if _, err := e.accounts.Fetch(ctx, q, toAcc); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
		if source.Balance.LessThan(amount) {
			return &InsufficientFundsError{CurrentBalance: source.Balance, RequestedAmount: amount}
		}
		if err := e.accounts.AdjustBalance(ctx, q, fromAcc, amount.Neg()); err != nil {
			if errors.Is(err, errNoRowsAffected) {
				return &InsufficientFundsError{CurrentBalance: source.Balance, RequestedAmount: amount}
			}
			return err
		}
		if err := e.accounts.AdjustBalance(ctx, q, toAcc, amount); err != nil {
			if errors.Is(err, errNoRowsAffected) {
				return fmt.Errorf("destination account %d: %w", toAcc, ErrAccountNotFound)
			}
			return err
		}
		if err := e.txlog.Append(ctx, q, fromAcc, KindTransferOut, amount); err != nil {
			return err
		}
		return e.txlog.Append(ctx, q, toAcc, KindTransferIn, amount)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("transfer",
		zap.Int64("from_account", fromAcc),
		zap.Int64("to_account", toAcc),
		zap.String("amount", amount.StringFixed(2)))

	return &TransferResult{FromAccount: fromAcc, ToAccount: toAcc, Amount: amount}, nil
}

func (e *Engine) ViewBalance(ctx context.Context, accNo int64) (*Account, error) {
	if err := checkAccountNumber(accNo); err != nil {
		return nil, err
	}
	return e.accounts.Fetch(ctx, e.units.Reader(), accNo)
}

func (e *Engine) History(ctx context.Context, accNo int64, limit int) (*HistoryResult, error) {
	if err := checkAccountNumber(accNo); err != nil {
		return nil, err
	}

	q := e.units.Reader()
	acc, err := e.accounts.Fetch(ctx, q, accNo)
	if err != nil {
		return nil, err
	}
	records, err := e.txlog.Recent(ctx, q, accNo, limit)
	if err != nil {
		return nil, err
	}
	total, err := e.txlog.CountFor(ctx, q, accNo)
	if err != nil {
		return nil, err
	}

	return &HistoryResult{
		AccountNumber: accNo,
		Name:          acc.Name,
		Transactions:  records,
		Count:         len(records),
		TotalCount:    total,
	}, nil
}

func (e *Engine) ListAccounts(ctx context.Context) ([]Account, error) {
	return e.accounts.FetchAll(ctx, e.units.Reader())
}

func (e *Engine) SearchAccounts(ctx context.Context, fragment string) ([]Account, error) {
	return e.accounts.SearchByName(ctx, e.units.Reader(), fragment)
}

func (e *Engine) Summary(ctx context.Context) (*SummaryResult, error) {
	q := e.units.Reader()
	stats, err := e.accounts.Stats(ctx, q)
	if err != nil {
		return nil, err
	}
	total, err := e.txlog.CountAll(ctx, q)
	if err != nil {
		return nil, err
	}
	return &SummaryResult{
		TotalAccounts:     stats.TotalAccounts,
		TotalBalance:      stats.TotalBalance,
		TotalTransactions: total,
		RecentAccounts:    stats.RecentAccounts,
	}, nil
}

// reread loads the balance inside the same unit, after the adjustment, so
// the caller sees the committed value rather than one computed in memory.
func (e *Engine) reread(ctx context.Context, q storage.Querier, accNo int64, out *decimal.Decimal) error {
	acc, err := e.accounts.Fetch(ctx, q, accNo)
	if err != nil {
		return err
	}
	*out = acc.Balance
	return nil
}

func checkAccountNumber(accNo int64) error {
	if accNo <= 0 {
		return validationf("invalid account number %d", accNo)
	}
	return nil
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return validationf("amount must be positive")
	}
	return checkScale(amount)
}

// checkScale rejects amounts finer than the NUMERIC(15,2) columns can hold;
// letting them through would silently round money.
func checkScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return validationf("amount %s has more than 2 decimal places", amount)
	}
	return nil
}
