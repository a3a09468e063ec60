package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"bankledger/internal/storage"
)

// AccountStore is row-level access to accounts. Every method runs against a
// caller-supplied querier so the engine decides unit-of-work boundaries.
type AccountStore interface {
	Create(ctx context.Context, q storage.Querier, name string, balance decimal.Decimal) (int64, error)
	Fetch(ctx context.Context, q storage.Querier, accNo int64) (*Account, error)
	FetchAll(ctx context.Context, q storage.Querier) ([]Account, error)
	SearchByName(ctx context.Context, q storage.Querier, fragment string) ([]Account, error)
	AdjustBalance(ctx context.Context, q storage.Querier, accNo int64, delta decimal.Decimal) error
	Stats(ctx context.Context, q storage.Querier) (*AccountStats, error)
}

// AccountStats backs the system summary.
type AccountStats struct {
	TotalAccounts  int64
	TotalBalance   decimal.Decimal
	RecentAccounts int64 // created within the last 7 days
}

type accountRepo struct{}

func NewAccountStore() AccountStore { return accountRepo{} }

const accountColumns = `account_number, name, balance, created_at, updated_at`

func (accountRepo) Create(ctx context.Context, q storage.Querier, name string, balance decimal.Decimal) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, validationf("name is required")
	}

	var accNo int64
	err := q.QueryRow(ctx,
		`INSERT INTO accounts (name, balance) VALUES ($1, $2) RETURNING account_number`,
		name, balance,
	).Scan(&accNo)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return accNo, nil
}

func (accountRepo) Fetch(ctx context.Context, q storage.Querier, accNo int64) (*Account, error) {
	var a Account
	err := q.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, accNo,
	).Scan(&a.AccountNumber, &a.Name, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %d: %w", accNo, ErrAccountNotFound)
		}
		return nil, fmt.Errorf("fetch account %d: %w", accNo, err)
	}
	return &a, nil
}

func (accountRepo) FetchAll(ctx context.Context, q storage.Querier) ([]Account, error) {
	rows, err := q.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	return scanAccounts(rows)
}

func (accountRepo) SearchByName(ctx context.Context, q storage.Querier, fragment string) ([]Account, error) {
	rows, err := q.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE name ILIKE '%' || $1 || '%' ORDER BY name`,
		fragment)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	return scanAccounts(rows)
}

// AdjustBalance applies balance := balance + delta as one conditional
// statement. The guard makes a negative result impossible no matter how
// calls interleave; a stale in-memory balance can never overdraw the row.
func (accountRepo) AdjustBalance(ctx context.Context, q storage.Querier, accNo int64, delta decimal.Decimal) error {
	tag, err := q.Exec(ctx,
		`UPDATE accounts
		 SET balance = balance + $1, updated_at = now()
		 WHERE account_number = $2 AND balance + $1 >= 0`,
		delta, accNo)
	if err != nil {
		return fmt.Errorf("adjust balance of account %d: %w", accNo, err)
	}
	if tag.RowsAffected() == 0 {
		return errNoRowsAffected
	}
	return nil
}

func (accountRepo) Stats(ctx context.Context, q storage.Querier) (*AccountStats, error) {
	var s AccountStats
	err := q.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(balance), 0),
		        COUNT(*) FILTER (WHERE created_at >= now() - INTERVAL '7 days')
		 FROM accounts`,
	).Scan(&s.TotalAccounts, &s.TotalBalance, &s.RecentAccounts)
	if err != nil {
		return nil, fmt.Errorf("account stats: %w", err)
	}
	return &s, nil
}

func scanAccounts(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.AccountNumber, &a.Name, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	return accounts, nil
}
