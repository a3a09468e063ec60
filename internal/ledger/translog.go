package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bankledger/internal/storage"
)

// DefaultHistoryLimit bounds history reads when the caller does not say.
const DefaultHistoryLimit = 20

// TransactionStore is the append-only log of ledger events. Append is the
// only write; records are never updated or deleted from here.
type TransactionStore interface {
	Append(ctx context.Context, q storage.Querier, accNo int64, kind Kind, amount decimal.Decimal) error
	Recent(ctx context.Context, q storage.Querier, accNo int64, limit int) ([]TransactionRecord, error)
	CountFor(ctx context.Context, q storage.Querier, accNo int64) (int64, error)
	CountAll(ctx context.Context, q storage.Querier) (int64, error)
}

type transactionLog struct{}

func NewTransactionLog() TransactionStore { return transactionLog{} }

func (transactionLog) Append(ctx context.Context, q storage.Querier, accNo int64, kind Kind, amount decimal.Decimal) error {
	_, err := q.Exec(ctx,
		`INSERT INTO transactions (account_number, kind, amount) VALUES ($1, $2, $3)`,
		accNo, kind, amount)
	if err != nil {
		return fmt.Errorf("append %s record for account %d: %w", kind, accNo, err)
	}
	return nil
}

// Recent returns the newest records first; records sharing a timestamp come
// back in insertion order so retrieval is deterministic.
func (transactionLog) Recent(ctx context.Context, q storage.Querier, accNo int64, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := q.Query(ctx,
		`SELECT transaction_id, account_number, kind, amount, created_at
		 FROM transactions
		 WHERE account_number = $1
		 ORDER BY created_at DESC, transaction_id ASC
		 LIMIT $2`,
		accNo, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions for account %d: %w", accNo, err)
	}
	defer rows.Close()

	records := make([]TransactionRecord, 0, limit)
	for rows.Next() {
		var r TransactionRecord
		if err := rows.Scan(&r.TransactionID, &r.AccountNumber, &r.Kind, &r.Amount, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	return records, nil
}

func (transactionLog) CountFor(ctx context.Context, q storage.Querier, accNo int64) (int64, error) {
	var count int64
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_number = $1`, accNo,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions for account %d: %w", accNo, err)
	}
	return count, nil
}

func (transactionLog) CountAll(ctx context.Context, q storage.Querier) (int64, error) {
	var count int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}
