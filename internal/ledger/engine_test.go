package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bankledger/internal/storage"
)

// fakeStore keeps the ledger in memory with the same observable semantics as
// the Postgres repositories: conditional balance adjustment, newest-first
// bounded history, strictly increasing record ids and timestamps.
type fakeStore struct {
	mu    sync.Mutex
	state fakeState

	// failAppend makes Append fail for that kind, to force a unit of work
	// to abort partway through.
	failAppend Kind
}

type fakeState struct {
	nextAcc  int64
	nextTxn  int64
	accounts map[int64]Account
	records  []TransactionRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: fakeState{accounts: make(map[int64]Account)}}
}

func (s *fakeState) clone() fakeState {
	cp := fakeState{
		nextAcc:  s.nextAcc,
		nextTxn:  s.nextTxn,
		accounts: make(map[int64]Account, len(s.accounts)),
		records:  append([]TransactionRecord(nil), s.records...),
	}
	for k, v := range s.accounts {
		cp.accounts[k] = v
	}
	return cp
}

// clock returns a strictly increasing timestamp so ordering is deterministic.
func (s *fakeStore) clock() time.Time {
	s.state.nextTxn++
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.state.nextTxn) * time.Second)
}

func (s *fakeStore) Create(_ context.Context, _ storage.Querier, name string, balance decimal.Decimal) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, validationf("name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.nextAcc++
	now := s.clock()
	s.state.accounts[s.state.nextAcc] = Account{
		AccountNumber: s.state.nextAcc,
		Name:          name,
		Balance:       balance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s.state.nextAcc, nil
}

func (s *fakeStore) Fetch(_ context.Context, _ storage.Querier, accNo int64) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.state.accounts[accNo]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &acc, nil
}

func (s *fakeStore) FetchAll(_ context.Context, _ storage.Querier) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0, len(s.state.accounts))
	for _, a := range s.state.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) SearchByName(_ context.Context, _ storage.Querier, fragment string) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0)
	for _, a := range s.state.accounts {
		if strings.Contains(strings.ToLower(a.Name), strings.ToLower(fragment)) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) AdjustBalance(_ context.Context, _ storage.Querier, accNo int64, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.state.accounts[accNo]
	if !ok {
		return errNoRowsAffected
	}
	next := acc.Balance.Add(delta)
	if next.IsNegative() {
		return errNoRowsAffected
	}
	acc.Balance = next
	acc.UpdatedAt = s.clock()
	s.state.accounts[accNo] = acc
	return nil
}

func (s *fakeStore) Stats(_ context.Context, _ storage.Querier) (*AccountStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &AccountStats{TotalBalance: decimal.Zero}
	for _, a := range s.state.accounts {
		stats.TotalAccounts++
		stats.RecentAccounts++
		stats.TotalBalance = stats.TotalBalance.Add(a.Balance)
	}
	return stats, nil
}

func (s *fakeStore) Append(_ context.Context, _ storage.Querier, accNo int64, kind Kind, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != "" && kind == s.failAppend {
		return assert.AnError
	}
	id := s.state.nextTxn + 1
	s.state.records = append(s.state.records, TransactionRecord{
		TransactionID: id,
		AccountNumber: accNo,
		Kind:          kind,
		Amount:        amount,
		Timestamp:     s.clock(),
	})
	return nil
}

func (s *fakeStore) Recent(_ context.Context, _ storage.Querier, accNo int64, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TransactionRecord, 0)
	for _, r := range s.state.records {
		if r.AccountNumber == accNo {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) CountFor(_ context.Context, _ storage.Querier, accNo int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.state.records {
		if r.AccountNumber == accNo {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountAll(_ context.Context, _ storage.Querier) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.state.records)), nil
}

// fakeRunner snapshots the store before each unit and restores it when the
// unit fails, mirroring transactional rollback.
type fakeRunner struct {
	store *fakeStore
}

func (r *fakeRunner) WithinUnit(_ context.Context, fn func(q storage.Querier) error) error {
	r.store.mu.Lock()
	snapshot := r.store.state.clone()
	r.store.mu.Unlock()

	if err := fn(nil); err != nil {
		r.store.mu.Lock()
		r.store.state = snapshot
		r.store.mu.Unlock()
		return err
	}
	return nil
}

func (r *fakeRunner) Reader() storage.Querier { return nil }

func newTestEngine(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	engine := NewEngine(&fakeRunner{store: store}, store, store, decimal.NewFromInt(10), zap.NewNop())
	return engine, store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerScenario(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	alice, err := engine.OpenAccount(ctx, "Alice", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.AccountNumber)
	assert.True(t, alice.Balance.Equal(dec("100")))

	depRes, err := engine.Deposit(ctx, alice.AccountNumber, dec("50"))
	require.NoError(t, err)
	assert.True(t, depRes.NewBalance.Equal(dec("150")))

	_, err = engine.Withdraw(ctx, alice.AccountNumber, dec("200"))
	var fundsErr *InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.True(t, fundsErr.CurrentBalance.Equal(dec("150")))
	assert.True(t, fundsErr.RequestedAmount.Equal(dec("200")))

	acc, err := engine.ViewBalance(ctx, alice.AccountNumber)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("150")), "rejected withdrawal must not touch the balance")

	bob, err := engine.OpenAccount(ctx, "Bob", dec("20"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), bob.AccountNumber)

	_, err = engine.Transfer(ctx, alice.AccountNumber, bob.AccountNumber, dec("100"))
	require.NoError(t, err)

	acc, err = engine.ViewBalance(ctx, alice.AccountNumber)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("50")))

	acc, err = engine.ViewBalance(ctx, bob.AccountNumber)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("120")))

	hist, err := engine.History(ctx, alice.AccountNumber, 20)
	require.NoError(t, err)
	assert.Equal(t, "Alice", hist.Name)
	require.Equal(t, 3, hist.Count, "the rejected withdrawal must not be recorded")

	kinds := []Kind{hist.Transactions[0].Kind, hist.Transactions[1].Kind, hist.Transactions[2].Kind}
	assert.Equal(t, []Kind{KindTransferOut, KindDeposit, KindInitialDeposit}, kinds)
	assert.True(t, hist.Transactions[0].Amount.Equal(dec("100")))

	bobHist, err := engine.History(ctx, bob.AccountNumber, 20)
	require.NoError(t, err)
	require.Equal(t, 2, bobHist.Count)
	assert.Equal(t, KindTransferIn, bobHist.Transactions[0].Kind)
}

func TestOpenAccountValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	var vErr *ValidationError

	_, err := engine.OpenAccount(ctx, "  ", dec("50"))
	require.ErrorAs(t, err, &vErr)

	_, err = engine.OpenAccount(ctx, "Carol", dec("9.99"))
	require.ErrorAs(t, err, &vErr, "below the minimum opening deposit")

	_, err = engine.OpenAccount(ctx, "Carol", dec("10.001"))
	require.ErrorAs(t, err, &vErr, "finer than 2 decimal places")

	res, err := engine.OpenAccount(ctx, "Carol", dec("10"))
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(dec("10")))
}

func TestCreateAccountAdministrativePath(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// no minimum on the administrative path, only non-negativity
	res, err := engine.CreateAccount(ctx, "Zero", decimal.Zero)
	require.NoError(t, err)

	hist, err := engine.History(ctx, res.AccountNumber, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, hist.Count, "zero opening balance writes no initial deposit record")

	var vErr *ValidationError
	_, err = engine.CreateAccount(ctx, "Negative", dec("-1"))
	require.ErrorAs(t, err, &vErr)
}

func TestInitialDepositRecorded(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.OpenAccount(ctx, "Alice", dec("100"))
	require.NoError(t, err)

	hist, err := engine.History(ctx, res.AccountNumber, 20)
	require.NoError(t, err)
	require.Equal(t, 1, hist.Count)
	assert.Equal(t, KindInitialDeposit, hist.Transactions[0].Kind)
	assert.True(t, hist.Transactions[0].Amount.Equal(dec("100")))

	acc, err := engine.ViewBalance(ctx, res.AccountNumber)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("100")))
}

func TestDepositValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	var vErr *ValidationError

	_, err := engine.Deposit(ctx, 0, dec("5"))
	require.ErrorAs(t, err, &vErr)

	_, err = engine.Deposit(ctx, 1, decimal.Zero)
	require.ErrorAs(t, err, &vErr)

	_, err = engine.Deposit(ctx, 1, dec("-5"))
	require.ErrorAs(t, err, &vErr)

	_, err = engine.Deposit(ctx, 1, dec("5.555"))
	require.ErrorAs(t, err, &vErr)

	_, err = engine.Deposit(ctx, 42, dec("5"))
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestWithdrawEntireBalance(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.OpenAccount(ctx, "Alice", dec("75.25"))
	require.NoError(t, err)

	out, err := engine.Withdraw(ctx, res.AccountNumber, dec("75.25"))
	require.NoError(t, err)
	assert.True(t, out.NewBalance.IsZero())
}

func TestTransferMissingAccounts(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	alice, err := engine.OpenAccount(ctx, "Alice", dec("100"))
	require.NoError(t, err)

	_, err = engine.Transfer(ctx, 99, alice.AccountNumber, dec("10"))
	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.Contains(t, err.Error(), "source")

	_, err = engine.Transfer(ctx, alice.AccountNumber, 99, dec("10"))
	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.Contains(t, err.Error(), "destination")
}

func TestSelfTransferPermitted(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	alice, err := engine.OpenAccount(ctx, "Alice", dec("100"))
	require.NoError(t, err)

	_, err = engine.Transfer(ctx, alice.AccountNumber, alice.AccountNumber, dec("40"))
	require.NoError(t, err)

	acc, err := engine.ViewBalance(ctx, alice.AccountNumber)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("100")), "self-transfer nets to zero")

	hist, err := engine.History(ctx, alice.AccountNumber, 20)
	require.NoError(t, err)
	require.Equal(t, 3, hist.Count, "both legs are still recorded")
	assert.Equal(t, KindTransferIn, hist.Transactions[0].Kind)
	assert.Equal(t, KindTransferOut, hist.Transactions[1].Kind)
}

func TestTransferAtomicityUnderFault(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	alice, err := engine.OpenAccount(ctx, "Alice", dec("100"))
	require.NoError(t, err)
	bob, err := engine.OpenAccount(ctx, "Bob", dec("20"))
	require.NoError(t, err)

	// fail the unit after both balances moved and the debit leg was logged
	store.failAppend = KindTransferIn

	_, err = engine.Transfer(ctx, alice.AccountNumber, bob.AccountNumber, dec("50"))
	require.Error(t, err)

	store.failAppend = ""

	acc, err := engine.ViewBalance(ctx, alice.AccountNumber)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("100")), "debit must be rolled back")

	acc, err = engine.ViewBalance(ctx, bob.AccountNumber)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("20")), "credit must be rolled back")

	hist, err := engine.History(ctx, alice.AccountNumber, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, hist.Count, "the Transfer Out record must not survive the rollback")
}

func TestConcurrentDeposits(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateAccount(ctx, "Hot", decimal.Zero)
	require.NoError(t, err)

	const n = 50
	amount := dec("1.25")

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Deposit(ctx, res.AccountNumber, amount)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	acc, err := engine.ViewBalance(ctx, res.AccountNumber)
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("62.50")), "got %s", acc.Balance)

	total, err := engine.History(ctx, res.AccountNumber, n+1)
	require.NoError(t, err)
	assert.Equal(t, int64(n), total.TotalCount)
}

func TestBalanceEqualsSignedRecordSum(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	alice, err := engine.OpenAccount(ctx, "Alice", dec("100"))
	require.NoError(t, err)
	bob, err := engine.OpenAccount(ctx, "Bob", dec("40"))
	require.NoError(t, err)

	_, err = engine.Deposit(ctx, alice.AccountNumber, dec("12.34"))
	require.NoError(t, err)
	_, err = engine.Withdraw(ctx, alice.AccountNumber, dec("0.34"))
	require.NoError(t, err)
	_, err = engine.Transfer(ctx, alice.AccountNumber, bob.AccountNumber, dec("62"))
	require.NoError(t, err)
	_, err = engine.Transfer(ctx, bob.AccountNumber, alice.AccountNumber, dec("1.99"))
	require.NoError(t, err)

	for _, accNo := range []int64{alice.AccountNumber, bob.AccountNumber} {
		hist, err := engine.History(ctx, accNo, 100)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, r := range hist.Transactions {
			sum = sum.Add(r.Kind.Signed(r.Amount))
		}

		acc, err := engine.ViewBalance(ctx, accNo)
		require.NoError(t, err)
		assert.True(t, acc.Balance.Equal(sum),
			"account %d: balance %s != signed sum %s", accNo, acc.Balance, sum)
	}
}

func TestHistoryBounded(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.OpenAccount(ctx, "Alice", dec("100"))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = engine.Deposit(ctx, res.AccountNumber, dec("1"))
		require.NoError(t, err)
	}

	hist, err := engine.History(ctx, res.AccountNumber, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, hist.Count)
	assert.Equal(t, int64(6), hist.TotalCount)
	for _, r := range hist.Transactions {
		assert.Equal(t, KindDeposit, r.Kind, "newest-first keeps the initial deposit out of a limit-3 window")
	}
}

func TestSummary(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.OpenAccount(ctx, "Alice", dec("100"))
	require.NoError(t, err)
	bob, err := engine.OpenAccount(ctx, "Bob", dec("25.50"))
	require.NoError(t, err)
	_, err = engine.Deposit(ctx, bob.AccountNumber, dec("4.50"))
	require.NoError(t, err)

	sum, err := engine.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.TotalAccounts)
	assert.True(t, sum.TotalBalance.Equal(dec("130")))
	assert.Equal(t, int64(3), sum.TotalTransactions)
	assert.Equal(t, int64(2), sum.RecentAccounts)
}

func TestSearchAccounts(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for _, name := range []string{"Alice Smith", "Bob Smith", "Carol Jones"} {
		_, err := engine.OpenAccount(ctx, name, dec("10"))
		require.NoError(t, err)
	}

	matches, err := engine.SearchAccounts(ctx, "smith")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Alice Smith", matches[0].Name, "ordered by name")
	assert.Equal(t, "Bob Smith", matches[1].Name)
}
