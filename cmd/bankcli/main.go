// bankcli is the interactive text-menu front end. It talks to the ledger
// engine directly over its own gateway and renders results to stdout; it is
// an adapter like the HTTP server, with no rules of its own. Account
// creation here uses the administrative path, which has no minimum deposit.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankledger/internal/config"
	"bankledger/internal/ledger"
	"bankledger/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	// keep the interactive session readable: errors only
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	log, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	gateway, err := storage.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to database: %v\n", err)
		os.Exit(1)
	}
	defer gateway.Close()

	if err := gateway.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "run migrations: %v\n", err)
		os.Exit(1)
	}

	engine := ledger.NewEngine(gateway, ledger.NewAccountStore(), ledger.NewTransactionLog(), cfg.MinOpeningDeposit, log)

	in := bufio.NewScanner(os.Stdin)
	for {
		printMenu()
		choice := prompt(in, "Enter your choice (1-10): ")

		switch choice {
		case "1":
			createAccount(ctx, engine, in)
		case "2":
			deposit(ctx, engine, in)
		case "3":
			withdraw(ctx, engine, in)
		case "4":
			viewBalance(ctx, engine, in)
		case "5":
			history(ctx, engine, in)
		case "6":
			transfer(ctx, engine, in)
		case "7":
			listAccounts(ctx, engine)
		case "8":
			search(ctx, engine, in)
		case "9":
			summary(ctx, engine)
		case "10":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Invalid choice, enter a number from 1 to 10.")
		}
	}
}

func printMenu() {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("       BANKING SYSTEM")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("1. Create Account")
	fmt.Println("2. Deposit Money")
	fmt.Println("3. Withdraw Money")
	fmt.Println("4. View Balance")
	fmt.Println("5. Transaction History")
	fmt.Println("6. Transfer Money")
	fmt.Println("7. View All Accounts")
	fmt.Println("8. Search Accounts")
	fmt.Println("9. System Summary")
	fmt.Println("10. Exit")
	fmt.Println(strings.Repeat("=", 40))
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		os.Exit(0)
	}
	return strings.TrimSpace(in.Text())
}

func promptAmount(in *bufio.Scanner, label string) (decimal.Decimal, bool) {
	raw := prompt(in, label)
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		fmt.Println("Invalid amount!")
		return decimal.Decimal{}, false
	}
	return amount, true
}

func promptAccount(in *bufio.Scanner, label string) (int64, bool) {
	raw := prompt(in, label)
	accNo, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Println("Invalid account number!")
		return 0, false
	}
	return accNo, true
}

func createAccount(ctx context.Context, engine *ledger.Engine, in *bufio.Scanner) {
	name := prompt(in, "Enter Name: ")
	balance, ok := promptAmount(in, "Enter Initial Balance: ")
	if !ok {
		return
	}

	res, err := engine.CreateAccount(ctx, name, balance)
	if err != nil {
		render(err)
		return
	}
	fmt.Println("\n✓ Account Created Successfully!")
	fmt.Printf("  Account Number: %d\n", res.AccountNumber)
	fmt.Printf("  Account Holder: %s\n", res.Name)
	fmt.Printf("  Initial Balance: $%s\n", res.Balance.StringFixed(2))
}

func deposit(ctx context.Context, engine *ledger.Engine, in *bufio.Scanner) {
	accNo, ok := promptAccount(in, "Enter Account Number: ")
	if !ok {
		return
	}
	amount, ok := promptAmount(in, "Enter Deposit Amount: ")
	if !ok {
		return
	}

	res, err := engine.Deposit(ctx, accNo, amount)
	if err != nil {
		render(err)
		return
	}
	fmt.Printf("\n✓ Deposited $%s. New balance: $%s\n", res.Amount.StringFixed(2), res.NewBalance.StringFixed(2))
}

func withdraw(ctx context.Context, engine *ledger.Engine, in *bufio.Scanner) {
	accNo, ok := promptAccount(in, "Enter Account Number: ")
	if !ok {
		return
	}
	amount, ok := promptAmount(in, "Enter Withdrawal Amount: ")
	if !ok {
		return
	}

	res, err := engine.Withdraw(ctx, accNo, amount)
	if err != nil {
		render(err)
		return
	}
	fmt.Printf("\n✓ Withdrew $%s. New balance: $%s\n", res.Amount.StringFixed(2), res.NewBalance.StringFixed(2))
}

func viewBalance(ctx context.Context, engine *ledger.Engine, in *bufio.Scanner) {
	accNo, ok := promptAccount(in, "Enter Account Number: ")
	if !ok {
		return
	}

	acc, err := engine.ViewBalance(ctx, accNo)
	if err != nil {
		render(err)
		return
	}
	fmt.Printf("\nAccount #%d — %s\n", acc.AccountNumber, acc.Name)
	fmt.Printf("  Balance: $%s\n", acc.Balance.StringFixed(2))
	fmt.Printf("  Created: %s\n", acc.CreatedAt.Format("2006-01-02 15:04:05"))
}

func history(ctx context.Context, engine *ledger.Engine, in *bufio.Scanner) {
	accNo, ok := promptAccount(in, "Enter Account Number: ")
	if !ok {
		return
	}

	res, err := engine.History(ctx, accNo, ledger.DefaultHistoryLimit)
	if err != nil {
		render(err)
		return
	}
	fmt.Printf("\nTransaction history for #%d (%s), showing %d of %d:\n",
		res.AccountNumber, res.Name, res.Count, res.TotalCount)
	for _, t := range res.Transactions {
		fmt.Printf("  %s  %-15s  $%s\n",
			t.Timestamp.Format("2006-01-02 15:04:05"), t.Kind, t.Amount.StringFixed(2))
	}
	if res.Count == 0 {
		fmt.Println("  (no transactions)")
	}
}

func transfer(ctx context.Context, engine *ledger.Engine, in *bufio.Scanner) {
	fromAcc, ok := promptAccount(in, "Enter Source Account Number: ")
	if !ok {
		return
	}
	toAcc, ok := promptAccount(in, "Enter Destination Account Number: ")
	if !ok {
		return
	}
	amount, ok := promptAmount(in, "Enter Transfer Amount: ")
	if !ok {
		return
	}

	res, err := engine.Transfer(ctx, fromAcc, toAcc, amount)
	if err != nil {
		render(err)
		return
	}
	fmt.Printf("\n✓ Transferred $%s from #%d to #%d\n",
		res.Amount.StringFixed(2), res.FromAccount, res.ToAccount)
}

func listAccounts(ctx context.Context, engine *ledger.Engine) {
	accounts, err := engine.ListAccounts(ctx)
	if err != nil {
		render(err)
		return
	}
	fmt.Printf("\n%d account(s):\n", len(accounts))
	for _, a := range accounts {
		fmt.Printf("  #%-6d %-20s $%s\n", a.AccountNumber, a.Name, a.Balance.StringFixed(2))
	}
}

func search(ctx context.Context, engine *ledger.Engine, in *bufio.Scanner) {
	fragment := prompt(in, "Enter name to search: ")
	if fragment == "" {
		fmt.Println("Name cannot be empty!")
		return
	}

	accounts, err := engine.SearchAccounts(ctx, fragment)
	if err != nil {
		render(err)
		return
	}
	fmt.Printf("\n%d match(es):\n", len(accounts))
	for _, a := range accounts {
		fmt.Printf("  #%-6d %-20s $%s\n", a.AccountNumber, a.Name, a.Balance.StringFixed(2))
	}
}

func summary(ctx context.Context, engine *ledger.Engine) {
	res, err := engine.Summary(ctx)
	if err != nil {
		render(err)
		return
	}
	fmt.Println("\nSystem Summary")
	fmt.Printf("  Total Accounts:     %d\n", res.TotalAccounts)
	fmt.Printf("  Total Balance:      $%s\n", res.TotalBalance.StringFixed(2))
	fmt.Printf("  Total Transactions: %d\n", res.TotalTransactions)
	fmt.Printf("  New This Week:      %d\n", res.RecentAccounts)
}

func render(err error) {
	var vErr *ledger.ValidationError
	var fundsErr *ledger.InsufficientFundsError

	switch {
	case errors.As(err, &vErr):
		fmt.Printf("✗ %s\n", vErr.Reason)
	case errors.As(err, &fundsErr):
		fmt.Printf("✗ Insufficient balance! Current: $%s, requested: $%s\n",
			fundsErr.CurrentBalance.StringFixed(2), fundsErr.RequestedAmount.StringFixed(2))
	case errors.Is(err, ledger.ErrAccountNotFound):
		fmt.Println("✗ Account not found!")
	default:
		fmt.Printf("✗ Operation failed: %v\n", err)
	}
}
