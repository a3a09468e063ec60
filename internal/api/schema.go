package api

import (
	"github.com/shopspring/decimal"
)

type CreateAccountSchema struct {
	Name    string           `json:"name" validate:"required"`
	Balance *decimal.Decimal `json:"balance" validate:"required"`
}

type DepositSchema struct {
	AccountNumber int64            `json:"acc_no" validate:"required,gt=0"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
}

type WithdrawSchema struct {
	AccountNumber int64            `json:"acc_no" validate:"required,gt=0"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
}

type TransferSchema struct {
	FromAccount int64            `json:"from_acc" validate:"required,gt=0"`
	ToAccount   int64            `json:"to_acc" validate:"required,gt=0"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
}
