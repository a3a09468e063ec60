package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKindSigned(t *testing.T) {
	amount := decimal.RequireFromString("12.50")

	for _, k := range []Kind{KindInitialDeposit, KindDeposit, KindTransferIn} {
		assert.True(t, k.Signed(amount).Equal(amount), "%s credits the account", k)
	}
	for _, k := range []Kind{KindWithdrawal, KindTransferOut} {
		assert.True(t, k.Signed(amount).Equal(amount.Neg()), "%s debits the account", k)
	}
}
