package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferRequestValidate(t *testing.T) {
	valid := TransferRequest{
		RequestID:   "r1",
		FromAccount: "a",
		ToAccount:   "b",
		AmountUnits: 1,
		ZoneID:      "z1",
	}

	t.Run("accepts minimum positive amount", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		req := valid
		req.AmountUnits = 0
		assert.Error(t, req.Validate())
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		req := valid
		req.AmountUnits = -1
		assert.Error(t, req.Validate())
	})

	t.Run("rejects missing request id", func(t *testing.T) {
		req := valid
		req.RequestID = ""
		assert.Error(t, req.Validate())
	})

	t.Run("rejects missing zone id", func(t *testing.T) {
		req := valid
		req.ZoneID = ""
		assert.Error(t, req.Validate())
	})

	t.Run("rejects missing accounts", func(t *testing.T) {
		req := valid
		req.FromAccount = ""
		assert.Error(t, req.Validate())

		req = valid
		req.ToAccount = ""
		assert.Error(t, req.Validate())
	})
}

func TestNewTransfer(t *testing.T) {
	req := TransferRequest{
		RequestID:   "r1",
		FromAccount: "a",
		ToAccount:   "b",
		AmountUnits: 500,
		ZoneID:      "z1",
	}

	transfer := NewTransfer(req, "fp")
	require.Len(t, transfer.Postings, 2)

	var debit, credit Posting
	for _, p := range transfer.Postings {
		switch p.Direction {
		case PostingDebit:
			debit = p
		case PostingCredit:
			credit = p
		}
	}

	assert.Equal(t, "a", debit.AccountID)
	assert.Equal(t, "b", credit.AccountID)
	assert.Equal(t, int64(500), debit.AmountUnits)
	assert.Equal(t, int64(500), credit.AmountUnits)
	// conservation holds per construction
	assert.Zero(t, credit.AmountUnits-debit.AmountUnits)
	assert.Equal(t, transfer.ID, debit.TransferID)
	assert.Equal(t, transfer.ID, credit.TransferID)
}

func TestSpooledTransferRoundTrip(t *testing.T) {
	req := TransferRequest{
		RequestID:   "r9",
		FromAccount: "a",
		ToAccount:   "b",
		AmountUnits: 42,
		ZoneID:      "z1",
		Metadata:    map[string]any{"note": "parked"},
	}

	spooled := NewSpooledTransfer(req, "fp", "zone down")
	assert.Equal(t, SpoolStatusPending, spooled.Status)
	assert.Equal(t, "zone down", spooled.FailReason)
	assert.Equal(t, req, spooled.Request())
}
