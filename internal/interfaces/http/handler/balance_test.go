package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoneledger/backend/internal/interfaces/http/dto"
)

func TestGetBalance(t *testing.T) {
	f := setupAPI(t)
	rec, _ := f.request(t, http.MethodPost, "/api/v1/transfers",
		transferBody("req-bal", "acct-a", "acct-b", 300, "z1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := f.get(t, "/api/v1/balances/acct-b")
	require.Equal(t, http.StatusOK, rec.Code)
	var balance BalanceResponse
	decodeData(t, resp, &balance)
	assert.Equal(t, "acct-b", balance.AccountID)
	assert.Equal(t, int64(300), balance.BalanceUnits)

	// the source side carries the matching debit
	rec, resp = f.get(t, "/api/v1/balances/acct-a")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &balance)
	assert.Equal(t, int64(-300), balance.BalanceUnits)
}

func TestGetBalance_NotFound(t *testing.T) {
	f := setupAPI(t)

	rec, resp := f.get(t, "/api/v1/balances/acct-missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestListBalances(t *testing.T) {
	f := setupAPI(t)
	rec, _ := f.request(t, http.MethodPost, "/api/v1/transfers",
		transferBody("req-lb", "acct-a", "acct-b", 40, "z1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := f.get(t, "/api/v1/balances?limit=10")

	require.Equal(t, http.StatusOK, rec.Code)
	var balances []BalanceResponse
	decodeData(t, resp, &balances)
	assert.Len(t, balances, 2)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Returned)

	var total int64
	for _, b := range balances {
		total += b.BalanceUnits
	}
	assert.Zero(t, total, "credits and debits must cancel out")
}
