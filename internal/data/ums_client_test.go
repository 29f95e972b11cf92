package data

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	orderErrors "order-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUmsClient_ListAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app-api/v1/members/42/addresses":
			writeResult(w, "00000", []map[string]interface{}{
				{"id": 1, "consigneeName": "Lee", "city": "Hangzhou", "defaultFlag": 1},
				{"id": 2, "consigneeName": "Lee", "city": "Ningbo", "defaultFlag": 0},
			})
		default:
			writeResult(w, "00000", nil)
		}
	}))
	defer srv.Close()

	c, err := NewUmsClient(gatewayConf(srv.URL), log.DefaultLogger)
	require.NoError(t, err)

	addresses, err := c.ListAddresses(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, addresses, 2)
	assert.True(t, addresses[0].DefaultFlag)
	assert.False(t, addresses[1].DefaultFlag)
	assert.Equal(t, "Ningbo", addresses[1].City)

	addresses, err = c.ListAddresses(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, addresses)
}

func TestUmsClient_Balance(t *testing.T) {
	var (
		lastPath string
		lastBody map[string]interface{}
	)
	code := "00000"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &lastBody)
		if r.URL.Path == "/app-api/v1/members/42/balances/refund" {
			writeResult(w, "00000", nil)
			return
		}
		writeResult(w, code, nil)
	}))
	defer srv.Close()

	c, err := NewUmsClient(gatewayConf(srv.URL), log.DefaultLogger)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.DeductBalance(ctx, 42, 1300, "SN1", "req-1"))
	assert.Equal(t, "/app-api/v1/members/42/balances/deduct", lastPath)
	assert.EqualValues(t, 1300, lastBody["amount"])
	assert.Equal(t, "SN1", lastBody["orderSn"])
	assert.Equal(t, "req-1", lastBody["requestId"])

	code = "B0301"
	err = c.DeductBalance(ctx, 42, 1300, "SN1", "req-2")
	assert.True(t, errors.Is(err, orderErrors.ErrInsufficientBalance))

	code = "B0500"
	err = c.DeductBalance(ctx, 42, 1300, "SN1", "req-3")
	assert.True(t, errors.Is(err, orderErrors.ErrPaymentFailed))

	require.NoError(t, c.RefundBalance(ctx, 42, 1300, "SN1", "req-1"))
	assert.Equal(t, "/app-api/v1/members/42/balances/refund", lastPath)
}

func TestUmsClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewUmsClient(gatewayConf(srv.URL), log.DefaultLogger)
	require.NoError(t, err)

	err = c.DeductBalance(context.Background(), 42, 1300, "SN1", "req-1")
	assert.True(t, errors.Is(err, orderErrors.ErrRemoteUnavailable))
	err = c.RefundBalance(context.Background(), 42, 1300, "SN1", "req-1")
	assert.True(t, errors.Is(err, orderErrors.ErrRemoteUnavailable))
}
