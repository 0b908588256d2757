package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketpay/internal/config"
	"marketpay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 网关假服务器：令牌 + 支付查询 + 退款
func newGatewayServer(t *testing.T) (*httptest.Server, *gatewayState) {
	t.Helper()
	state := &gatewayState{
		payments: map[string]map[string]interface{}{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/users/getToken", func(w http.ResponseWriter, r *http.Request) {
		state.tokenCalls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": map[string]interface{}{
				"access_token": "tok_1",
				"expired_at":   time.Now().Add(time.Hour).Unix(),
			},
		})
	})
	mux.HandleFunc("/payments/cancel", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		state.lastCancel = req
		if state.refundFails {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"response": map[string]interface{}{
				"cancel_amount": 6000,
				"amount":        10000,
				"cancelled_at":  time.Now().Unix(),
			},
		})
	})
	mux.HandleFunc("/payments/", func(w http.ResponseWriter, r *http.Request) {
		state.findCalls++
		impUID := r.URL.Path[len("/payments/"):]
		payment, ok := state.payments[impUID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":     0,
			"response": payment,
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, state
}

type gatewayState struct {
	payments    map[string]map[string]interface{}
	tokenCalls  int
	findCalls   int
	refundFails bool
	lastCancel  map[string]string
}

func newTestClient(baseURL string) Client {
	return NewHTTPClient(&config.GatewayConfig{
		BaseURL: baseURL, APIKey: "k", APISecret: "s", TimeoutSeconds: 5,
	})
}

func TestFindByImpUIDParsesCustomData(t *testing.T) {
	server, state := newGatewayServer(t)
	state.payments["imp_1"] = map[string]interface{}{
		"imp_uid":      "imp_1",
		"merchant_uid": "MKT-1",
		"status":       "paid",
		"amount":       10000,
		"paid_at":      time.Now().Unix(),
		"custom_data":  `{"target_type":"AD","target_id":42}`,
	}
	c := newTestClient(server.URL)

	payment, err := c.FindByImpUID(context.Background(), "imp_1")
	require.NoError(t, err)
	assert.Equal(t, model.TargetAd, payment.TargetType)
	assert.Equal(t, int64(42), payment.TargetID)
	assert.Equal(t, int64(10000), payment.PaidAmount)
	assert.Equal(t, StatusPaid, payment.Status)
}

func TestFindByImpUIDNotFound(t *testing.T) {
	server, _ := newGatewayServer(t)
	c := newTestClient(server.URL)

	_, err := c.FindByImpUID(context.Background(), "imp_missing")
	assert.True(t, errors.Is(err, ErrPaymentNotFound))
}

// 令牌缓存：两次查询只取一次令牌
func TestTokenCached(t *testing.T) {
	server, state := newGatewayServer(t)
	state.payments["imp_1"] = map[string]interface{}{
		"imp_uid": "imp_1", "merchant_uid": "MKT-1", "status": "paid",
		"amount": 10000, "paid_at": time.Now().Unix(),
	}
	c := newTestClient(server.URL)

	_, err := c.FindByImpUID(context.Background(), "imp_1")
	require.NoError(t, err)
	_, err = c.FindByImpUID(context.Background(), "imp_1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.tokenCalls)
}

func TestVerifyAmountMismatch(t *testing.T) {
	server, state := newGatewayServer(t)
	state.payments["imp_1"] = map[string]interface{}{
		"imp_uid": "imp_1", "merchant_uid": "MKT-1", "status": "paid",
		"amount": 9000, "paid_at": time.Now().Unix(),
	}
	c := newTestClient(server.URL)

	_, err := c.Verify(context.Background(), "imp_1", "MKT-1", 10000)
	assert.True(t, errors.Is(err, model.ErrAmountMismatch))
}

// ready 状态：Verify 拒绝，VerifyVirtualAccount 放行
func TestVerifyReadyStatus(t *testing.T) {
	server, state := newGatewayServer(t)
	state.payments["imp_1"] = map[string]interface{}{
		"imp_uid": "imp_1", "merchant_uid": "MKT-1", "status": "ready",
		"amount": 10000, "paid_at": 0,
	}
	c := newTestClient(server.URL)

	_, err := c.Verify(context.Background(), "imp_1", "MKT-1", 10000)
	require.Error(t, err)

	payment, err := c.VerifyVirtualAccount(context.Background(), "imp_1", "MKT-1", 10000)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, payment.Status)
}

// 部分退款带金额字段，全额不带
func TestRefundRequestBody(t *testing.T) {
	server, state := newGatewayServer(t)
	c := newTestClient(server.URL)

	amount := int64(6000)
	result, err := c.Refund(context.Background(), "imp_1", &amount, "取消")
	require.NoError(t, err)
	assert.Equal(t, "6000", state.lastCancel["amount"])
	assert.Equal(t, int64(6000), result.RefundedAmount)
	assert.True(t, result.IsPartial)

	_, err = c.Refund(context.Background(), "imp_1", nil, "取消")
	require.NoError(t, err)
	_, hasAmount := state.lastCancel["amount"]
	assert.False(t, hasAmount)
}

func TestRefundFailure(t *testing.T) {
	server, state := newGatewayServer(t)
	state.refundFails = true
	c := newTestClient(server.URL)

	_, err := c.Refund(context.Background(), "imp_1", nil, "取消")
	assert.True(t, errors.Is(err, ErrRefundFailed))
}
