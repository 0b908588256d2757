package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"marketpay/internal/config"
	"marketpay/internal/model"
)

// httpClient 支付网关 HTTP 客户端
// 访问令牌带缓存，过期前 30 秒主动刷新
type httpClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpire time.Time
}

func NewHTTPClient(cfg *config.GatewayConfig) Client {
	return &httpClient{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (c *httpClient) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpire.Add(-30*time.Second)) {
		return c.accessToken, nil
	}

	body, _ := json.Marshal(map[string]string{
		"imp_key":    c.apiKey,
		"imp_secret": c.apiSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/getToken", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("网关获取令牌失败: %s", resp.Status)
	}

	var out struct {
		Response struct {
			AccessToken string `json:"access_token"`
			ExpiredAt   int64  `json:"expired_at"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	c.accessToken = out.Response.AccessToken
	c.tokenExpire = time.Unix(out.Response.ExpiredAt, 0)
	return c.accessToken, nil
}

// paymentResp 网关支付查询响应
type paymentResp struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Response struct {
		ImpUID      string `json:"imp_uid"`
		MerchantUID string `json:"merchant_uid"`
		Status      string `json:"status"`
		Amount      int64  `json:"amount"`
		PaidAt      int64  `json:"paid_at"`
		CustomData  string `json:"custom_data"` // {"target_type":"AD","target_id":1}
	} `json:"response"`
}

func (c *httpClient) FindByImpUID(ctx context.Context, impUID string) (*Payment, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+impUID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPaymentNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("网关查询支付失败: %s", resp.Status)
	}

	var out paymentResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("网关查询支付失败: %s", out.Message)
	}

	var custom struct {
		TargetType string `json:"target_type"`
		TargetID   int64  `json:"target_id"`
	}
	if out.Response.CustomData != "" {
		if err := json.Unmarshal([]byte(out.Response.CustomData), &custom); err != nil {
			return nil, fmt.Errorf("网关 custom_data 解析失败: %w", err)
		}
	}

	return &Payment{
		ImpUID:      out.Response.ImpUID,
		MerchantUID: out.Response.MerchantUID,
		Status:      out.Response.Status,
		PaidAmount:  out.Response.Amount,
		TargetType:  model.TargetType(custom.TargetType),
		TargetID:    custom.TargetID,
		PaidAt:      time.Unix(out.Response.PaidAt, 0),
	}, nil
}

func (c *httpClient) Verify(ctx context.Context, impUID, merchantUID string, amount int64) (*Payment, error) {
	return c.verify(ctx, impUID, merchantUID, amount, false)
}

func (c *httpClient) VerifyVirtualAccount(ctx context.Context, impUID, merchantUID string, amount int64) (*Payment, error) {
	return c.verify(ctx, impUID, merchantUID, amount, true)
}

func (c *httpClient) verify(ctx context.Context, impUID, merchantUID string, amount int64, allowReady bool) (*Payment, error) {
	payment, err := c.FindByImpUID(ctx, impUID)
	if err != nil {
		return nil, err
	}
	if payment.MerchantUID != merchantUID {
		return nil, fmt.Errorf("网关订单号不匹配: %s != %s", payment.MerchantUID, merchantUID)
	}
	switch payment.Status {
	case StatusPaid:
	case StatusReady:
		if !allowReady {
			return nil, fmt.Errorf("支付未完成，当前网关状态: %s", payment.Status)
		}
	default:
		return nil, fmt.Errorf("支付未完成，当前网关状态: %s", payment.Status)
	}
	if payment.Status == StatusPaid && payment.PaidAmount != amount {
		return nil, model.ErrAmountMismatch
	}
	return payment, nil
}

func (c *httpClient) Refund(ctx context.Context, impUID string, cancelAmount *int64, reason string) (*RefundResult, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{
		"imp_uid": impUID,
		"reason":  reason,
	}
	if cancelAmount != nil {
		payload["amount"] = strconv.FormatInt(*cancelAmount, 10)
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/cancel", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrRefundFailed, resp.Status)
	}

	var out struct {
		Code     int    `json:"code"`
		Message  string `json:"message"`
		Response struct {
			CancelAmount int64 `json:"cancel_amount"`
			Amount       int64 `json:"amount"`
			CancelledAt  int64 `json:"cancelled_at"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("%w: %s", ErrRefundFailed, out.Message)
	}

	return &RefundResult{
		RefundedAmount: out.Response.CancelAmount,
		IsPartial:      out.Response.CancelAmount < out.Response.Amount,
		RefundedAt:     time.Unix(out.Response.CancelledAt, 0),
	}, nil
}
