// Package zarinpal wraps Zarinpal's v4 payment REST API. The client only
// covers the request/verify pair the checkout flow needs; the gateway
// protocol itself is an external collaborator, not reimplemented here.
package zarinpal

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/shopyar/checkout-service/internal/payment/domain"
)

const (
	// codeOK is Zarinpal's success code for both request and verify.
	codeOK = 100
	// codeVerified means this authority was verified before; the payment
	// is real but this delivery is a retry.
	codeVerified = 101
)

type Client struct {
	http       *resty.Client
	merchantID string
	payBaseURL string
}

func NewClient(merchantID, apiBaseURL, payBaseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(apiBaseURL).
			SetTimeout(20 * time.Second).
			SetHeader("Accept", "application/json"),
		merchantID: merchantID,
		payBaseURL: payBaseURL,
	}
}

type requestBody struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type verifyBody struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type apiResponse struct {
	Data struct {
		Code      int    `json:"code"`
		Message   string `json:"message"`
		Authority string `json:"authority"`
		RefID     int64  `json:"ref_id"`
	} `json:"data"`
	Errors struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (r apiResponse) err() *domain.GatewayError {
	if r.Errors.Code != 0 {
		return &domain.GatewayError{Code: r.Errors.Code, Message: r.Errors.Message}
	}
	return &domain.GatewayError{Code: r.Data.Code, Message: r.Data.Message}
}

// Request opens a payment for the given amount and returns the authority
// token plus the URL the customer is redirected to.
func (c *Client) Request(ctx context.Context, amountRials int64, callbackURL, description, mobile string) (string, string, error) {
	body := requestBody{
		MerchantID:  c.merchantID,
		Amount:      amountRials,
		CallbackURL: callbackURL,
		Description: description,
	}
	if mobile != "" {
		body.Metadata = map[string]string{"mobile": mobile}
	}

	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/pg/v4/payment/request.json")
	if err != nil {
		return "", "", fmt.Errorf("zarinpal request: %w", err)
	}
	if resp.IsError() || out.Data.Code != codeOK {
		return "", "", out.err()
	}
	return out.Data.Authority, c.payBaseURL + "/pg/StartPay/" + out.Data.Authority, nil
}

// Verify confirms a payment with the gateway. A code-101 response means
// the authority was verified in an earlier delivery; the receipt carries
// that as AlreadyVerified so the caller can treat it as a replay rather
// than a failure.
func (c *Client) Verify(ctx context.Context, amountRials int64, authority string) (domain.Receipt, error) {
	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(verifyBody{MerchantID: c.merchantID, Amount: amountRials, Authority: authority}).
		SetResult(&out).
		SetError(&out).
		Post("/pg/v4/payment/verify.json")
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("zarinpal verify: %w", err)
	}

	switch {
	case !resp.IsError() && out.Data.Code == codeOK:
		return domain.Receipt{RefID: out.Data.RefID}, nil
	case !resp.IsError() && out.Data.Code == codeVerified:
		return domain.Receipt{RefID: out.Data.RefID, AlreadyVerified: true}, nil
	default:
		return domain.Receipt{}, out.err()
	}
}
