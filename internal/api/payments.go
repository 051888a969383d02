package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/quickmarket/internal/metrics"
)

const (
	initPath   = "/api/payments/paystack/init"
	verifyPath = "/api/payments/paystack/verify"
)

// InitPaymentRequest.Amount is in kobo.
type InitPaymentRequest struct {
	Email      string `json:"email"`
	Amount     int64  `json:"amount"`
	PackageID  string `json:"packageId,omitempty"`
	LocationID string `json:"locationId,omitempty"`
	Reference  string `json:"reference"`
}

type InitPaymentResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference"`
	OrderID   string `json:"orderId"`
}

type VerifyPaymentResponse struct {
	Status string `json:"status"`
}

func (c *Client) InitPayment(ctx context.Context, req InitPaymentRequest) (resp *InitPaymentResponse, err error) {
	defer func(start time.Time) { metrics.ObserveAPI("payment_init", start, err) }(time.Now())

	r, err := c.do(ctx, http.MethodPost, initPath, req)
	if err != nil {
		return nil, err
	}
	data, err := decodeEnvelope[InitPaymentResponse](r, initPath)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// VerifyPayment returns the provider status even when it is not "success";
// only transport and decoding problems, or success:false, are errors.
func (c *Client) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (resp *VerifyPaymentResponse, err error) {
	defer func(start time.Time) { metrics.ObserveAPI("payment_verify", start, err) }(time.Now())

	r, err := c.do(ctx, http.MethodPost, verifyPath, req)
	if err != nil {
		return nil, err
	}
	data, err := decodeEnvelope[VerifyPaymentResponse](r, verifyPath)
	if err != nil {
		return nil, err
	}
	return &data, nil
}
