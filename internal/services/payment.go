package services

import (
	"context"
	"fmt"
	"os"

	"github.com/bkurui/fleetrent-backend/pkg/utils"
	razorpay "github.com/razorpay/razorpay-go"
)

// RazorpayGateway registers orders with Razorpay and verifies the
// order/payment/signature triple its checkout posts back to us.
type RazorpayGateway struct {
	client *razorpay.Client
	secret string
}

// NewRazorpayGateway builds the gateway client from RAZORPAY_KEY_ID and
// RAZORPAY_KEY_SECRET.
func NewRazorpayGateway() (*RazorpayGateway, error) {
	keyID := os.Getenv("RAZORPAY_KEY_ID")
	keySecret := os.Getenv("RAZORPAY_KEY_SECRET")
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("razorpay credentials not configured")
	}
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		secret: keySecret,
	}, nil
}

// CreateOrder registers an order for the given amount in minor units and
// returns the gateway order id.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receipt string, notes map[string]interface{}) (string, error) {
	data := map[string]interface{}{
		"amount":   amountMinorUnits,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create gateway order: %v", err)
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return "", fmt.Errorf("gateway order response missing id")
	}
	return orderID, nil
}

// VerifySignature checks the callback proof in constant time.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return utils.VerifyGatewaySignature(orderID, paymentID, signature, g.secret)
}
