package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyGatewaySignature checks the keyed hash the payment gateway delivers
// with its callback: hex(HMAC-SHA256(orderID|paymentID, secret)). The
// comparison is constant time since the signature acts as a bearer proof
// and must not leak through timing.
func VerifyGatewaySignature(orderID, paymentID, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignGatewayPayload computes the signature the gateway would produce for an
// order/payment pair. Used by tests and the local gateway stub.
func SignGatewayPayload(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
