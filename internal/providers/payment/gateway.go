package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrGatewayUnavailable = errors.New("payment_gateway_unavailable")

type LinkRequest struct {
	OrderID      string
	Amount       float64
	Currency     string
	Description  string
	CustomerName string
	Email        string
	Phone        string
}

type LinkResponse struct {
	Provider    string
	Token       string
	RedirectURL string
}

// Gateway issues a hosted payment page for one order.
type Gateway interface {
	Name() string
	CreateLink(ctx context.Context, req LinkRequest) (LinkResponse, error)
	// VerifyNotification checks the signature the gateway attached to a webhook.
	VerifyNotification(orderID, statusCode, grossAmount, signature string) bool
}

// Signature computes the Midtrans webhook signature key.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func VerifySignature(orderID, statusCode, grossAmount, serverKey, signature string) bool {
	if serverKey == "" || signature == "" {
		return false
	}
	expected := Signature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) == 1
}

// HostedGateway is used when no gateway is configured; payers land on the public bill page.
type HostedGateway struct{}

func (HostedGateway) Name() string { return "hosted" }

func (HostedGateway) CreateLink(ctx context.Context, req LinkRequest) (LinkResponse, error) {
	return LinkResponse{Provider: "hosted"}, nil
}

func (HostedGateway) VerifyNotification(orderID, statusCode, grossAmount, signature string) bool {
	return false
}
