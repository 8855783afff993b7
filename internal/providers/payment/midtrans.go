package payment

import (
	"context"
	"fmt"
	"math"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

type snapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type MidtransGateway struct {
	serverKey string
	client    snapCreator
}

func NewMidtrans(serverKey string, production bool) *MidtransGateway {
	var client snap.Client
	if production {
		client.New(serverKey, midtrans.Production)
	} else {
		client.New(serverKey, midtrans.Sandbox)
	}
	return &MidtransGateway{serverKey: serverKey, client: &client}
}

func (g *MidtransGateway) Name() string { return "midtrans" }

func (g *MidtransGateway) CreateLink(ctx context.Context, req LinkRequest) (LinkResponse, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return LinkResponse{}, fmt.Errorf("midtrans: order id is required")
	}
	amount := int64(math.Round(req.Amount))
	if amount <= 0 {
		return LinkResponse{}, fmt.Errorf("midtrans: invalid amount %v", req.Amount)
	}
	if err := ctx.Err(); err != nil {
		return LinkResponse{}, err
	}

	first, last := splitName(req.CustomerName)
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: first,
			LName: last,
			Email: req.Email,
			Phone: req.Phone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:       req.OrderID,
				Price:    amount,
				Qty:      1,
				Name:     truncate(firstNonEmpty(req.Description, "Tutoring package"), 50),
				Category: "tutoring",
			},
		},
	}

	resp, gwErr := g.client.CreateTransaction(snapReq)
	if gwErr != nil {
		return LinkResponse{}, fmt.Errorf("midtrans: %s", gwErr.Message)
	}
	if resp == nil || resp.RedirectURL == "" {
		return LinkResponse{}, fmt.Errorf("midtrans: empty snap response")
	}
	return LinkResponse{Provider: g.Name(), Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (g *MidtransGateway) VerifyNotification(orderID, statusCode, grossAmount, signature string) bool {
	return VerifySignature(orderID, statusCode, grossAmount, g.serverKey, signature)
}

func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func firstNonEmpty(s, def string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return def
}
