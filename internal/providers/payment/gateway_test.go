package payment

import (
	"context"
	"testing"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnap struct {
	got  *snap.Request
	resp *snap.Response
	err  *midtrans.Error
}

func (f *fakeSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	f.got = req
	return f.resp, f.err
}

func TestSignatureRoundTrip(t *testing.T) {
	sig := Signature("order-1", "200", "80000.00", "server-key")
	assert.Len(t, sig, 128)
	assert.True(t, VerifySignature("order-1", "200", "80000.00", "server-key", sig))
	assert.False(t, VerifySignature("order-1", "200", "80001.00", "server-key", sig))
	assert.False(t, VerifySignature("order-1", "200", "80000.00", "", sig))
}

func TestMidtransCreateLink(t *testing.T) {
	fake := &fakeSnap{resp: &snap.Response{Token: "tok", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/tok"}}
	g := &MidtransGateway{serverKey: "k", client: fake}

	resp, err := g.CreateLink(context.Background(), LinkRequest{OrderID: "ord-1", Amount: 79.6, CustomerName: "Omar El Sayed"})
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "midtrans", resp.Provider)
	assert.EqualValues(t, 80, fake.got.TransactionDetails.GrossAmt)
	assert.Equal(t, "Omar", fake.got.CustomerDetail.FName)
	assert.Equal(t, "El Sayed", fake.got.CustomerDetail.LName)
	require.NotNil(t, fake.got.Items)
	assert.Equal(t, "Tutoring package", (*fake.got.Items)[0].Name)
}

func TestMidtransCreateLinkError(t *testing.T) {
	fake := &fakeSnap{err: &midtrans.Error{Message: "unauthorized", StatusCode: 401}}
	g := &MidtransGateway{serverKey: "k", client: fake}

	_, err := g.CreateLink(context.Background(), LinkRequest{OrderID: "ord-1", Amount: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")

	_, err = g.CreateLink(context.Background(), LinkRequest{OrderID: "ord-1", Amount: 0})
	assert.Error(t, err)
}

func TestHostedGateway(t *testing.T) {
	resp, err := HostedGateway{}.CreateLink(context.Background(), LinkRequest{OrderID: "x", Amount: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.RedirectURL)
	assert.False(t, HostedGateway{}.VerifyNotification("x", "200", "1", "sig"))
}
