package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	billrepository "github.com/emadn88/elmcorner/internal/bill/repository"
	billservice "github.com/emadn88/elmcorner/internal/bill/service"
	"github.com/emadn88/elmcorner/internal/clock"
	"github.com/emadn88/elmcorner/internal/config"
	"github.com/emadn88/elmcorner/internal/locker"
	"github.com/emadn88/elmcorner/internal/paymentlink/domain"
	"github.com/emadn88/elmcorner/internal/paymentlink/repository"
	"github.com/emadn88/elmcorner/internal/providers/payment"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	rosterrepository "github.com/emadn88/elmcorner/internal/roster/repository"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
	packagerepository "github.com/emadn88/elmcorner/internal/studentpackage/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serverKey = "SB-Mid-server-test"

type fakeGateway struct {
	calls int
	err   error
}

func (g *fakeGateway) Name() string { return "midtrans" }

func (g *fakeGateway) CreateLink(ctx context.Context, req payment.LinkRequest) (payment.LinkResponse, error) {
	g.calls++
	if g.err != nil {
		return payment.LinkResponse{}, g.err
	}
	return payment.LinkResponse{Provider: "midtrans", Token: "snap", RedirectURL: "https://pay.test/" + req.OrderID}, nil
}

func (g *fakeGateway) VerifyNotification(orderID, statusCode, grossAmount, signature string) bool {
	return payment.VerifySignature(orderID, statusCode, grossAmount, serverKey, signature)
}

type testEnv struct {
	db      *gorm.DB
	svc     domain.Service
	gateway *fakeGateway
	bill    billdomain.Bill
}

func setup(t *testing.T) testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Token{},
		&billdomain.Bill{},
		&packagedomain.Package{},
		&rosterdomain.Student{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	billSvc := billservice.New(billservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fake,
		Repo:        billrepository.Provide(),
		PackageRepo: packagerepository.Provide(),
		RosterRepo:  rosterrepository.Provide(),
	})

	gw := &fakeGateway{}
	svc := New(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Cfg:        config.Config{PublicBaseURL: "https://elm.test"},
		Locker:     locker.NewKeyedMutex(),
		Gateway:    gw,
		Repo:       repository.Provide(),
		BillRepo:   billrepository.Provide(),
		BillSvc:    billSvc,
		RosterRepo: rosterrepository.Provide(),
	})

	now := fake.Now()
	require.NoError(t, db.Create(&rosterdomain.Student{ID: 1, Name: "Omar Ali", WhatsApp: "+201000000000", Status: "active", CreatedAt: now}).Error)
	bill := billdomain.Bill{
		ID: node.Generate(), StudentID: 1, Amount: 80, Currency: "USD", Status: billdomain.StatusUnpaid,
		BillDate: now, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, billrepository.Provide().Insert(context.Background(), db, &bill))
	return testEnv{db: db, svc: svc, gateway: gw, bill: bill}
}

func notification(orderID, status string) domain.GatewayNotification {
	return domain.GatewayNotification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       "80.00",
		SignatureKey:      payment.Signature(orderID, "200", "80.00", serverKey),
		TransactionStatus: status,
	}
}

func TestEnsureLinkCreatesOnce(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	first, err := env.svc.EnsureLink(ctx, env.bill.ID)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.True(t, strings.HasPrefix(first.PublicURL, "https://elm.test/public/bills/"))
	assert.Equal(t, "https://pay.test/"+first.OrderID, first.RedirectURL)

	second, err := env.svc.EnsureLink(ctx, env.bill.ID)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Empty(t, second.PublicURL)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 1, env.gateway.calls)
}

func TestEnsureLinkGatewayFailurePersistsNothing(t *testing.T) {
	env := setup(t)
	env.gateway.err = errors.New("boom")

	_, err := env.svc.EnsureLink(context.Background(), env.bill.ID)
	require.ErrorIs(t, err, domain.ErrPaymentGateway)

	var count int64
	require.NoError(t, env.db.Model(&domain.Token{}).Count(&count).Error)
	assert.Zero(t, count)

	bill, err := billrepository.Provide().FindByID(context.Background(), env.db, env.bill.ID)
	require.NoError(t, err)
	assert.Equal(t, billdomain.StatusUnpaid, bill.Status)
}

func TestEnsureLinkRejectsPaidAndUnknown(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	_, err := env.svc.EnsureLink(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrBillNotFound)

	require.NoError(t, env.db.Model(&billdomain.Bill{}).Where("id = ?", env.bill.ID).Update("status", billdomain.StatusPaid).Error)
	_, err = env.svc.EnsureLink(ctx, env.bill.ID)
	assert.ErrorIs(t, err, domain.ErrBillAlreadyPaid)
}

func TestHandleNotificationSettlementMarksPaid(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	link, err := env.svc.EnsureLink(ctx, env.bill.ID)
	require.NoError(t, err)

	res, err := env.svc.HandleNotification(ctx, notification(link.OrderID, domain.TransactionSettlement))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePaid, res.Outcome)

	// gateways retry webhooks
	res, err = env.svc.HandleNotification(ctx, notification(link.OrderID, domain.TransactionSettlement))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePaid, res.Outcome)

	bill, err := billrepository.Provide().FindByID(ctx, env.db, env.bill.ID)
	require.NoError(t, err)
	assert.True(t, bill.IsPaid())
	require.NotNil(t, bill.PaidAt)
}

func TestHandleNotificationCaptureRequiresFraudAccept(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	link, err := env.svc.EnsureLink(ctx, env.bill.ID)
	require.NoError(t, err)

	payload := notification(link.OrderID, domain.TransactionCapture)
	payload.FraudStatus = "challenge"
	res, err := env.svc.HandleNotification(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, res.Outcome)

	payload.FraudStatus = domain.FraudAccept
	res, err = env.svc.HandleNotification(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePaid, res.Outcome)
}

func TestHandleNotificationExpireRevokes(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	link, err := env.svc.EnsureLink(ctx, env.bill.ID)
	require.NoError(t, err)

	res, err := env.svc.HandleNotification(ctx, notification(link.OrderID, domain.TransactionExpire))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRevoked, res.Outcome)

	next, err := env.svc.EnsureLink(ctx, env.bill.ID)
	require.NoError(t, err)
	assert.True(t, next.Created)
	assert.NotEqual(t, link.OrderID, next.OrderID)
}

func TestHandleNotificationRejectsBadSignature(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	link, err := env.svc.EnsureLink(ctx, env.bill.ID)
	require.NoError(t, err)

	payload := notification(link.OrderID, domain.TransactionSettlement)
	payload.GrossAmount = "1.00"
	_, err = env.svc.HandleNotification(ctx, payload)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = env.svc.HandleNotification(ctx, notification("EC-unknown", domain.TransactionSettlement))
	assert.ErrorIs(t, err, domain.ErrUnknownOrder)
}

func TestResolveToken(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	link, err := env.svc.EnsureLink(ctx, env.bill.ID)
	require.NoError(t, err)

	raw := strings.TrimPrefix(link.PublicURL, "https://elm.test/public/bills/")
	view, err := env.svc.ResolveToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "Omar Ali", view.StudentName)
	assert.Equal(t, "80.00 USD", view.Display)
	assert.Equal(t, link.RedirectURL, view.PaymentURL)

	_, err = env.svc.ResolveToken(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}
