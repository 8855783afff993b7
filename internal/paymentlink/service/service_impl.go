package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/internal/clock"
	"github.com/emadn88/elmcorner/internal/config"
	"github.com/emadn88/elmcorner/internal/locker"
	"github.com/emadn88/elmcorner/internal/observability/metrics"
	"github.com/emadn88/elmcorner/internal/paymentlink/domain"
	"github.com/emadn88/elmcorner/internal/providers/payment"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	"github.com/emadn88/elmcorner/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Locker     locker.Locker
	Gateway    payment.Gateway
	Repo       domain.Repository
	BillRepo   billdomain.Repository
	BillSvc    billdomain.Service
	RosterRepo rosterdomain.Repository
	AuditSvc   auditdomain.Service `optional:"true"`
	Metrics    *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	publicBase string
	locker     locker.Locker
	gateway    payment.Gateway
	repo       domain.Repository
	billRepo   billdomain.Repository
	billSvc    billdomain.Service
	rosterRepo rosterdomain.Repository
	auditSvc   auditdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("paymentlink.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		publicBase: strings.TrimRight(p.Cfg.PublicBaseURL, "/"),
		locker:     p.Locker,
		gateway:    p.Gateway,
		repo:       p.Repo,
		billRepo:   p.BillRepo,
		billSvc:    p.BillSvc,
		rosterRepo: p.RosterRepo,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
	}
}

// EnsureLink returns the bill's active link or creates one. Nothing is
// persisted when the gateway rejects the order.
func (s *Service) EnsureLink(ctx context.Context, billID snowflake.ID) (domain.PaymentLink, error) {
	release, err := s.locker.Acquire(ctx, locker.BillKey(billID))
	if err != nil {
		return domain.PaymentLink{}, err
	}
	defer release()

	bill, err := s.billRepo.FindByID(ctx, s.db, billID)
	if err != nil {
		return domain.PaymentLink{}, err
	}
	if bill == nil {
		return domain.PaymentLink{}, domain.ErrBillNotFound
	}
	if bill.IsPaid() {
		return domain.PaymentLink{}, domain.ErrBillAlreadyPaid
	}

	existing, err := s.repo.FindActiveByBillID(ctx, s.db, bill.ID)
	if err != nil {
		return domain.PaymentLink{}, err
	}
	if existing != nil {
		return toLink(*existing, "", false), nil
	}

	rawToken, err := generateToken()
	if err != nil {
		return domain.PaymentLink{}, err
	}
	tokenID := s.genID.Generate()
	orderID := fmt.Sprintf("EC-%s-%s", bill.ID, tokenID)
	publicURL := s.publicURL(rawToken)

	req := payment.LinkRequest{
		OrderID:     orderID,
		Amount:      bill.Amount,
		Currency:    bill.Currency,
		Description: bill.Description,
	}
	student, err := s.rosterRepo.FindStudent(ctx, s.db, bill.StudentID)
	if err != nil {
		return domain.PaymentLink{}, err
	}
	if student != nil {
		req.CustomerName = student.Name
		req.Email = student.Email
		req.Phone = student.WhatsApp
	}

	resp, err := s.gateway.CreateLink(ctx, req)
	if err != nil {
		s.metrics.RecordPaymentEvent(ctx, s.gateway.Name(), "link_failed")
		s.log.Warn("payment gateway rejected order",
			zap.String("bill_id", bill.ID.String()),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return domain.PaymentLink{}, fmt.Errorf("%w: %v", domain.ErrPaymentGateway, err)
	}

	redirect := strings.TrimSpace(resp.RedirectURL)
	if redirect == "" {
		redirect = publicURL
	}
	token := domain.Token{
		ID:          tokenID,
		BillID:      bill.ID,
		TokenHash:   hashToken(rawToken),
		OrderID:     orderID,
		Provider:    s.gateway.Name(),
		RedirectURL: redirect,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &token); err != nil {
		return domain.PaymentLink{}, err
	}

	s.metrics.RecordPaymentEvent(ctx, token.Provider, "link_created")
	s.emitAudit(ctx, auditdomain.ActionPaymentLinkCreated, bill.ID, map[string]any{
		"order_id":     orderID,
		"provider":     token.Provider,
		"redirect_url": redirect,
	})
	return toLink(token, publicURL, true), nil
}

func (s *Service) HandleNotification(ctx context.Context, payload domain.GatewayNotification) (domain.NotificationResult, error) {
	if !s.gateway.VerifyNotification(payload.OrderID, payload.StatusCode, payload.GrossAmount, payload.SignatureKey) {
		s.metrics.RecordPaymentEvent(ctx, s.gateway.Name(), "invalid_signature")
		return domain.NotificationResult{}, domain.ErrInvalidSignature
	}

	token, err := s.repo.FindByOrderID(ctx, s.db, payload.OrderID)
	if err != nil {
		return domain.NotificationResult{}, err
	}
	if token == nil {
		return domain.NotificationResult{}, domain.ErrUnknownOrder
	}

	result := domain.NotificationResult{OrderID: token.OrderID, BillID: token.BillID, Outcome: domain.OutcomeIgnored}
	status := strings.ToLower(strings.TrimSpace(payload.TransactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(payload.FraudStatus))

	switch {
	case status == domain.TransactionSettlement,
		status == domain.TransactionCapture && (fraud == "" || fraud == domain.FraudAccept):
		if _, err := s.billSvc.MarkPaid(ctx, billdomain.MarkPaidRequest{BillID: token.BillID}); err != nil {
			if errors.Is(err, billdomain.ErrBillNotFound) {
				return domain.NotificationResult{}, domain.ErrBillNotFound
			}
			return domain.NotificationResult{}, err
		}
		result.Outcome = domain.OutcomePaid
	case status == domain.TransactionExpire,
		status == domain.TransactionCancel,
		status == domain.TransactionDeny,
		status == domain.TransactionFailure:
		if err := s.repo.Revoke(ctx, s.db, token.ID, s.clock.Now()); err != nil {
			return domain.NotificationResult{}, err
		}
		result.Outcome = domain.OutcomeRevoked
	}

	s.metrics.RecordPaymentEvent(ctx, token.Provider, status)
	s.log.Info("payment notification handled",
		zap.String("order_id", token.OrderID),
		zap.String("transaction_status", status),
		zap.String("outcome", result.Outcome),
	)
	return result, nil
}

func (s *Service) ResolveToken(ctx context.Context, rawToken string) (domain.PublicBill, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return domain.PublicBill{}, domain.ErrTokenNotFound
	}
	token, err := s.repo.FindActiveByHash(ctx, s.db, hashToken(rawToken))
	if err != nil {
		return domain.PublicBill{}, err
	}
	if token == nil {
		return domain.PublicBill{}, domain.ErrTokenNotFound
	}

	bill, err := s.billRepo.FindByID(ctx, s.db, token.BillID)
	if err != nil {
		return domain.PublicBill{}, err
	}
	if bill == nil {
		return domain.PublicBill{}, domain.ErrTokenNotFound
	}

	view := domain.PublicBill{
		BillID:      bill.ID,
		Description: bill.Description,
		Amount:      bill.Amount,
		Currency:    bill.Currency,
		Display:     money.Format(bill.Amount, bill.Currency),
		Status:      bill.Status,
		BillDate:    bill.BillDate,
		PaidAt:      bill.PaidAt,
	}
	if !bill.IsPaid() {
		view.PaymentURL = token.RedirectURL
	}
	student, err := s.rosterRepo.FindStudent(ctx, s.db, bill.StudentID)
	if err != nil {
		return domain.PublicBill{}, err
	}
	if student != nil {
		view.StudentName = student.Name
	}
	return view, nil
}

func (s *Service) publicURL(rawToken string) string {
	return s.publicBase + "/public/bills/" + rawToken
}

func toLink(token domain.Token, publicURL string, created bool) domain.PaymentLink {
	return domain.PaymentLink{
		BillID:      token.BillID,
		OrderID:     token.OrderID,
		Provider:    token.Provider,
		RedirectURL: token.RedirectURL,
		PublicURL:   publicURL,
		Created:     created,
		CreatedAt:   token.CreatedAt,
	}
}

func (s *Service) emitAudit(ctx context.Context, action string, billID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := billID.String()
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "bill", &targetID, metadata)
}
