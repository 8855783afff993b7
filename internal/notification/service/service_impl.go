package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/internal/clock"
	"github.com/emadn88/elmcorner/internal/config"
	"github.com/emadn88/elmcorner/internal/locker"
	"github.com/emadn88/elmcorner/internal/notification/domain"
	"github.com/emadn88/elmcorner/internal/notification/format"
	"github.com/emadn88/elmcorner/internal/observability/metrics"
	paymentlinkdomain "github.com/emadn88/elmcorner/internal/paymentlink/domain"
	"github.com/emadn88/elmcorner/internal/providers/whatsapp"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const maxDispatchKeyLen = 128

// Leaves room for the "bulk:" prefix and a package id.
const maxBatchKeyLen = maxDispatchKeyLen - 32

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Locker      locker.Locker
	Lifecycle   *config.LifecycleConfigHolder
	Sender      whatsapp.Provider
	Repo        domain.Repository
	PackageRepo packagedomain.Repository
	BillRepo    billdomain.Repository
	RosterRepo  rosterdomain.Repository
	Links       paymentlinkdomain.Service `optional:"true"`
	AuditSvc    auditdomain.Service       `optional:"true"`
	Metrics     *metrics.Metrics          `optional:"true"`
	LockMetrics *metrics.LockMetrics      `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	locker      locker.Locker
	lifecycle   *config.LifecycleConfigHolder
	sender      whatsapp.Provider
	repo        domain.Repository
	packageRepo packagedomain.Repository
	billRepo    billdomain.Repository
	rosterRepo  rosterdomain.Repository
	links       paymentlinkdomain.Service
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
	lockMetrics *metrics.LockMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("notification.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		locker:      p.Locker,
		lifecycle:   p.Lifecycle,
		sender:      p.Sender,
		repo:        p.Repo,
		packageRepo: p.PackageRepo,
		billRepo:    p.BillRepo,
		rosterRepo:  p.RosterRepo,
		links:       p.Links,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
		lockMetrics: p.LockMetrics,
	}
}

// Get returns a zero record for packages that were never notified.
func (s *Service) Get(ctx context.Context, packageID snowflake.ID) (domain.Record, error) {
	record, err := s.repo.FindRecord(ctx, s.db, packageID)
	if err != nil {
		return domain.Record{}, err
	}
	if record == nil {
		return domain.Record{PackageID: packageID}, nil
	}
	return *record, nil
}

func (s *Service) IsFirstNotification(ctx context.Context, packageID snowflake.ID) (bool, error) {
	record, err := s.Get(ctx, packageID)
	if err != nil {
		return false, err
	}
	return record.IsFirst(), nil
}

// RecordDispatch counts a dispatch once per key. Replaying a key leaves the
// record untouched; a key already stored for another package is rejected.
func (s *Service) RecordDispatch(ctx context.Context, req domain.RecordDispatchRequest) (domain.Record, error) {
	key := strings.TrimSpace(req.DispatchKey)
	if key == "" || len(key) > maxDispatchKeyLen {
		return domain.Record{}, domain.ErrInvalidDispatchKey
	}
	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		kind = domain.KindSend
	}
	if kind != domain.KindSend && kind != domain.KindReminder {
		return domain.Record{}, domain.ErrInvalidKind
	}
	sentAt := req.SentAt
	if sentAt.IsZero() {
		sentAt = s.clock.Now()
	}
	sentAt = sentAt.UTC()

	var out domain.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertDispatch(ctx, tx, &domain.Dispatch{
			ID:          s.genID.Generate(),
			PackageID:   req.PackageID,
			DispatchKey: key,
			Kind:        kind,
			MessageID:   req.MessageID,
			SentAt:      sentAt,
			CreatedAt:   s.clock.Now(),
		})
		if err != nil {
			return err
		}
		if inserted {
			if err := s.repo.IncrementRecord(ctx, tx, req.PackageID, sentAt); err != nil {
				return err
			}
		} else {
			existing, err := s.repo.FindDispatch(ctx, tx, key)
			if err != nil {
				return err
			}
			if existing != nil && existing.PackageID != req.PackageID {
				return domain.ErrInvalidDispatchKey
			}
		}
		record, err := s.repo.FindRecord(ctx, tx, req.PackageID)
		if err != nil {
			return err
		}
		if record != nil {
			out = *record
		} else {
			out = domain.Record{PackageID: req.PackageID}
		}
		return nil
	})
	if err != nil {
		return domain.Record{}, err
	}
	return out, nil
}

func (s *Service) Notify(ctx context.Context, req domain.NotifyRequest) (domain.NotifyResult, error) {
	res, _, err := s.notify(ctx, req, false)
	return res, err
}

// notify reports skipped=true when onlyFirst is set and the package was
// already notified. The check runs under the package lock.
func (s *Service) notify(ctx context.Context, req domain.NotifyRequest, onlyFirst bool) (domain.NotifyResult, bool, error) {
	key := strings.TrimSpace(req.DispatchKey)
	if key == "" {
		key = "manual:" + ulid.Make().String()
	}
	if len(key) > maxDispatchKeyLen {
		return domain.NotifyResult{}, false, domain.ErrInvalidDispatchKey
	}

	release, err := s.locker.Acquire(ctx, locker.NotificationKey(req.PackageID))
	if err != nil {
		return domain.NotifyResult{}, false, err
	}
	defer release()

	if replay, err := s.replay(ctx, req.PackageID, key); err != nil || replay != nil {
		if err != nil {
			return domain.NotifyResult{}, false, err
		}
		return *replay, false, nil
	}

	pkg, err := s.packageRepo.FindByID(ctx, s.db, req.PackageID)
	if err != nil {
		return domain.NotifyResult{}, false, err
	}
	if pkg == nil {
		return domain.NotifyResult{}, false, domain.ErrPackageNotFound
	}
	if pkg.Status != packagedomain.StatusFinished {
		return domain.NotifyResult{}, false, domain.ErrPackageNotFinished
	}

	record, err := s.Get(ctx, pkg.ID)
	if err != nil {
		return domain.NotifyResult{}, false, err
	}
	if onlyFirst && !record.IsFirst() {
		return domain.NotifyResult{PackageID: pkg.ID, NotificationCount: record.NotificationCount}, true, nil
	}

	student, err := s.rosterRepo.FindStudent(ctx, s.db, pkg.StudentID)
	if err != nil {
		return domain.NotifyResult{}, false, err
	}
	if student == nil || strings.TrimSpace(student.WhatsApp) == "" {
		return domain.NotifyResult{}, false, domain.ErrMissingPhone
	}

	bills, err := s.billRepo.ListByPackageIDs(ctx, s.db, []snowflake.ID{pkg.ID})
	if err != nil {
		return domain.NotifyResult{}, false, err
	}
	summary := billdomain.Summarize(pkg.ID, pkg.Currency, bills)
	amount := summary.TotalAmount
	if summary.BillCount == 0 {
		amount = pkg.TotalHours * pkg.HourPrice
	}

	kind := domain.KindFor(record)
	link := s.paymentLink(ctx, pkg.ID)
	body, err := s.render(kind, format.MessageVars{
		StudentName:  student.Name,
		Round:        pkg.RoundNumber,
		TotalHours:   pkg.TotalHours,
		Amount:       amount,
		UnpaidAmount: summary.UnpaidAmount,
		Currency:     pkg.Currency,
		PaymentLink:  link,
	})
	if err != nil {
		return domain.NotifyResult{}, false, err
	}

	messageID, err := s.sender.SendText(ctx, student.WhatsApp, body)
	if err != nil {
		s.metrics.RecordNotification(ctx, kind, "failed")
		s.log.Warn("whatsapp dispatch failed",
			zap.String("package_id", pkg.ID.String()),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return domain.NotifyResult{}, false, fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}

	sentAt := s.clock.Now()
	updated, err := s.RecordDispatch(ctx, domain.RecordDispatchRequest{
		PackageID:   pkg.ID,
		SentAt:      sentAt,
		DispatchKey: key,
		Kind:        kind,
		MessageID:   messageID,
	})
	if err != nil {
		return domain.NotifyResult{}, false, err
	}

	s.metrics.RecordNotification(ctx, kind, "sent")
	s.emitAudit(ctx, pkg.ID, map[string]any{
		"kind":               kind,
		"dispatch_key":       key,
		"notification_count": updated.NotificationCount,
		"whatsapp":           student.WhatsApp,
	})

	return domain.NotifyResult{
		PackageID:         pkg.ID,
		Kind:              kind,
		DispatchKey:       key,
		MessageID:         messageID,
		NotificationCount: updated.NotificationCount,
		SentAt:            sentAt.UTC(),
		PaymentLink:       link,
	}, false, nil
}

func (s *Service) replay(ctx context.Context, packageID snowflake.ID, key string) (*domain.NotifyResult, error) {
	dispatch, err := s.repo.FindDispatch(ctx, s.db, key)
	if err != nil || dispatch == nil {
		return nil, err
	}
	if dispatch.PackageID != packageID {
		return nil, domain.ErrInvalidDispatchKey
	}
	record, err := s.Get(ctx, packageID)
	if err != nil {
		return nil, err
	}
	return &domain.NotifyResult{
		PackageID:         packageID,
		Kind:              dispatch.Kind,
		DispatchKey:       dispatch.DispatchKey,
		MessageID:         dispatch.MessageID,
		NotificationCount: record.NotificationCount,
		SentAt:            dispatch.SentAt.UTC(),
		Replayed:          true,
	}, nil
}

// paymentLink is best effort; a message goes out without a link rather than not at all.
func (s *Service) paymentLink(ctx context.Context, packageID snowflake.ID) string {
	if s.links == nil {
		return ""
	}
	bill, err := s.billRepo.FindAutoBill(ctx, s.db, packageID)
	if err != nil || bill == nil || bill.IsPaid() {
		return ""
	}
	link, err := s.links.EnsureLink(ctx, bill.ID)
	if err != nil {
		s.log.Warn("payment link unavailable", zap.String("bill_id", bill.ID.String()), zap.Error(err))
		return ""
	}
	if link.PublicURL != "" {
		return link.PublicURL
	}
	return link.RedirectURL
}

func (s *Service) render(kind string, vars format.MessageVars) (string, error) {
	cfg := s.lifecycle.Get().Notifications
	tmpl := cfg.SendTemplate
	if kind == domain.KindReminder {
		tmpl = cfg.ReminderTemplate
	}
	body, err := format.FormatMessage(tmpl, vars)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTemplateRender, err)
	}
	return body, nil
}

// BulkNotify processes each package independently; one failure never aborts the rest.
// Item keys derive from BatchKey when set, so a retried batch replays instead of resending.
func (s *Service) BulkNotify(ctx context.Context, req domain.BulkNotifyRequest) (domain.BulkNotifyResult, error) {
	ids := req.PackageIDs.Set()
	if len(ids) == 0 {
		return domain.BulkNotifyResult{}, domain.ErrEmptyBulkRequest
	}
	batch := strings.TrimSpace(req.BatchKey)
	if len(batch) > maxBatchKeyLen {
		return domain.BulkNotifyResult{}, domain.ErrInvalidDispatchKey
	}
	if batch == "" {
		batch = ulid.Make().String()
	}
	cfg := s.lifecycle.Get().Notifications
	if cfg.BulkMaxItems > 0 && len(ids) > cfg.BulkMaxItems {
		return domain.BulkNotifyResult{}, domain.ErrBulkRequestTooLarge
	}
	s.lockMetrics.ObserveBulkSize(len(ids))

	limit := cfg.BulkConcurrency
	if limit <= 0 {
		limit = 1
	}
	results := make([]domain.BulkItemResult, len(ids))

	var (
		g   errgroup.Group
		mu  sync.Mutex
		out domain.BulkNotifyResult
	)
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			item := domain.BulkItemResult{PackageID: id}
			res, skipped, err := s.notify(ctx, domain.NotifyRequest{
				PackageID:   id,
				DispatchKey: fmt.Sprintf("bulk:%s:%s", batch, id),
			}, req.OnlyFirst)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				item.Status = domain.BulkStatusFailed
				item.Error = itemError(err)
				out.FailedCount++
			case skipped:
				item.Status = domain.BulkStatusSkipped
				item.NotificationCount = res.NotificationCount
				out.SkippedCount++
			default:
				item.Status = domain.BulkStatusSent
				item.Kind = res.Kind
				item.NotificationCount = res.NotificationCount
				out.SuccessCount++
			}
			results[i] = item
			return nil
		})
	}
	_ = g.Wait()

	out.Results = results
	s.log.Info("bulk notify finished",
		zap.String("batch", batch),
		zap.Int("success", out.SuccessCount),
		zap.Int("failed", out.FailedCount),
		zap.Int("skipped", out.SkippedCount),
	)
	return out, nil
}

// itemError uses the same codes the HTTP layer renders for single requests.
func itemError(err error) *domain.ItemError {
	code := "internal_error"
	switch {
	case errors.Is(err, domain.ErrPackageNotFound):
		code = "not_found"
	case errors.Is(err, domain.ErrPackageNotFinished):
		code = "conflict"
	case errors.Is(err, domain.ErrMissingPhone),
		errors.Is(err, domain.ErrInvalidDispatchKey),
		errors.Is(err, domain.ErrTemplateRender):
		code = "validation_error"
	case errors.Is(err, domain.ErrDispatchFailed):
		code = "dispatch_failed"
	case errors.Is(err, locker.ErrLockTimeout):
		code = "conflict"
	}
	return &domain.ItemError{Code: code, Message: err.Error()}
}

func (s *Service) emitAudit(ctx context.Context, packageID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := packageID.String()
	_ = s.auditSvc.AuditLog(ctx, "", nil, auditdomain.ActionNotificationSent, "package", &targetID, metadata)
}
