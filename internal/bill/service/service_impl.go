package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	"github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/internal/clock"
	"github.com/emadn88/elmcorner/internal/observability/metrics"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	PackageRepo packagedomain.Repository
	RosterRepo  rosterdomain.Repository
	AuditSvc    auditdomain.Service `optional:"true"`
	Metrics     *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	packageRepo packagedomain.Repository
	rosterRepo  rosterdomain.Repository
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("bill.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		packageRepo: p.PackageRepo,
		rosterRepo:  p.RosterRepo,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) Summarize(ctx context.Context, packageID snowflake.ID) (domain.BillSummary, error) {
	pkg, err := s.packageRepo.FindByID(ctx, s.db, packageID)
	if err != nil {
		return domain.BillSummary{}, err
	}
	if pkg == nil {
		return domain.BillSummary{}, domain.ErrPackageNotFound
	}

	bills, err := s.repo.ListByPackageIDs(ctx, s.db, []snowflake.ID{packageID})
	if err != nil {
		return domain.BillSummary{}, err
	}
	return domain.Summarize(packageID, pkg.Currency, bills), nil
}

// SummarizeMany skips unknown package ids.
func (s *Service) SummarizeMany(ctx context.Context, packageIDs []snowflake.ID) (map[snowflake.ID]domain.BillSummary, error) {
	pkgs, err := s.packageRepo.FindByIDs(ctx, s.db, packageIDs)
	if err != nil {
		return nil, err
	}
	bills, err := s.repo.ListByPackageIDs(ctx, s.db, packageIDs)
	if err != nil {
		return nil, err
	}

	grouped := make(map[snowflake.ID][]domain.Bill, len(pkgs))
	for _, b := range bills {
		if b.PackageID != nil {
			grouped[*b.PackageID] = append(grouped[*b.PackageID], b)
		}
	}

	out := make(map[snowflake.ID]domain.BillSummary, len(pkgs))
	for id, pkg := range pkgs {
		out[id] = domain.Summarize(id, pkg.Currency, grouped[id])
	}
	return out, nil
}

func (s *Service) SummarizeStudent(ctx context.Context, studentID snowflake.ID) (domain.StudentBillSummary, error) {
	student, err := s.rosterRepo.FindStudent(ctx, s.db, studentID)
	if err != nil {
		return domain.StudentBillSummary{}, err
	}
	if student == nil {
		return domain.StudentBillSummary{}, domain.ErrStudentNotFound
	}

	bills, err := s.repo.ListByStudentID(ctx, s.db, studentID)
	if err != nil {
		return domain.StudentBillSummary{}, err
	}
	return domain.StudentBillSummary{StudentID: studentID, Totals: domain.GroupByCurrency(bills)}, nil
}

func (s *Service) CreateCustomBill(ctx context.Context, req domain.CreateCustomBillRequest) (domain.Bill, error) {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return domain.Bill{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return domain.Bill{}, domain.ErrInvalidCurrency
	}

	student, err := s.rosterRepo.FindStudent(ctx, s.db, req.StudentID)
	if err != nil {
		return domain.Bill{}, err
	}
	if student == nil {
		return domain.Bill{}, domain.ErrStudentNotFound
	}

	now := s.clock.Now()
	billDate := now
	if req.BillDate != nil {
		billDate = req.BillDate.UTC()
	}
	bill := domain.Bill{
		ID:          s.genID.Generate(),
		StudentID:   req.StudentID,
		Amount:      req.Amount,
		Currency:    currency,
		Status:      domain.StatusUnpaid,
		IsCustom:    true,
		Description: strings.TrimSpace(req.Description),
		BillDate:    billDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &bill); err != nil {
		return domain.Bill{}, err
	}

	s.metrics.RecordBillEvent(ctx, "custom_created", bill.Currency)
	s.emitAudit(ctx, auditdomain.ActionBillCustomCreated, bill, map[string]any{
		"student_id": bill.StudentID.String(),
		"amount":     bill.Amount,
		"currency":   bill.Currency,
	})
	return bill, nil
}

// MarkPaid is idempotent: a paid bill is returned as stored, keeping its original paid_at.
func (s *Service) MarkPaid(ctx context.Context, req domain.MarkPaidRequest) (domain.Bill, error) {
	now := s.clock.Now()
	paidAt := now
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		paidAt = req.PaidAt.UTC()
	}

	swapped, err := s.repo.MarkPaid(ctx, s.db, req.BillID, paidAt, now)
	if err != nil {
		return domain.Bill{}, err
	}

	bill, err := s.repo.FindByID(ctx, s.db, req.BillID)
	if err != nil {
		return domain.Bill{}, err
	}
	if bill == nil {
		return domain.Bill{}, domain.ErrBillNotFound
	}

	if swapped {
		s.metrics.RecordBillEvent(ctx, "paid", bill.Currency)
		s.emitAudit(ctx, auditdomain.ActionBillPaid, *bill, map[string]any{
			"amount":   bill.Amount,
			"currency": bill.Currency,
			"paid_at":  paidAt,
		})
	}
	return *bill, nil
}

func (s *Service) Get(ctx context.Context, billID snowflake.ID) (domain.Bill, error) {
	bill, err := s.repo.FindByID(ctx, s.db, billID)
	if err != nil {
		return domain.Bill{}, err
	}
	if bill == nil {
		return domain.Bill{}, domain.ErrBillNotFound
	}
	return *bill, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBillRequest) (domain.ListBillResponse, error) {
	filter, err := buildFilter(req)
	if err != nil {
		return domain.ListBillResponse{}, err
	}

	position, err := pagination.DecodePosition(req.PageToken)
	if err != nil {
		return domain.ListBillResponse{}, err
	}
	pageSize := pagination.NormalizePageSize(req.PageSize)

	items, err := s.repo.List(ctx, s.db, filter, position, pageSize)
	if err != nil {
		return domain.ListBillResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(b *domain.Bill) string {
		return pagination.EncodePosition(b.ID, b.CreatedAt)
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	// Totals cover every bill matching the filter, not only this page.
	totals, err := s.repo.Totals(ctx, s.db, filter)
	if err != nil {
		return domain.ListBillResponse{}, err
	}

	bills := make([]domain.Bill, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		bills = append(bills, *item)
	}
	if totals == nil {
		totals = []domain.CurrencyTotal{}
	}
	return domain.ListBillResponse{PageInfo: *pageInfo, Bills: bills, Totals: totals}, nil
}

func buildFilter(req domain.ListBillRequest) (domain.ListFilter, error) {
	if req.Month != nil && (req.Year == nil || *req.Month < 1 || *req.Month > 12) {
		return domain.ListFilter{}, domain.ErrInvalidPeriod
	}
	if req.Year != nil && (*req.Year < 1970 || *req.Year > 9999) {
		return domain.ListFilter{}, domain.ErrInvalidPeriod
	}

	statuses := req.Status.Set()
	for i, status := range statuses {
		status = strings.ToLower(strings.TrimSpace(status))
		if status != domain.StatusPaid && status != domain.StatusUnpaid {
			return domain.ListFilter{}, domain.ErrInvalidStatus
		}
		statuses[i] = status
	}

	return domain.ListFilter{
		Year:       req.Year,
		Month:      req.Month,
		Statuses:   statuses,
		StudentIDs: req.StudentID.Set(),
		TeacherIDs: req.TeacherID.Set(),
		IsCustom:   req.IsCustom,
	}, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, bill domain.Bill, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := bill.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "bill", &targetID, metadata)
}
