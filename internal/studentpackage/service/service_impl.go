package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/internal/clock"
	"github.com/emadn88/elmcorner/internal/locker"
	notificationdomain "github.com/emadn88/elmcorner/internal/notification/domain"
	"github.com/emadn88/elmcorner/internal/observability/metrics"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	"github.com/emadn88/elmcorner/internal/studentpackage/domain"
	"github.com/emadn88/elmcorner/pkg/db"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Locker           locker.Locker
	Repo             domain.Repository
	BillRepo         billdomain.Repository
	RosterRepo       rosterdomain.Repository
	NotificationRepo notificationdomain.Repository
	AuditSvc         auditdomain.Service `optional:"true"`
	Metrics          *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	locker           locker.Locker
	repo             domain.Repository
	billRepo         billdomain.Repository
	rosterRepo       rosterdomain.Repository
	notificationRepo notificationdomain.Repository
	auditSvc         auditdomain.Service
	metrics          *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("studentpackage.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		locker:           p.Locker,
		repo:             p.Repo,
		billRepo:         p.BillRepo,
		rosterRepo:       p.RosterRepo,
		notificationRepo: p.NotificationRepo,
		auditSvc:         p.AuditSvc,
		metrics:          p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePackageRequest) (domain.Package, error) {
	if !validHours(req.TotalHours) {
		return domain.Package{}, domain.ErrInvalidTotalHours
	}
	if math.IsNaN(req.HourPrice) || math.IsInf(req.HourPrice, 0) || req.HourPrice < 0 {
		return domain.Package{}, domain.ErrInvalidHourPrice
	}
	currency := normalizeCurrency(req.Currency)
	if currency == "" {
		return domain.Package{}, domain.ErrInvalidCurrency
	}
	if req.StudentID == 0 {
		return domain.Package{}, domain.ErrStudentNotFound
	}

	release, err := s.locker.Acquire(ctx, locker.StudentKey(req.StudentID))
	if err != nil {
		return domain.Package{}, err
	}
	defer release()

	now := s.clock.Now()
	startDate := now
	if req.StartDate != nil {
		startDate = req.StartDate.UTC()
	}

	var pkg domain.Package
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		student, err := s.rosterRepo.FindStudent(ctx, tx, req.StudentID)
		if err != nil {
			return err
		}
		if student == nil {
			return domain.ErrStudentNotFound
		}

		created, err := s.insertRound(ctx, tx, req.StudentID, req.TotalHours, req.HourPrice, currency, startDate, now)
		if err != nil {
			return err
		}
		pkg = created
		return nil
	})
	if err != nil {
		return domain.Package{}, err
	}

	s.metrics.RecordPackageTransition(ctx, "created")
	s.emitAudit(ctx, auditdomain.ActionPackageCreated, pkg, map[string]any{
		"student_id":   pkg.StudentID.String(),
		"round_number": pkg.RoundNumber,
		"total_hours":  pkg.TotalHours,
		"hour_price":   pkg.HourPrice,
		"currency":     pkg.Currency,
	})
	return pkg, nil
}

// insertRound enforces one active package per student, caller holds the student lock.
func (s *Service) insertRound(ctx context.Context, tx *gorm.DB, studentID snowflake.ID, totalHours, hourPrice float64, currency string, startDate, now time.Time) (domain.Package, error) {
	active, err := s.repo.FindActiveByStudent(ctx, tx, studentID)
	if err != nil {
		return domain.Package{}, err
	}
	if active != nil {
		return domain.Package{}, domain.ErrActivePackageExists
	}

	maxRound, err := s.repo.MaxRound(ctx, tx, studentID)
	if err != nil {
		return domain.Package{}, err
	}

	pkg := domain.Package{
		ID:          s.genID.Generate(),
		StudentID:   studentID,
		RoundNumber: maxRound + 1,
		StartDate:   startDate,
		TotalHours:  totalHours,
		HourPrice:   hourPrice,
		Currency:    currency,
		Status:      domain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, tx, &pkg); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Package{}, domain.ErrActivePackageExists
		}
		return domain.Package{}, err
	}
	return pkg, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.PackageDetail, error) {
	pkg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.PackageDetail{}, err
	}
	if pkg == nil {
		return domain.PackageDetail{}, domain.ErrPackageNotFound
	}

	details, err := s.buildDetails(ctx, []*domain.Package{pkg})
	if err != nil {
		return domain.PackageDetail{}, err
	}
	return details[0], nil
}

func (s *Service) List(ctx context.Context, req domain.ListPackageRequest) (domain.ListPackageResponse, error) {
	statuses := req.Status.Set()
	for _, status := range statuses {
		if status != domain.StatusActive && status != domain.StatusFinished {
			return domain.ListPackageResponse{}, domain.ErrInvalidStatus
		}
	}

	return s.list(ctx, domain.ListFilter{
		StudentIDs:  req.StudentID.Set(),
		Statuses:    statuses,
		RoundNumber: req.RoundNumber,
	}, req.PageToken, req.PageSize)
}

func (s *Service) ListFinished(ctx context.Context, req domain.ListFinishedRequest) (domain.ListPackageResponse, error) {
	from, to, err := periodBounds(req.Year, req.Month)
	if err != nil {
		return domain.ListPackageResponse{}, err
	}
	return s.list(ctx, domain.ListFilter{
		StudentIDs:   req.StudentID.Set(),
		Statuses:     []string{domain.StatusFinished},
		FinishedFrom: from,
		FinishedTo:   to,
	}, req.PageToken, req.PageSize)
}

func (s *Service) list(ctx context.Context, filter domain.ListFilter, pageToken string, size int) (domain.ListPackageResponse, error) {
	position, err := pagination.DecodePosition(pageToken)
	if err != nil {
		return domain.ListPackageResponse{}, err
	}
	pageSize := pagination.NormalizePageSize(size)

	items, err := s.repo.List(ctx, s.db, filter, position, pageSize)
	if err != nil {
		return domain.ListPackageResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(p *domain.Package) string {
		return pagination.EncodePosition(p.ID, p.CreatedAt)
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	details, err := s.buildDetails(ctx, items)
	if err != nil {
		return domain.ListPackageResponse{}, err
	}
	return domain.ListPackageResponse{PageInfo: *pageInfo, Packages: details}, nil
}

// buildDetails batches the bill, notification and student lookups for a page.
func (s *Service) buildDetails(ctx context.Context, pkgs []*domain.Package) ([]domain.PackageDetail, error) {
	ids := make([]snowflake.ID, 0, len(pkgs))
	studentIDs := make([]snowflake.ID, 0, len(pkgs))
	for _, p := range pkgs {
		ids = append(ids, p.ID)
		studentIDs = append(studentIDs, p.StudentID)
	}

	bills, err := s.billRepo.ListByPackageIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	billsByPackage := make(map[snowflake.ID][]billdomain.Bill, len(pkgs))
	for _, b := range bills {
		if b.PackageID != nil {
			billsByPackage[*b.PackageID] = append(billsByPackage[*b.PackageID], b)
		}
	}

	records, err := s.notificationRepo.FindRecords(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	students, err := s.rosterRepo.FindStudents(ctx, s.db, studentIDs)
	if err != nil {
		return nil, err
	}

	details := make([]domain.PackageDetail, 0, len(pkgs))
	for _, p := range pkgs {
		record := records[p.ID]
		details = append(details, domain.PackageDetail{
			Package:     *p,
			StudentName: students[p.StudentID].Name,
			BillSummary: billdomain.Summarize(p.ID, p.Currency, billsByPackage[p.ID]),
			Notification: domain.NotificationState{
				NotificationCount:    record.NotificationCount,
				LastNotificationSent: record.LastNotificationSent,
			},
		})
	}
	return details, nil
}

// CheckAndClose finishes an exhausted package and creates its auto bill atomically.
// It returns the bill only when this call performed the transition.
func (s *Service) CheckAndClose(ctx context.Context, tx *gorm.DB, packageID snowflake.ID) (*billdomain.Bill, error) {
	pkg, err := s.repo.FindByID(ctx, tx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, domain.ErrPackageNotFound
	}
	if !pkg.IsActive() || !pkg.Exhausted() {
		return nil, nil
	}
	return s.finish(ctx, tx, *pkg)
}

func (s *Service) finish(ctx context.Context, tx *gorm.DB, pkg domain.Package) (*billdomain.Bill, error) {
	now := s.clock.Now()
	swapped, err := s.repo.MarkFinished(ctx, tx, pkg.ID, now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, nil
	}

	existing, err := s.billRepo.FindAutoBill(ctx, tx, pkg.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	bill, err := billdomain.NewAutoBill(s.genID.Generate(), billdomain.PackageTerms{
		ID:         pkg.ID,
		StudentID:  pkg.StudentID,
		TotalHours: pkg.TotalHours,
		HourPrice:  pkg.HourPrice,
		Currency:   pkg.Currency,
	}, pkg.Currency, now)
	if err != nil {
		return nil, err
	}
	if err := s.billRepo.Insert(ctx, tx, &bill); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, nil
		}
		return nil, err
	}

	s.log.Info("package finished",
		zap.String("package_id", pkg.ID.String()),
		zap.String("bill_id", bill.ID.String()),
		zap.Float64("amount", bill.Amount),
		zap.String("currency", bill.Currency),
	)
	return &bill, nil
}

func (s *Service) Close(ctx context.Context, packageID snowflake.ID) (domain.Package, *billdomain.Bill, error) {
	release, err := s.locker.Acquire(ctx, locker.PackageKey(packageID))
	if err != nil {
		return domain.Package{}, nil, err
	}
	defer release()

	var (
		pkg  domain.Package
		bill *billdomain.Bill
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, packageID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrPackageNotFound
		}
		if !current.IsActive() {
			return domain.ErrPackageNotActive
		}

		bill, err = s.finish(ctx, tx, *current)
		if err != nil {
			return err
		}

		updated, err := s.repo.FindByID(ctx, tx, packageID)
		if err != nil {
			return err
		}
		pkg = *updated
		return nil
	})
	if err != nil {
		return domain.Package{}, nil, err
	}

	s.RecordClosed(ctx, pkg, bill, "manual")
	return pkg, bill, nil
}

// RecordClosed emits the audit and metric side effects of a close after commit.
func (s *Service) RecordClosed(ctx context.Context, pkg domain.Package, bill *billdomain.Bill, trigger string) {
	if bill == nil {
		return
	}
	s.metrics.RecordPackageTransition(ctx, "finished")
	s.metrics.RecordBillEvent(ctx, "auto_created", bill.Currency)
	s.emitAudit(ctx, auditdomain.ActionPackageFinished, pkg, map[string]any{
		"trigger":  trigger,
		"bill_id":  bill.ID.String(),
		"amount":   bill.Amount,
		"currency": bill.Currency,
	})
}

func (s *Service) Reactivate(ctx context.Context, req domain.ReactivateRequest) (domain.Package, error) {
	prev, err := s.repo.FindByID(ctx, s.db, req.PackageID)
	if err != nil {
		return domain.Package{}, err
	}
	if prev == nil || prev.Status != domain.StatusFinished {
		return domain.Package{}, domain.ErrPackageNotFound
	}

	totalHours := prev.TotalHours
	if req.TotalHours != nil {
		if !validHours(*req.TotalHours) {
			return domain.Package{}, domain.ErrInvalidTotalHours
		}
		totalHours = *req.TotalHours
	}
	hourPrice := prev.HourPrice
	if req.HourPrice != nil {
		if math.IsNaN(*req.HourPrice) || math.IsInf(*req.HourPrice, 0) || *req.HourPrice < 0 {
			return domain.Package{}, domain.ErrInvalidHourPrice
		}
		hourPrice = *req.HourPrice
	}
	currency := prev.Currency
	if req.Currency != nil {
		currency = normalizeCurrency(*req.Currency)
		if currency == "" {
			return domain.Package{}, domain.ErrInvalidCurrency
		}
	}
	// Legacy rounds without total hours cannot be copied.
	if !validHours(totalHours) {
		return domain.Package{}, domain.ErrInvalidTotalHours
	}

	release, err := s.locker.Acquire(ctx, locker.StudentKey(prev.StudentID))
	if err != nil {
		return domain.Package{}, err
	}
	defer release()

	now := s.clock.Now()
	startDate := now
	if req.StartDate != nil {
		startDate = req.StartDate.UTC()
	}

	var pkg domain.Package
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.insertRound(ctx, tx, prev.StudentID, totalHours, hourPrice, currency, startDate, now)
		if err != nil {
			return err
		}
		pkg = created
		return nil
	})
	if err != nil {
		return domain.Package{}, err
	}

	s.metrics.RecordPackageTransition(ctx, "reactivated")
	s.emitAudit(ctx, auditdomain.ActionPackageReactivated, pkg, map[string]any{
		"previous_package_id": prev.ID.String(),
		"round_number":        pkg.RoundNumber,
	})
	return pkg, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, pkg domain.Package, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := pkg.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "package", &targetID, metadata)
}

func validHours(hours float64) bool {
	return !math.IsNaN(hours) && !math.IsInf(hours, 0) && hours > 0
}

func normalizeCurrency(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func periodBounds(year, month *int) (*time.Time, *time.Time, error) {
	if year == nil {
		if month != nil {
			return nil, nil, domain.ErrInvalidPeriod
		}
		return nil, nil, nil
	}
	if *year < 1970 || *year > 9999 {
		return nil, nil, domain.ErrInvalidPeriod
	}
	if month == nil {
		from := time.Date(*year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(1, 0, 0)
		return &from, &to, nil
	}
	if *month < 1 || *month > 12 {
		return nil, nil, domain.ErrInvalidPeriod
	}
	from := time.Date(*year, time.Month(*month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	return &from, &to, nil
}
