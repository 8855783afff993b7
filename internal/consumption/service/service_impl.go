package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	"github.com/emadn88/elmcorner/internal/clock"
	"github.com/emadn88/elmcorner/internal/consumption/domain"
	"github.com/emadn88/elmcorner/internal/locker"
	"github.com/emadn88/elmcorner/internal/observability/metrics"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
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
	Locker      locker.Locker
	Repo        domain.Repository
	PackageRepo packagedomain.Repository
	PackageSvc  packagedomain.Service
	RosterRepo  rosterdomain.Repository
	AuditSvc    auditdomain.Service `optional:"true"`
	Metrics     *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	locker      locker.Locker
	repo        domain.Repository
	packageRepo packagedomain.Repository
	packageSvc  packagedomain.Service
	rosterRepo  rosterdomain.Repository
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("consumption.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		locker:      p.Locker,
		repo:        p.Repo,
		packageRepo: p.PackageRepo,
		packageSvc:  p.PackageSvc,
		rosterRepo:  p.RosterRepo,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) CreateClass(ctx context.Context, req domain.CreateClassRequest) (domain.ClassRecord, error) {
	if req.ClassDate.IsZero() {
		return domain.ClassRecord{}, domain.ErrInvalidDate
	}
	start, err := domain.ParseClock(req.StartTime)
	if err != nil {
		return domain.ClassRecord{}, err
	}
	end, err := domain.ParseClock(req.EndTime)
	if err != nil {
		return domain.ClassRecord{}, err
	}
	duration, err := domain.Duration(req.StartTime, req.EndTime)
	if err != nil {
		return domain.ClassRecord{}, err
	}

	teacher, err := s.rosterRepo.FindTeacher(ctx, s.db, req.TeacherID)
	if err != nil {
		return domain.ClassRecord{}, err
	}
	if teacher == nil {
		return domain.ClassRecord{}, domain.ErrTeacherNotFound
	}

	if req.PackageID != nil {
		pkg, err := s.packageRepo.FindByID(ctx, s.db, *req.PackageID)
		if err != nil {
			return domain.ClassRecord{}, err
		}
		if pkg == nil {
			return domain.ClassRecord{}, domain.ErrPackageNotFound
		}
		if pkg.StudentID != req.StudentID {
			return domain.ClassRecord{}, domain.ErrPackageStudentMismatch
		}
		if !pkg.IsActive() {
			return domain.ClassRecord{}, domain.ErrPackageClosed
		}
	} else {
		student, err := s.rosterRepo.FindStudent(ctx, s.db, req.StudentID)
		if err != nil {
			return domain.ClassRecord{}, err
		}
		if student == nil {
			return domain.ClassRecord{}, rosterdomain.ErrStudentNotFound
		}
	}

	now := s.clock.Now()
	class := domain.ClassRecord{
		ID:            s.genID.Generate(),
		PackageID:     req.PackageID,
		TeacherID:     req.TeacherID,
		StudentID:     req.StudentID,
		CourseID:      req.CourseID,
		ClassDate:     domain.DateOnly(req.ClassDate),
		StartTime:     domain.FormatClock(start),
		EndTime:       domain.FormatClock(end),
		DurationHours: duration,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, &class); err != nil {
		return domain.ClassRecord{}, err
	}

	s.emitAudit(ctx, auditdomain.ActionClassCreated, class, map[string]any{
		"duration_hours": class.DurationHours,
	})
	return class, nil
}

// RecordAttendance marks a class attended and closes the package once its hours are used up.
// Repeating the call for an attended class returns the current delta unchanged.
func (s *Service) RecordAttendance(ctx context.Context, classID snowflake.ID) (domain.PackageHourDelta, error) {
	class, err := s.repo.FindByID(ctx, s.db, classID)
	if err != nil {
		return domain.PackageHourDelta{}, err
	}
	if class == nil {
		return domain.PackageHourDelta{}, domain.ErrClassNotFound
	}
	if class.PackageID == nil {
		return domain.PackageHourDelta{}, domain.ErrNoPackage
	}
	packageID := *class.PackageID

	release, err := s.locker.Acquire(ctx, locker.PackageKey(packageID))
	if err != nil {
		return domain.PackageHourDelta{}, err
	}
	defer release()

	var (
		delta   domain.PackageHourDelta
		changed bool
		pkg     *packagedomain.Package
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.packageRepo.FindByIDForUpdate(ctx, tx, packageID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrPackageNotFound
		}

		current, err := s.repo.FindByID(ctx, tx, classID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrClassNotFound
		}
		if current.IsAttended() {
			pkg = locked
			delta, err = s.buildDelta(ctx, tx, *locked, *current)
			return err
		}
		if !locked.IsActive() {
			return domain.ErrPackageClosed
		}

		now := s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, classID, domain.StatusAttended, now); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, packageID); err != nil {
			return err
		}
		bill, err := s.packageSvc.CheckAndClose(ctx, tx, packageID)
		if err != nil {
			return err
		}

		pkg, err = s.packageRepo.FindByID(ctx, tx, packageID)
		if err != nil {
			return err
		}
		current.Status = domain.StatusAttended
		delta, err = s.buildDelta(ctx, tx, *pkg, *current)
		if err != nil {
			return err
		}
		delta.ClosingBill = bill
		changed = true
		return nil
	})
	if err != nil {
		return domain.PackageHourDelta{}, err
	}

	if changed {
		s.metrics.RecordAttendance(ctx, "attended", class.DurationHours)
		s.emitAudit(ctx, auditdomain.ActionClassAttended, *class, map[string]any{
			"package_id":      packageID.String(),
			"duration_hours":  class.DurationHours,
			"consumed_hours":  delta.ConsumedHours,
			"remaining_hours": delta.RemainingHours,
		})
		if delta.ClosingBill != nil {
			s.packageSvc.RecordClosed(ctx, *pkg, delta.ClosingBill, "attendance")
		}
	}
	return delta, nil
}

// ReverseAttendance moves a class out of attended. A finished package stays finished.
func (s *Service) ReverseAttendance(ctx context.Context, classID snowflake.ID, newStatus string) (domain.PackageHourDelta, error) {
	if newStatus == domain.StatusAttended || !domain.ValidStatus(newStatus) {
		return domain.PackageHourDelta{}, domain.ErrInvalidStatus
	}

	class, err := s.repo.FindByID(ctx, s.db, classID)
	if err != nil {
		return domain.PackageHourDelta{}, err
	}
	if class == nil {
		return domain.PackageHourDelta{}, domain.ErrClassNotFound
	}
	if class.PackageID == nil {
		return domain.PackageHourDelta{}, domain.ErrNoPackage
	}
	packageID := *class.PackageID

	release, err := s.locker.Acquire(ctx, locker.PackageKey(packageID))
	if err != nil {
		return domain.PackageHourDelta{}, err
	}
	defer release()

	var (
		delta    domain.PackageHourDelta
		reversed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.packageRepo.FindByIDForUpdate(ctx, tx, packageID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrPackageNotFound
		}

		current, err := s.repo.FindByID(ctx, tx, classID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrClassNotFound
		}

		reversed = current.IsAttended()
		now := s.clock.Now()
		if current.Status != newStatus {
			if err := s.repo.UpdateStatus(ctx, tx, classID, newStatus, now); err != nil {
				return err
			}
		}
		if reversed {
			if err := s.recompute(ctx, tx, packageID); err != nil {
				return err
			}
		}

		pkg, err := s.packageRepo.FindByID(ctx, tx, packageID)
		if err != nil {
			return err
		}
		current.Status = newStatus
		delta, err = s.buildDelta(ctx, tx, *pkg, *current)
		return err
	})
	if err != nil {
		return domain.PackageHourDelta{}, err
	}

	if reversed {
		s.metrics.RecordAttendance(ctx, "reversed", -class.DurationHours)
		s.emitAudit(ctx, auditdomain.ActionClassAttendanceReversed, *class, map[string]any{
			"package_id":     packageID.String(),
			"new_status":     newStatus,
			"consumed_hours": delta.ConsumedHours,
		})
	}
	return delta, nil
}

func (s *Service) UpdateStatus(ctx context.Context, classID snowflake.ID, status string) (domain.UpdateStatusResult, error) {
	if !domain.ValidStatus(status) {
		return domain.UpdateStatusResult{}, domain.ErrInvalidStatus
	}

	class, err := s.repo.FindByID(ctx, s.db, classID)
	if err != nil {
		return domain.UpdateStatusResult{}, err
	}
	if class == nil {
		return domain.UpdateStatusResult{}, domain.ErrClassNotFound
	}

	var delta *domain.PackageHourDelta
	switch {
	case status == domain.StatusAttended:
		d, err := s.RecordAttendance(ctx, classID)
		if err != nil {
			return domain.UpdateStatusResult{}, err
		}
		delta = &d
	case class.PackageID != nil:
		d, err := s.ReverseAttendance(ctx, classID, status)
		if err != nil {
			return domain.UpdateStatusResult{}, err
		}
		delta = &d
	default:
		// Trial classes never touch a package.
		if err := s.repo.UpdateStatus(ctx, s.db, classID, status, s.clock.Now()); err != nil {
			return domain.UpdateStatusResult{}, err
		}
	}

	updated, err := s.repo.FindByID(ctx, s.db, classID)
	if err != nil {
		return domain.UpdateStatusResult{}, err
	}
	return domain.UpdateStatusResult{Class: *updated, Delta: delta}, nil
}

func (s *Service) ListPackageClasses(ctx context.Context, packageID snowflake.ID) ([]domain.ClassView, error) {
	pkg, err := s.packageRepo.FindByID(ctx, s.db, packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, domain.ErrPackageNotFound
	}

	classes, err := s.repo.ListByPackage(ctx, s.db, packageID, "")
	if err != nil {
		return nil, err
	}

	attended := make([]domain.ClassRecord, 0, len(classes))
	for _, c := range classes {
		if c.IsAttended() {
			attended = append(attended, c)
		}
	}
	counters := domain.Counters(attended)

	domain.SortChronologically(classes)
	views := make([]domain.ClassView, 0, len(classes))
	for _, c := range classes {
		view := domain.ClassView{ClassRecord: c}
		if n, ok := counters[c.ID]; ok {
			view.Counter = &n
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) recompute(ctx context.Context, tx *gorm.DB, packageID snowflake.ID) error {
	consumed, err := s.repo.SumAttendedHours(ctx, tx, packageID)
	if err != nil {
		return err
	}
	if consumed < 0 {
		consumed = 0
	}
	return s.packageRepo.UpdateConsumed(ctx, tx, packageID, consumed, s.clock.Now())
}

func (s *Service) buildDelta(ctx context.Context, tx *gorm.DB, pkg packagedomain.Package, class domain.ClassRecord) (domain.PackageHourDelta, error) {
	attended, err := s.repo.ListByPackage(ctx, tx, pkg.ID, domain.StatusAttended)
	if err != nil {
		return domain.PackageHourDelta{}, err
	}
	counters := domain.Counters(attended)

	return domain.PackageHourDelta{
		PackageID:      pkg.ID,
		ClassID:        class.ID,
		DurationHours:  class.DurationHours,
		ConsumedHours:  pkg.ConsumedHours,
		RemainingHours: pkg.RemainingHours(),
		Counter:        counters[class.ID],
		TotalClasses:   len(attended),
		PackageStatus:  pkg.Status,
	}, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, class domain.ClassRecord, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := class.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "class", &targetID, metadata)
}
