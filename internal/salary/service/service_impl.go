package service

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/config"
	consumptiondomain "github.com/emadn88/elmcorner/internal/consumption/domain"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	"github.com/emadn88/elmcorner/internal/salary/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Lifecycle  *config.LifecycleConfigHolder
	ClassRepo  consumptiondomain.Repository
	RosterRepo rosterdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	lifecycle  *config.LifecycleConfigHolder
	classRepo  consumptiondomain.Repository
	rosterRepo rosterdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("salary.service"),
		lifecycle:  p.Lifecycle,
		classRepo:  p.ClassRepo,
		rosterRepo: p.RosterRepo,
	}
}

func (s *Service) ComputeBreakdown(ctx context.Context, req domain.BreakdownRequest) (domain.SalaryLine, error) {
	if err := validatePeriod(req.Month, req.Year); err != nil {
		return domain.SalaryLine{}, err
	}
	target, err := normalizeConversion(req.ConversionRequest)
	if err != nil {
		return domain.SalaryLine{}, err
	}

	teacher, err := s.rosterRepo.FindTeacher(ctx, s.db, req.TeacherID)
	if err != nil {
		return domain.SalaryLine{}, err
	}
	if teacher == nil {
		return domain.SalaryLine{}, domain.ErrTeacherNotFound
	}

	line, err := s.breakdown(ctx, *teacher, req.Month, req.Year)
	if err != nil {
		return domain.SalaryLine{}, err
	}
	return s.converter(target).convert(line)
}

func (s *Service) Statistics(ctx context.Context, req domain.StatisticsRequest) (domain.Statistics, error) {
	if err := validatePeriod(req.Month, req.Year); err != nil {
		return domain.Statistics{}, err
	}
	target, err := normalizeConversion(req.ConversionRequest)
	if err != nil {
		return domain.Statistics{}, err
	}

	teachers, err := s.rosterRepo.ListActiveTeachers(ctx, s.db)
	if err != nil {
		return domain.Statistics{}, err
	}

	conv := s.converter(target)
	prevMonth, prevYear := domain.PreviousMonth(req.Month, req.Year)
	current := make([]domain.SalaryLine, 0, len(teachers))
	previous := make(map[snowflake.ID]float64, len(teachers))
	for _, teacher := range teachers {
		line, err := s.breakdown(ctx, teacher, req.Month, req.Year)
		if err != nil {
			return domain.Statistics{}, err
		}
		if line, err = conv.convert(line); err != nil {
			return domain.Statistics{}, err
		}
		current = append(current, line)

		prev, err := s.breakdown(ctx, teacher, prevMonth, prevYear)
		if err != nil {
			return domain.Statistics{}, err
		}
		if prev, err = conv.convert(prev); err != nil {
			return domain.Statistics{}, err
		}
		previous[teacher.ID] = prev.TotalSalary
	}

	return domain.Aggregate(req.Month, req.Year, current, previous), nil
}

func (s *Service) breakdown(ctx context.Context, teacher rosterdomain.Teacher, month, year int) (domain.SalaryLine, error) {
	from, to := domain.MonthBounds(month, year)
	classes, err := s.classRepo.ListAttendedByTeacher(ctx, s.db, teacher.ID, from, to)
	if err != nil {
		return domain.SalaryLine{}, err
	}
	return domain.Compute(teacher, month, year, classes), nil
}

// converter applies the requested display currency. Lines already in the
// target currency are returned as is. An explicit rate is tied to the first
// source currency it converts.
type converter struct {
	target domain.ConversionRequest
	rates  config.SalaryConfig
	source string
}

func (s *Service) converter(target domain.ConversionRequest) *converter {
	return &converter{target: target, rates: s.lifecycle.Get().Salary}
}

func (c *converter) convert(line domain.SalaryLine) (domain.SalaryLine, error) {
	if c.target.Currency == "" || c.target.Currency == line.Currency {
		return line, nil
	}
	rate := 0.0
	if c.target.Rate != nil {
		if c.source != "" && c.source != line.Currency {
			return domain.SalaryLine{}, domain.ErrMixedSourceCurrency
		}
		c.source = line.Currency
		rate = *c.target.Rate
	} else {
		configured, ok := c.rates.RateFor(line.Currency, c.target.Currency)
		if !ok {
			return domain.SalaryLine{}, domain.ErrUnknownRate
		}
		rate = configured
	}
	return line.Convert(domain.Conversion{
		FromCurrency: line.Currency,
		ToCurrency:   c.target.Currency,
		Rate:         rate,
	}), nil
}

func normalizeConversion(req domain.ConversionRequest) (domain.ConversionRequest, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Rate != nil {
		if math.IsNaN(*req.Rate) || math.IsInf(*req.Rate, 0) || *req.Rate <= 0 {
			return domain.ConversionRequest{}, domain.ErrInvalidRate
		}
		if req.Currency == "" {
			return domain.ConversionRequest{}, domain.ErrInvalidCurrency
		}
	}
	if req.Currency != "" && !currencyRe.MatchString(req.Currency) {
		return domain.ConversionRequest{}, domain.ErrInvalidCurrency
	}
	return req, nil
}

func validatePeriod(month, year int) error {
	if month < 1 || month > 12 || year < 2000 || year > 9999 {
		return domain.ErrInvalidPeriod
	}
	return nil
}
