package service

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/config"
	consumptiondomain "github.com/emadn88/elmcorner/internal/consumption/domain"
	consumptionrepository "github.com/emadn88/elmcorner/internal/consumption/repository"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	rosterrepository "github.com/emadn88/elmcorner/internal/roster/repository"
	"github.com/emadn88/elmcorner/internal/salary/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db  *gorm.DB
	svc domain.Service
	id  snowflake.ID
}

func setup(t *testing.T) testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&consumptiondomain.ClassRecord{}, &rosterdomain.Teacher{}))

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Lifecycle:  config.NewStaticLifecycleConfigHolder(config.DefaultLifecycleConfig()),
		ClassRepo:  consumptionrepository.Provide(),
		RosterRepo: rosterrepository.Provide(),
	})
	return testEnv{db: db, svc: svc, id: 100}
}

func (e *testEnv) teacher(t *testing.T, name string, rate float64, currency string) rosterdomain.Teacher {
	t.Helper()
	e.id++
	teacher := rosterdomain.Teacher{ID: e.id, Name: name, HourlyRate: rate, Currency: currency, Status: rosterdomain.StatusActive, CreatedAt: time.Now().UTC()}
	require.NoError(t, e.db.Create(&teacher).Error)
	return teacher
}

func (e *testEnv) class(t *testing.T, teacherID snowflake.ID, date time.Time, hours float64, status string) {
	t.Helper()
	e.id++
	now := time.Now().UTC()
	require.NoError(t, e.db.Create(&consumptiondomain.ClassRecord{
		ID: e.id, TeacherID: teacherID, StudentID: 1, CourseID: 1, ClassDate: date,
		StartTime: "10:00:00", EndTime: "11:00:00", DurationHours: hours, Status: status,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
}

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeBreakdownScenarioD(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	teacher := env.teacher(t, "Sara", 20, "USD")
	env.class(t, teacher.ID, day(time.March, 3), 1.5, consumptiondomain.StatusAttended)
	env.class(t, teacher.ID, day(time.March, 20), 2, consumptiondomain.StatusAttended)
	env.class(t, teacher.ID, day(time.March, 21), 1, consumptiondomain.StatusAbsentStudent)
	env.class(t, teacher.ID, day(time.April, 1), 3, consumptiondomain.StatusAttended)

	line, err := env.svc.ComputeBreakdown(ctx, domain.BreakdownRequest{TeacherID: teacher.ID, Month: 3, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 3.5, line.TotalHours)
	assert.Equal(t, 70.0, line.TotalSalary)
	assert.Equal(t, "USD", line.Currency)

	line, err = env.svc.ComputeBreakdown(ctx, domain.BreakdownRequest{
		TeacherID: teacher.ID, Month: 3, Year: 2026,
		ConversionRequest: domain.ConversionRequest{Currency: "egp"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2100.0, line.TotalSalary)
	assert.Equal(t, "EGP", line.Currency)

	var stored rosterdomain.Teacher
	require.NoError(t, env.db.First(&stored, "id = ?", teacher.ID).Error)
	assert.Equal(t, 20.0, stored.HourlyRate)
	assert.Equal(t, "USD", stored.Currency)
}

func TestComputeBreakdownExplicitRateAndErrors(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	teacher := env.teacher(t, "Ali", 10, "USD")
	env.class(t, teacher.ID, day(time.March, 5), 2, consumptiondomain.StatusAttended)

	rate := 50.0
	line, err := env.svc.ComputeBreakdown(ctx, domain.BreakdownRequest{
		TeacherID: teacher.ID, Month: 3, Year: 2026,
		ConversionRequest: domain.ConversionRequest{Currency: "EGP", Rate: &rate},
	})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, line.TotalSalary)

	_, err = env.svc.ComputeBreakdown(ctx, domain.BreakdownRequest{
		TeacherID: teacher.ID, Month: 3, Year: 2026,
		ConversionRequest: domain.ConversionRequest{Currency: "SAR"},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownRate)

	bad := -1.0
	_, err = env.svc.ComputeBreakdown(ctx, domain.BreakdownRequest{
		TeacherID: teacher.ID, Month: 3, Year: 2026,
		ConversionRequest: domain.ConversionRequest{Currency: "EGP", Rate: &bad},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	_, err = env.svc.ComputeBreakdown(ctx, domain.BreakdownRequest{TeacherID: teacher.ID, Month: 13, Year: 2026})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)

	_, err = env.svc.ComputeBreakdown(ctx, domain.BreakdownRequest{TeacherID: 1, Month: 3, Year: 2026})
	assert.ErrorIs(t, err, domain.ErrTeacherNotFound)
}

func TestStatisticsIncludesPreviousMonth(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	a := env.teacher(t, "A", 20, "USD")
	b := env.teacher(t, "B", 10, "USD")
	c := env.teacher(t, "C", 100, "EGP")
	env.class(t, a.ID, day(time.March, 2), 2, consumptiondomain.StatusAttended)
	env.class(t, a.ID, day(time.February, 20), 1, consumptiondomain.StatusAttended)
	env.class(t, b.ID, day(time.March, 4), 1, consumptiondomain.StatusAttended)
	env.class(t, c.ID, day(time.March, 4), 3, consumptiondomain.StatusAttended)

	stats, err := env.svc.Statistics(ctx, domain.StatisticsRequest{Month: 3, Year: 2026})
	require.NoError(t, err)
	require.Len(t, stats.Currencies, 2)

	egp, usd := stats.Currencies[0], stats.Currencies[1]
	assert.Equal(t, "EGP", egp.Currency)
	assert.Equal(t, 300.0, egp.TotalSalary)
	assert.Equal(t, "USD", usd.Currency)
	assert.Equal(t, 2, usd.TeacherCount)
	assert.Equal(t, 50.0, usd.TotalSalary)
	assert.Equal(t, 25.0, usd.AverageSalary)
	assert.Equal(t, 20.0, usd.PreviousMonthSalary)

	converted, err := env.svc.Statistics(ctx, domain.StatisticsRequest{Month: 3, Year: 2026, ConversionRequest: domain.ConversionRequest{Currency: "EGP"}})
	require.NoError(t, err)
	require.Len(t, converted.Currencies, 1)
	assert.Equal(t, 300.0+50.0*30, converted.Currencies[0].TotalSalary)
	assert.Equal(t, 600.0, converted.Currencies[0].PreviousMonthSalary)
}

func TestStatisticsExplicitRateNeedsSingleSourceCurrency(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usd := env.teacher(t, "U", 10, "USD")
	eur := env.teacher(t, "E", 10, "EUR")
	egp := env.teacher(t, "G", 100, "EGP")
	env.class(t, usd.ID, day(time.March, 2), 1, consumptiondomain.StatusAttended)
	env.class(t, egp.ID, day(time.March, 2), 1, consumptiondomain.StatusAttended)

	rate := 48.0
	req := domain.StatisticsRequest{Month: 3, Year: 2026, ConversionRequest: domain.ConversionRequest{Currency: "EGP", Rate: &rate}}
	stats, err := env.svc.Statistics(ctx, req)
	require.ErrorIs(t, err, domain.ErrMixedSourceCurrency)
	assert.Empty(t, stats.Currencies)

	require.NoError(t, env.db.Model(&rosterdomain.Teacher{}).Where("id = ?", eur.ID).Update("status", "inactive").Error)
	stats, err = env.svc.Statistics(ctx, req)
	require.NoError(t, err)
	require.Len(t, stats.Currencies, 1)
	assert.Equal(t, 100.0+10.0*48, stats.Currencies[0].TotalSalary)
}

func TestConversionRejectsNonFiniteRate(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	teacher := env.teacher(t, "Ali", 10, "USD")

	for _, rate := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0} {
		r := rate
		_, err := env.svc.ComputeBreakdown(ctx, domain.BreakdownRequest{
			TeacherID: teacher.ID, Month: 3, Year: 2026,
			ConversionRequest: domain.ConversionRequest{Currency: "EGP", Rate: &r},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRate, "rate %v", rate)

		_, err = env.svc.Statistics(ctx, domain.StatisticsRequest{
			Month: 3, Year: 2026,
			ConversionRequest: domain.ConversionRequest{Currency: "EGP", Rate: &r},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRate, "rate %v", rate)
	}
}

func TestExportStatisticsWritesWorkbook(t *testing.T) {
	env := setup(t)
	teacher := env.teacher(t, "Sara", 20, "USD")
	env.class(t, teacher.ID, day(time.March, 3), 1.5, consumptiondomain.StatusAttended)

	var buf bytes.Buffer
	require.NoError(t, env.svc.ExportStatistics(context.Background(), domain.StatisticsRequest{Month: 3, Year: 2026}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, teachersSheet}, f.GetSheetList())
	period, err := f.GetCellValue(summarySheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "2026-03", period)
	name, err := f.GetCellValue(teachersSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Sara", name)
	total, err := f.GetCellValue(teachersSheet, "F2")
	require.NoError(t, err)
	assert.Equal(t, "30", total)
}
