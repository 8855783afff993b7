package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/internal/bill/repository"
	"github.com/emadn88/elmcorner/internal/clock"
	consumptiondomain "github.com/emadn88/elmcorner/internal/consumption/domain"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	rosterrepository "github.com/emadn88/elmcorner/internal/roster/repository"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
	packagerepository "github.com/emadn88/elmcorner/internal/studentpackage/repository"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db    *gorm.DB
	svc   domain.Service
	node  *snowflake.Node
	clock *clock.FakeClock
}

func setup(t *testing.T) testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Bill{},
		&packagedomain.Package{},
		&rosterdomain.Student{},
		&consumptiondomain.ClassRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fake,
		Repo:        repository.Provide(),
		PackageRepo: packagerepository.Provide(),
		RosterRepo:  rosterrepository.Provide(),
	})

	now := time.Now().UTC()
	for _, id := range []snowflake.ID{1, 2} {
		require.NoError(t, db.Create(&rosterdomain.Student{ID: id, Name: "S", Currency: "USD", Status: "active", CreatedAt: now}).Error)
	}
	return testEnv{db: db, svc: svc, node: node, clock: fake}
}

func (e testEnv) seedClosedPackage(t *testing.T, studentID snowflake.ID, hours, price float64, currency string) (packagedomain.Package, domain.Bill) {
	t.Helper()
	now := e.clock.Now()
	pkg := packagedomain.Package{
		ID: e.node.Generate(), StudentID: studentID, RoundNumber: 1, StartDate: now,
		TotalHours: hours, ConsumedHours: hours, HourPrice: price, Currency: currency,
		Status: packagedomain.StatusFinished, FinishedAt: &now, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, packagerepository.Provide().Insert(context.Background(), e.db, &pkg))

	bill, err := domain.NewAutoBill(e.node.Generate(), domain.PackageTerms{
		ID: pkg.ID, StudentID: studentID, TotalHours: hours, HourPrice: price, Currency: currency,
	}, currency, now)
	require.NoError(t, err)
	require.NoError(t, repository.Provide().Insert(context.Background(), e.db, &bill))
	return pkg, bill
}

func TestRoundTripSummaryAfterCloseAndPay(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	pkg, bill := env.seedClosedPackage(t, 1, 8, 10, "USD")

	before, err := env.svc.Summarize(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, before.TotalAmount)
	assert.Equal(t, 80.0, before.UnpaidAmount)

	_, err = env.svc.MarkPaid(ctx, domain.MarkPaidRequest{BillID: bill.ID})
	require.NoError(t, err)

	after, err := env.svc.Summarize(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, after.UnpaidAmount)
	assert.Equal(t, 80.0, after.PaidAmount)
	assert.Equal(t, pkg.TotalHours*pkg.HourPrice, after.TotalAmount)
	assert.Equal(t, "USD", after.Currency)

	_, err = env.svc.Summarize(ctx, 424242)
	assert.ErrorIs(t, err, domain.ErrPackageNotFound)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, bill := env.seedClosedPackage(t, 1, 4, 25, "USD")

	first, err := env.svc.MarkPaid(ctx, domain.MarkPaidRequest{BillID: bill.ID})
	require.NoError(t, err)
	require.NotNil(t, first.PaidAt)
	assert.Equal(t, domain.StatusPaid, first.Status)

	env.clock.Advance(time.Hour)
	later := env.clock.Now()
	second, err := env.svc.MarkPaid(ctx, domain.MarkPaidRequest{BillID: bill.ID, PaidAt: &later})
	require.NoError(t, err)
	require.NotNil(t, second.PaidAt)
	assert.True(t, first.PaidAt.Equal(*second.PaidAt))

	_, err = env.svc.MarkPaid(ctx, domain.MarkPaidRequest{BillID: 999})
	assert.ErrorIs(t, err, domain.ErrBillNotFound)
}

func TestCreateCustomBill(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	bill, err := env.svc.CreateCustomBill(ctx, domain.CreateCustomBillRequest{StudentID: 1, Amount: 15, Currency: "egp", Description: " books "})
	require.NoError(t, err)
	assert.True(t, bill.IsCustom)
	assert.Nil(t, bill.PackageID)
	assert.Equal(t, "EGP", bill.Currency)
	assert.Equal(t, "books", bill.Description)

	_, err = env.svc.CreateCustomBill(ctx, domain.CreateCustomBillRequest{StudentID: 1, Amount: 0, Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = env.svc.CreateCustomBill(ctx, domain.CreateCustomBillRequest{StudentID: 1, Amount: 5, Currency: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)
	_, err = env.svc.CreateCustomBill(ctx, domain.CreateCustomBillRequest{StudentID: 77, Amount: 5, Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrStudentNotFound)

	got, err := env.svc.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, bill.ID, got.ID)
}

func TestSummarizeStudentGroupsByCurrency(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	env.seedClosedPackage(t, 1, 8, 10, "USD")
	_, err := env.svc.CreateCustomBill(ctx, domain.CreateCustomBillRequest{StudentID: 1, Amount: 300, Currency: "EGP"})
	require.NoError(t, err)

	summary, err := env.svc.SummarizeStudent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summary.Totals, 2)
	assert.Equal(t, "EGP", summary.Totals[0].Currency)
	assert.Equal(t, 300.0, summary.Totals[0].UnpaidAmount)
	assert.Equal(t, "USD", summary.Totals[1].Currency)
	assert.Equal(t, 80.0, summary.Totals[1].TotalAmount)

	_, err = env.svc.SummarizeStudent(ctx, 55)
	assert.ErrorIs(t, err, domain.ErrStudentNotFound)
}

func TestListFiltersAndFullSetTotals(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	pkgA, billA := env.seedClosedPackage(t, 1, 8, 10, "USD")
	env.clock.Advance(time.Minute)
	_, billB := env.seedClosedPackage(t, 2, 5, 10, "USD")
	_, err := env.svc.MarkPaid(ctx, domain.MarkPaidRequest{BillID: billB.ID})
	require.NoError(t, err)
	custom, err := env.svc.CreateCustomBill(ctx, domain.CreateCustomBillRequest{StudentID: 1, Amount: 200, Currency: "EGP"})
	require.NoError(t, err)

	// Teacher 100 taught the first package only.
	require.NoError(t, env.db.Create(&consumptiondomain.ClassRecord{
		ID: env.node.Generate(), PackageID: &pkgA.ID, TeacherID: 100, StudentID: 1, CourseID: 1,
		ClassDate: env.clock.Now(), StartTime: "10:00:00", EndTime: "11:00:00", DurationHours: 1,
		Status: consumptiondomain.StatusAttended, CreatedAt: env.clock.Now(), UpdatedAt: env.clock.Now(),
	}).Error)

	all, err := env.svc.List(ctx, domain.ListBillRequest{PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, all.Bills, 1)
	assert.True(t, all.HasMore)
	require.Len(t, all.Totals, 2)
	assert.Equal(t, domain.CurrencyTotal{Currency: "EGP", TotalAmount: 200, UnpaidAmount: 200, BillCount: 1}, all.Totals[0])
	assert.Equal(t, domain.CurrencyTotal{Currency: "USD", TotalAmount: 130, UnpaidAmount: 80, PaidAmount: 50, BillCount: 2}, all.Totals[1])

	next, err := env.svc.List(ctx, domain.ListBillRequest{PageSize: 1, PageToken: all.NextPageToken})
	require.NoError(t, err)
	require.Len(t, next.Bills, 1)
	assert.NotEqual(t, all.Bills[0].ID, next.Bills[0].ID)

	unpaid, err := env.svc.List(ctx, domain.ListBillRequest{Status: []string{"unpaid"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{billA.ID, custom.ID}, billIDs(unpaid.Bills))

	both, err := env.svc.List(ctx, domain.ListBillRequest{Status: []string{"paid", "unpaid"}, StudentID: []snowflake.ID{2}})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{billB.ID}, billIDs(both.Bills))

	byTeacher, err := env.svc.List(ctx, domain.ListBillRequest{TeacherID: []snowflake.ID{100}})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{billA.ID}, billIDs(byTeacher.Bills))

	isCustom := true
	customOnly, err := env.svc.List(ctx, domain.ListBillRequest{IsCustom: &isCustom})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{custom.ID}, billIDs(customOnly.Bills))

	year, month := 2026, 3
	inMonth, err := env.svc.List(ctx, domain.ListBillRequest{Year: &year, Month: &month})
	require.NoError(t, err)
	assert.Len(t, inMonth.Bills, 3)

	other := 4
	none, err := env.svc.List(ctx, domain.ListBillRequest{Year: &year, Month: &other})
	require.NoError(t, err)
	assert.Empty(t, none.Bills)
	assert.Empty(t, none.Totals)

	_, err = env.svc.List(ctx, domain.ListBillRequest{Month: &month})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
	_, err = env.svc.List(ctx, domain.ListBillRequest{Status: []string{"void"}})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = env.svc.List(ctx, domain.ListBillRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}

func TestSummarizeMany(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	a, _ := env.seedClosedPackage(t, 1, 8, 10, "USD")
	b, _ := env.seedClosedPackage(t, 2, 2, 50, "EGP")

	got, err := env.svc.SummarizeMany(ctx, []snowflake.ID{a.ID, b.ID, 31337})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 80.0, got[a.ID].TotalAmount)
	assert.Equal(t, "EGP", got[b.ID].Currency)
	assert.Equal(t, 100.0, got[b.ID].UnpaidAmount)
}

func billIDs(bills []domain.Bill) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.ID)
	}
	return ids
}
