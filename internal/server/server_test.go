package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/internal/clock"
	"github.com/emadn88/elmcorner/internal/config"
	consumptiondomain "github.com/emadn88/elmcorner/internal/consumption/domain"
	notificationdomain "github.com/emadn88/elmcorner/internal/notification/domain"
	paymentlinkdomain "github.com/emadn88/elmcorner/internal/paymentlink/domain"
	"github.com/emadn88/elmcorner/internal/ratelimit"
	salarydomain "github.com/emadn88/elmcorner/internal/salary/domain"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePackageService struct {
	packagedomain.Service
	createErr     error
	createReq     packagedomain.CreatePackageRequest
	reactivateReq packagedomain.ReactivateRequest
}

func (f *fakePackageService) Create(ctx context.Context, req packagedomain.CreatePackageRequest) (packagedomain.Package, error) {
	f.createReq = req
	if f.createErr != nil {
		return packagedomain.Package{}, f.createErr
	}
	return packagedomain.Package{ID: 10, StudentID: req.StudentID, Status: packagedomain.StatusActive}, nil
}

func (f *fakePackageService) Reactivate(ctx context.Context, req packagedomain.ReactivateRequest) (packagedomain.Package, error) {
	f.reactivateReq = req
	return packagedomain.Package{ID: 11, RoundNumber: 2, Status: packagedomain.StatusActive}, nil
}

type fakeClassService struct {
	consumptiondomain.Service
	statusErr error
	status    string
}

func (f *fakeClassService) UpdateStatus(ctx context.Context, classID snowflake.ID, status string) (consumptiondomain.UpdateStatusResult, error) {
	f.status = status
	if f.statusErr != nil {
		return consumptiondomain.UpdateStatusResult{}, f.statusErr
	}
	return consumptiondomain.UpdateStatusResult{Class: consumptiondomain.ClassRecord{ID: classID, Status: status}}, nil
}

type fakeBillService struct {
	billdomain.Service
	listReq billdomain.ListBillRequest
}

func (f *fakeBillService) List(ctx context.Context, req billdomain.ListBillRequest) (billdomain.ListBillResponse, error) {
	f.listReq = req
	return billdomain.ListBillResponse{
		Bills:  []billdomain.Bill{{ID: 1, Amount: 80, Currency: "USD"}},
		Totals: []billdomain.CurrencyTotal{{Currency: "USD", TotalAmount: 80, UnpaidAmount: 80, BillCount: 1}},
	}, nil
}

type fakeNotificationService struct {
	notificationdomain.Service
	notifyErr error
	notifyReq notificationdomain.NotifyRequest
	bulkReq   notificationdomain.BulkNotifyRequest
}

func (f *fakeNotificationService) Notify(ctx context.Context, req notificationdomain.NotifyRequest) (notificationdomain.NotifyResult, error) {
	f.notifyReq = req
	if f.notifyErr != nil {
		return notificationdomain.NotifyResult{}, f.notifyErr
	}
	return notificationdomain.NotifyResult{PackageID: req.PackageID, Kind: "send", DispatchKey: req.DispatchKey, NotificationCount: 1}, nil
}

func (f *fakeNotificationService) BulkNotify(ctx context.Context, req notificationdomain.BulkNotifyRequest) (notificationdomain.BulkNotifyResult, error) {
	f.bulkReq = req
	return notificationdomain.BulkNotifyResult{SuccessCount: len(req.PackageIDs)}, nil
}

type fakeSalaryService struct {
	salarydomain.Service
	breakdownReq salarydomain.BreakdownRequest
}

func (f *fakeSalaryService) ComputeBreakdown(ctx context.Context, req salarydomain.BreakdownRequest) (salarydomain.SalaryLine, error) {
	f.breakdownReq = req
	return salarydomain.SalaryLine{}, nil
}

type fakePaymentLinkService struct {
	paymentlinkdomain.Service
	ensureErr error
	notifyErr error
}

func (f *fakePaymentLinkService) EnsureLink(ctx context.Context, billID snowflake.ID) (paymentlinkdomain.PaymentLink, error) {
	if f.ensureErr != nil {
		return paymentlinkdomain.PaymentLink{}, f.ensureErr
	}
	return paymentlinkdomain.PaymentLink{BillID: billID, Created: true}, nil
}

func (f *fakePaymentLinkService) HandleNotification(ctx context.Context, payload paymentlinkdomain.GatewayNotification) (paymentlinkdomain.NotificationResult, error) {
	if f.notifyErr != nil {
		return paymentlinkdomain.NotificationResult{}, f.notifyErr
	}
	return paymentlinkdomain.NotificationResult{OrderID: payload.OrderID, Outcome: paymentlinkdomain.OutcomePaid}, nil
}

func (f *fakePaymentLinkService) ResolveToken(ctx context.Context, rawToken string) (paymentlinkdomain.PublicBill, error) {
	if rawToken != "good-token" {
		return paymentlinkdomain.PublicBill{}, paymentlinkdomain.ErrTokenNotFound
	}
	return paymentlinkdomain.PublicBill{BillID: 1, Amount: 80, Currency: "USD"}, nil
}

type fakeAuditService struct {
	auditdomain.Service
	listReq auditdomain.ListAuditLogRequest
}

func (f *fakeAuditService) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	f.listReq = req
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}
	return auditdomain.ListAuditLogResponse{AuditLogs: []auditdomain.AuditLog{{ID: 3, Action: auditdomain.ActionBillPaid}}}, nil
}

type testServer struct {
	engine        *gin.Engine
	packages      *fakePackageService
	classes       *fakeClassService
	bills         *fakeBillService
	notifications *fakeNotificationService
	salaries      *fakeSalaryService
	links         *fakePaymentLinkService
	audit         *fakeAuditService
}

func newTestServer(t *testing.T, limiter *ratelimit.PublicLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		engine:        engine,
		packages:      &fakePackageService{},
		classes:       &fakeClassService{},
		bills:         &fakeBillService{},
		notifications: &fakeNotificationService{},
		salaries:      &fakeSalaryService{},
		links:         &fakePaymentLinkService{},
		audit:         &fakeAuditService{},
	}
	NewServer(ServerParams{
		Gin:             engine,
		Log:             zap.NewNop(),
		Clock:           clock.NewFakeClock(time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)),
		PackageSvc:      ts.packages,
		ClassSvc:        ts.classes,
		BillSvc:         ts.bills,
		NotificationSvc: ts.notifications,
		SalarySvc:       ts.salaries,
		PaymentLinkSvc:  ts.links,
		AuditSvc:        ts.audit,
		PublicLimiter:   limiter,
	})
	return ts
}

func (ts *testServer) do(method, path string, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestCreatePackage(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/admin/packages", `{"student_id":"7","total_hours":8,"hour_price":10,"currency":" USD ","start_date":"2026-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, snowflake.ID(7), ts.packages.createReq.StudentID)
	assert.Equal(t, "USD", ts.packages.createReq.Currency)
	require.NotNil(t, ts.packages.createReq.StartDate)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), *ts.packages.createReq.StartDate)
}

func TestCreatePackageErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "active exists", err: packagedomain.ErrActivePackageExists, status: http.StatusConflict, kind: "conflict"},
		{name: "invalid hours", err: packagedomain.ErrInvalidTotalHours, status: http.StatusBadRequest, kind: "validation_error"},
		{name: "unknown student", err: packagedomain.ErrStudentNotFound, status: http.StatusNotFound, kind: "not_found"},
		{name: "unexpected", err: fmt.Errorf("boom"), status: http.StatusInternalServerError, kind: "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.packages.createErr = tc.err

			rec := ts.do(http.MethodPost, "/admin/packages", `{"student_id":"7","total_hours":8,"hour_price":10,"currency":"USD"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, decodeError(t, rec).Type)
		})
	}
}

func TestValidationErrorCarriesField(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.packages.createErr = fmt.Errorf("create package: %w", packagedomain.ErrInvalidTotalHours)

	rec := ts.do(http.MethodPost, "/admin/packages", `{"student_id":"7","total_hours":0,"hour_price":10,"currency":"USD"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "total_hours", payload.Errors[0].Field)
	assert.Equal(t, "invalid_total_hours", payload.Errors[0].Code)
}

func TestMalformedPathID(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/admin/packages/abc/reactivate", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "id", payload.Errors[0].Field)
}

func TestReactivateWithoutBody(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/admin/packages/5/reactivate", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, snowflake.ID(5), ts.packages.reactivateReq.PackageID)
	assert.Nil(t, ts.packages.reactivateReq.TotalHours)
	assert.Nil(t, ts.packages.reactivateReq.Currency)
}

func TestAttendanceOnFinishedPackage(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.classes.statusErr = consumptiondomain.ErrPackageClosed

	rec := ts.do(http.MethodPatch, "/admin/classes/3/status", `{"status":" Attended "}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "package_closed", decodeError(t, rec).Type)
	assert.Equal(t, "attended", ts.classes.status)
}

func TestListBillsNormalizesFilters(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/admin/bills?student_id=1,2&student_id=2&student_id=3&status=unpaid&year=2026&month=3&is_custom=false", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := ts.bills.listReq
	assert.Equal(t, []snowflake.ID{1, 2, 3}, []snowflake.ID(req.StudentID))
	assert.Equal(t, []string{"unpaid"}, []string(req.Status))
	require.NotNil(t, req.Year)
	assert.Equal(t, 2026, *req.Year)
	require.NotNil(t, req.IsCustom)
	assert.False(t, *req.IsCustom)

	var body struct {
		Totals []billdomain.CurrencyTotal `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Totals, 1)
	assert.Equal(t, 80.0, body.Totals[0].UnpaidAmount)
}

func TestListBillsRejectsBadID(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/admin/bills?student_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifyUsesIdempotencyHeader(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/admin/packages/9/notify", "", headerIdempotencyKey, "ui-click-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, snowflake.ID(9), ts.notifications.notifyReq.PackageID)
	assert.Equal(t, "ui-click-1", ts.notifications.notifyReq.DispatchKey)

	rec = ts.do(http.MethodPost, "/admin/packages/9/notify", `{"dispatch_key":"body-key"}`, headerIdempotencyKey, "ui-click-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body-key", ts.notifications.notifyReq.DispatchKey)
}

func TestNotifyDispatchFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.notifications.notifyErr = fmt.Errorf("%w: gateway timeout", notificationdomain.ErrDispatchFailed)

	rec := ts.do(http.MethodPost, "/admin/packages/9/notify", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "dispatch_failed", decodeError(t, rec).Type)
}

func TestBulkNotifyAcceptsScalarOrList(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/admin/notifications/bulk", `{"package_ids":"4"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []snowflake.ID{4}, []snowflake.ID(ts.notifications.bulkReq.PackageIDs))

	rec = ts.do(http.MethodPost, "/admin/notifications/bulk", `{"package_ids":["4","5"],"only_first":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []snowflake.ID{4, 5}, []snowflake.ID(ts.notifications.bulkReq.PackageIDs))
	assert.True(t, ts.notifications.bulkReq.OnlyFirst)
}

func TestBulkNotifyBatchKeyFromHeaderOrBody(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/admin/notifications/bulk", `{"package_ids":["4"]}`, headerIdempotencyKey, "bulk-click-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bulk-click-1", ts.notifications.bulkReq.BatchKey)

	rec = ts.do(http.MethodPost, "/admin/notifications/bulk", `{"package_ids":["4"],"batch_key":"body-batch"}`, headerIdempotencyKey, "bulk-click-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body-batch", ts.notifications.bulkReq.BatchKey)
}

func TestSalaryDefaultsToCurrentMonth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/admin/salaries/12?currency=egp&rate=30", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := ts.salaries.breakdownReq
	assert.Equal(t, snowflake.ID(12), req.TeacherID)
	assert.Equal(t, 3, req.Month)
	assert.Equal(t, 2026, req.Year)
	assert.Equal(t, "EGP", req.Currency)
	require.NotNil(t, req.Rate)
	assert.Equal(t, 30.0, *req.Rate)
}

func TestPaymentLink(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/admin/bills/1/payment-link", "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	ts.links.ensureErr = fmt.Errorf("%w: upstream 503", paymentlinkdomain.ErrPaymentGateway)
	rec = ts.do(http.MethodPost, "/admin/bills/1/payment-link", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "payment_gateway_error", decodeError(t, rec).Type)

	ts.links.ensureErr = paymentlinkdomain.ErrBillAlreadyPaid
	rec = ts.do(http.MethodPost, "/admin/bills/1/payment-link", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMidtransNotification(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"order_id":"EC-1-x","status_code":"200","gross_amount":"80.00","signature_key":"sig","transaction_status":"settlement"}`

	rec := ts.do(http.MethodPost, "/api/payments/midtrans/notification", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), paymentlinkdomain.OutcomePaid)

	ts.links.notifyErr = paymentlinkdomain.ErrUnknownOrder
	rec = ts.do(http.MethodPost, "/api/payments/midtrans/notification", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	ts.links.notifyErr = paymentlinkdomain.ErrInvalidSignature
	rec = ts.do(http.MethodPost, "/api/payments/midtrans/notification", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/payments/midtrans/notification", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicBill(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/public/bills/good-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = ts.do(http.MethodGet, "/public/bills/other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicBillRateLimited(t *testing.T) {
	limiter := ratelimit.NewPublicLimiter(ratelimit.Params{
		Cfg: config.Config{PublicRateLimit: config.RateLimitConfig{Rate: 0.001, Burst: 1}},
		Log: zap.NewNop(),
	})
	require.NotNil(t, limiter)
	ts := newTestServer(t, limiter)

	rec := ts.do(http.MethodGet, "/public/bills/good-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/public/bills/good-token", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "too_many_requests", decodeError(t, rec).Type)
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(fmt.Errorf("close: %w", packagedomain.ErrActivePackageExists))
	assert.Equal(t, "conflict", kind)
	assert.Equal(t, "active_package_exists", code)

	kind, code = classifyErrorForLog(newValidationError("id", "invalid_id", "invalid id"))
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "invalid_id", code)
}

func TestListAuditLogsParsesFilters(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/admin/activity-logs?action=bill.paid,package.finished&action=bill.paid&target_type=package&from=2026-03-01&to=2026-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := ts.audit.listReq
	assert.ElementsMatch(t, []string{auditdomain.ActionBillPaid, auditdomain.ActionPackageFinished}, req.Actions)
	assert.Equal(t, "package", req.TargetType)
	require.NotNil(t, req.StartAt)
	require.NotNil(t, req.EndAt)
	assert.Equal(t, 31, req.EndAt.Day())
	assert.Equal(t, 23, req.EndAt.Hour())

	rec = ts.do(http.MethodGet, "/admin/activity-logs?from=2026-04-01&to=2026-03-01", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Type)

	rec = ts.do(http.MethodGet, "/admin/activity-logs?from=yesterday", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
