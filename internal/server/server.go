package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/internal/clock"
	"github.com/emadn88/elmcorner/internal/config"
	consumptiondomain "github.com/emadn88/elmcorner/internal/consumption/domain"
	notificationdomain "github.com/emadn88/elmcorner/internal/notification/domain"
	"github.com/emadn88/elmcorner/internal/observability"
	obsmiddleware "github.com/emadn88/elmcorner/internal/observability/logger"
	obsmetrics "github.com/emadn88/elmcorner/internal/observability/metrics"
	obstracing "github.com/emadn88/elmcorner/internal/observability/tracing"
	paymentlinkdomain "github.com/emadn88/elmcorner/internal/paymentlink/domain"
	"github.com/emadn88/elmcorner/internal/ratelimit"
	salarydomain "github.com/emadn88/elmcorner/internal/salary/domain"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	clock           clock.Clock
	packageSvc      packagedomain.Service
	classSvc        consumptiondomain.Service
	billSvc         billdomain.Service
	notificationSvc notificationdomain.Service
	salarySvc       salarydomain.Service
	paymentLinkSvc  paymentlinkdomain.Service
	auditSvc        auditdomain.Service
	publicLimiter   *ratelimit.PublicLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Clock           clock.Clock
	PackageSvc      packagedomain.Service
	ClassSvc        consumptiondomain.Service
	BillSvc         billdomain.Service
	NotificationSvc notificationdomain.Service
	SalarySvc       salarydomain.Service
	PaymentLinkSvc  paymentlinkdomain.Service
	AuditSvc        auditdomain.Service
	PublicLimiter   *ratelimit.PublicLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		clock:           p.Clock,
		packageSvc:      p.PackageSvc,
		classSvc:        p.ClassSvc,
		billSvc:         p.BillSvc,
		notificationSvc: p.NotificationSvc,
		salarySvc:       p.SalarySvc,
		paymentLinkSvc:  p.PaymentLinkSvc,
		auditSvc:        p.AuditSvc,
		publicLimiter:   p.PublicLimiter,
	}
	if svc.clock == nil {
		svc.clock = clock.SystemClock{}
	}

	svc.registerAdminRoutes()
	svc.registerAPIRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	// -------- Packages --------
	admin.POST("/packages", s.CreatePackage)
	admin.GET("/packages", s.ListPackages)
	admin.GET("/packages/finished", s.ListFinishedPackages)
	admin.GET("/packages/:id", tagResource(contextPackageIDKey), s.GetPackage)
	admin.POST("/packages/:id/close", tagResource(contextPackageIDKey), s.ClosePackage)
	admin.POST("/packages/:id/reactivate", tagResource(contextPackageIDKey), s.ReactivatePackage)
	admin.GET("/packages/:id/classes", tagResource(contextPackageIDKey), s.ListPackageClasses)
	admin.GET("/packages/:id/bill-summary", tagResource(contextPackageIDKey), s.GetPackageBillSummary)

	// -------- Classes --------
	admin.POST("/classes", s.CreateClass)
	admin.PATCH("/classes/:id/status", tagResource(contextClassIDKey), s.UpdateClassStatus)

	// -------- Bills --------
	admin.GET("/bills", s.ListBills)
	admin.POST("/bills/custom", s.CreateCustomBill)
	admin.GET("/bills/:id", tagResource(contextBillIDKey), s.GetBill)
	admin.POST("/bills/:id/mark-paid", tagResource(contextBillIDKey), s.MarkBillPaid)
	admin.POST("/bills/:id/payment-link", tagResource(contextBillIDKey), s.CreatePaymentLink)
	admin.GET("/students/:id/bill-summary", tagResource(contextStudentIDKey), s.GetStudentBillSummary)

	// -------- Notifications --------
	admin.GET("/packages/:id/notification", tagResource(contextPackageIDKey), s.GetPackageNotification)
	admin.POST("/packages/:id/notify", tagResource(contextPackageIDKey), s.NotifyPackage)
	admin.POST("/notifications/bulk", s.BulkNotify)

	// -------- Salaries --------
	admin.GET("/salaries/statistics", s.GetSalaryStatistics)
	admin.GET("/salaries/statistics/export", s.ExportSalaryStatistics)
	admin.GET("/salaries/:teacher_id", s.GetTeacherSalary)

	// -------- Activity --------
	admin.GET("/activity-logs", s.ListAuditLogs)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Payment Webhooks --------
	api.POST("/payments/midtrans/notification", s.HandleMidtransNotification)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public")
	public.Use(s.PublicRateLimit())

	public.GET("/bills/:token", s.GetPublicBill)
}
