package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/revrec/internal/config"
	"github.com/smallbiznis/revrec/internal/enrollment"
	"github.com/smallbiznis/revrec/internal/invoice"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	"github.com/smallbiznis/revrec/internal/ledger"
	ledgerdomain "github.com/smallbiznis/revrec/internal/ledger/domain"
	"github.com/smallbiznis/revrec/internal/observability"
	obslogger "github.com/smallbiznis/revrec/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/revrec/internal/observability/metrics"
	obstracing "github.com/smallbiznis/revrec/internal/observability/tracing"
	"github.com/smallbiznis/revrec/internal/ratelimit"
	"github.com/smallbiznis/revrec/internal/recognition"
	recognitiondomain "github.com/smallbiznis/revrec/internal/recognition/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Services wires every domain module the HTTP API depends on.
var Services = fx.Options(
	ratelimit.Module,
	enrollment.Module,
	ledger.Module,
	recognition.Module,
	invoice.Module,
)

var Module = fx.Module("http.server",
	Services,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.Metrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
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

type engineParams struct {
	fx.In

	ObsCfg  observability.Config
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func registerGin(p engineParams) *gin.Engine {
	return NewEngine(p.ObsCfg, p.Metrics)
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
	engine         *gin.Engine
	cfg            config.Config
	invoiceSvc     invoicedomain.Service
	ledgerSvc      ledgerdomain.Service
	recognitionSvc recognitiondomain.Service
	replayGuard    *ratelimit.ReplayGuard
	log            *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	InvoiceSvc     invoicedomain.Service
	LedgerSvc      ledgerdomain.Service
	RecognitionSvc recognitiondomain.Service
	ReplayGuard    *ratelimit.ReplayGuard `optional:"true"`
	Log            *zap.Logger            `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		invoiceSvc:     p.InvoiceSvc,
		ledgerSvc:      p.LedgerSvc,
		recognitionSvc: p.RecognitionSvc,
		replayGuard:    p.ReplayGuard,
		log:            p.Log,
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	svc.log = svc.log.Named("http.server")

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Invoices --------
	api.POST("/invoices/import", s.ImportInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.POST("/invoices/:id/status", s.UpdateInvoiceStatus)

	// -------- Revenue --------
	api.GET("/revenue", s.ListRevenue)
	api.GET("/invoices/:id/revenue", s.ListInvoiceRevenue)
	api.POST("/invoices/:id/revenue/replay", s.replayRateLimit("invoice"), s.ReplayInvoiceRevenue)
	if !s.cfg.IsProduction() {
		api.POST("/revenue/replay", s.replayRateLimit("all"), s.ReplayPaidRevenue)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
