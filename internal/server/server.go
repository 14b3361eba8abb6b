package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/invoicedesk/internal/clock"
	"github.com/smallbiznis/invoicedesk/internal/config"
	"github.com/smallbiznis/invoicedesk/internal/idempotency"
	"github.com/smallbiznis/invoicedesk/internal/invoice"
	invoicedomain "github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/invoicedesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicedesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/invoicedesk/internal/observability/tracing"
	"github.com/smallbiznis/invoicedesk/internal/payment"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	payment.Module,
	invoice.Module,
	idempotency.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, cfg config.Config) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			idempotency.HeaderKey,
			obsmiddleware.HeaderRequestID,
			obsmiddleware.HeaderCorrelationID,
		},
		ExposeHeaders: []string{
			"Content-Disposition",
			idempotency.HeaderReplayed,
			obsmiddleware.HeaderRequestID,
			obsmiddleware.HeaderCorrelationID,
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, cfg config.Config) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, cfg)
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	log = log.Named("http.server")
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	clock       clock.Clock
	invoiceSvc  invoicedomain.Service
	idempotency idempotency.Store
	display     *config.DisplayConfigHolder
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	InvoiceSvc  invoicedomain.Service
	Idempotency idempotency.Store           `optional:"true"`
	Display     *config.DisplayConfigHolder `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http"),
		clock:       clk,
		invoiceSvc:  p.InvoiceSvc,
		idempotency: p.Idempotency,
		display:     p.Display,
	}

	svc.RegisterRoutes()
	return svc
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")
	api.GET("/currencies", s.ListCurrencies)

	ttl := s.cfg.Idempotency.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	idem := idempotency.Middleware(s.idempotency, ttl, s.log)

	invoices := api.Group("/invoices")
	invoices.GET("", s.ListInvoices)
	invoices.POST("", idem, s.CreateInvoice)
	invoices.POST("/archive", s.ArchiveInvoice)
	invoices.GET("/:id", s.GetInvoice)
	invoices.DELETE("/:id", s.DeleteInvoice)
	invoices.POST("/:id/payments", idem, s.RecordPayment)
	invoices.GET("/:id/render", s.RenderInvoice)
	invoices.GET("/:id/pdf", s.DownloadInvoicePDF)
}
