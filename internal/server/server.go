package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tkwa12358/newenglish/internal/assessment"
	assessmentdomain "github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/audit"
	auditdomain "github.com/tkwa12358/newenglish/internal/audit/domain"
	"github.com/tkwa12358/newenglish/internal/auth"
	authdomain "github.com/tkwa12358/newenglish/internal/auth/domain"
	"github.com/tkwa12358/newenglish/internal/authcode"
	authcodedomain "github.com/tkwa12358/newenglish/internal/authcode/domain"
	"github.com/tkwa12358/newenglish/internal/authorization"
	"github.com/tkwa12358/newenglish/internal/config"
	"github.com/tkwa12358/newenglish/internal/observability"
	obsmiddleware "github.com/tkwa12358/newenglish/internal/observability/logger"
	obsmetrics "github.com/tkwa12358/newenglish/internal/observability/metrics"
	obstracing "github.com/tkwa12358/newenglish/internal/observability/tracing"
	"github.com/tkwa12358/newenglish/internal/providers"
	"github.com/tkwa12358/newenglish/internal/quota"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	"github.com/tkwa12358/newenglish/internal/ratelimit"
	"github.com/tkwa12358/newenglish/internal/secret"
	"github.com/tkwa12358/newenglish/internal/speechprovider"
	providerdomain "github.com/tkwa12358/newenglish/internal/speechprovider/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	secret.Module,
	audit.Module,
	auth.Module,
	authorization.Module,
	quota.Module,
	speechprovider.Module,
	providers.Module,
	assessment.Module,
	authcode.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Cfg         config.Config
	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if !p.ObsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(p.Cfg.CORSAllowedOrigins))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           p.ObsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if p.HTTPMetrics != nil {
		r.Use(obsmetrics.GinMiddleware(p.HTTPMetrics))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Client-Info", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cors.New(cfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, _ *Server, log *zap.Logger) {
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	authsvc       authdomain.Service
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	assessmentSvc assessmentdomain.Service
	quotaSvc      quotadomain.Service
	providerSvc   providerdomain.Service
	authCodeSvc   authcodedomain.Service
	limiter       rateLimiter
}

// rateLimiter is the part of *ratelimit.Limiter the handlers use. Its methods
// allow everything on a nil or disabled limiter.
type rateLimiter interface {
	AllowAssessment(ctx context.Context, userID string) (*ratelimit.Result, error)
	AllowRedeem(ctx context.Context, userID string) (*ratelimit.Result, error)
	LockCode(ctx context.Context, code string) (func(), bool, error)
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Authsvc       authdomain.Service
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	AssessmentSvc assessmentdomain.Service
	QuotaSvc      quotadomain.Service
	ProviderSvc   providerdomain.Service
	AuthCodeSvc   authcodedomain.Service
	Limiter       *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		authsvc:       p.Authsvc,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		assessmentSvc: p.AssessmentSvc,
		quotaSvc:      p.QuotaSvc,
		providerSvc:   p.ProviderSvc,
		authCodeSvc:   p.AuthCodeSvc,
		limiter:       p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	api.POST("/assessments", s.RateLimit(ratelimit.EndpointAssessment), s.AssessStandard)
	api.POST("/assessments/professional", s.RateLimit(ratelimit.EndpointAssessment), s.AssessProfessional)
	api.GET("/assessments", s.ListAssessments)

	api.GET("/me/quota", s.GetQuota)
	api.POST("/redeem", s.RateLimit(ratelimit.EndpointRedeem), s.Redeem)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AuthRequired())

	// -------- Speech providers --------
	admin.GET("/providers", s.authorizeAction(authorization.ObjectSpeechProvider, authorization.ActionView), s.ListProviders)
	admin.POST("/providers", s.authorizeAction(authorization.ObjectSpeechProvider, authorization.ActionManage), s.CreateProvider)
	admin.GET("/providers/:id", s.authorizeAction(authorization.ObjectSpeechProvider, authorization.ActionView), s.GetProviderByID)
	admin.PATCH("/providers/:id", s.authorizeAction(authorization.ObjectSpeechProvider, authorization.ActionManage), s.UpdateProvider)
	admin.DELETE("/providers/:id", s.authorizeAction(authorization.ObjectSpeechProvider, authorization.ActionManage), s.DeleteProvider)
	admin.POST("/providers/:id/default", s.authorizeAction(authorization.ObjectSpeechProvider, authorization.ActionManage), s.SetDefaultProvider)
	admin.POST("/providers/:id/active", s.authorizeAction(authorization.ObjectSpeechProvider, authorization.ActionManage), s.SetProviderActive)

	// -------- Authorization codes --------
	admin.GET("/codes", s.authorizeAction(authorization.ObjectAuthCode, authorization.ActionView), s.ListCodes)
	admin.POST("/codes", s.authorizeAction(authorization.ObjectAuthCode, authorization.ActionManage), s.GenerateCodes)
	admin.GET("/codes/export.pdf", s.authorizeAction(authorization.ObjectAuthCode, authorization.ActionExport), s.ExportCodes)

	// -------- Audit --------
	admin.GET("/audit-logs", s.authorizeAction(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}
