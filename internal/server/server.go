package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	authdomain "github.com/rentfolio/rentfolio/internal/auth/domain"
	"github.com/rentfolio/rentfolio/internal/authorization"
	"github.com/rentfolio/rentfolio/internal/billing/catalog"
	billingdomain "github.com/rentfolio/rentfolio/internal/billing/domain"
	"github.com/rentfolio/rentfolio/internal/clock"
	"github.com/rentfolio/rentfolio/internal/config"
	expensedomain "github.com/rentfolio/rentfolio/internal/expense/domain"
	leasedomain "github.com/rentfolio/rentfolio/internal/lease/domain"
	loandomain "github.com/rentfolio/rentfolio/internal/loan/domain"
	"github.com/rentfolio/rentfolio/internal/observability"
	obsmiddleware "github.com/rentfolio/rentfolio/internal/observability/logger"
	obsmetrics "github.com/rentfolio/rentfolio/internal/observability/metrics"
	obstracing "github.com/rentfolio/rentfolio/internal/observability/tracing"
	organizationdomain "github.com/rentfolio/rentfolio/internal/organization/domain"
	projectionservice "github.com/rentfolio/rentfolio/internal/projection/service"
	propertydomain "github.com/rentfolio/rentfolio/internal/property/domain"
	"github.com/rentfolio/rentfolio/internal/ratelimit"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.registerAuthRoutes()
		s.registerAPIRoutes()
		s.registerAdminRoutes()
	}),
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
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	clock  clock.Clock

	authSvc         authdomain.Service
	authzSvc        authorization.Service
	organizationSvc organizationdomain.Service
	billingSvc      billingdomain.Service
	webhookSvc      billingdomain.WebhookService
	catalog         *catalog.Catalog
	propertySvc     propertydomain.Service
	leaseSvc        leasedomain.Service
	loanSvc         loandomain.Service
	expenseSvc      expensedomain.Service
	projectionSvc   projectionservice.Service

	limiter    *ratelimit.TokenBucket
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Clock           clock.Clock
	AuthSvc         authdomain.Service
	AuthzSvc        authorization.Service
	OrganizationSvc organizationdomain.Service
	BillingSvc      billingdomain.Service
	WebhookSvc      billingdomain.WebhookService
	Catalog         *catalog.Catalog
	PropertySvc     propertydomain.Service
	LeaseSvc        leasedomain.Service
	LoanSvc         loandomain.Service
	ExpenseSvc      expensedomain.Service
	ProjectionSvc   projectionservice.Service

	Limiter    *ratelimit.TokenBucket `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		clock:           p.Clock,
		authSvc:         p.AuthSvc,
		authzSvc:        p.AuthzSvc,
		organizationSvc: p.OrganizationSvc,
		billingSvc:      p.BillingSvc,
		webhookSvc:      p.WebhookSvc,
		catalog:         p.Catalog,
		propertySvc:     p.PropertySvc,
		leaseSvc:        p.LeaseSvc,
		loanSvc:         p.LoanSvc,
		expenseSvc:      p.ExpenseSvc,
		projectionSvc:   p.ProjectionSvc,
		limiter:         p.Limiter,
		obsMetrics:      p.ObsMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/register", s.Register)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)

	user := auth.Group("/user", s.AuthRequired())
	{
		user.GET("/orgs", s.ListUserOrgs)
		user.POST("/orgs", s.CreateOrganization)
	}
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Billing Webhooks --------
	api.POST("/billing/webhooks/:provider", s.WebhookRateLimit(), s.HandleBillingWebhook)

	api.GET("/billing/plans", s.ListPlans)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	// --- global middlewares ---
	admin.Use(s.AuthRequired())
	admin.Use(s.OrgContext())

	// -------- Organization --------
	admin.GET("/organization", s.GetOrganization)
	admin.GET("/members", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.ListOrganizationMembers)
	admin.POST("/members", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationManageMembers), s.AddOrganizationMember)
	admin.DELETE("/members/:userId", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationManageMembers), s.RemoveOrganizationMember)

	// -------- Billing --------
	// These stay reachable when the verdict blocks, otherwise a past-due
	// tenant could never pay their way back in.
	admin.GET("/billing", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.GetBillingRecord)
	admin.POST("/billing/checkout-session", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectBilling, authorization.ActionBillingManage), s.CreateCheckoutSession)
	admin.POST("/billing/portal-session", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectBilling, authorization.ActionBillingManage), s.CreatePortalSession)

	// -------- Portfolio --------
	portfolio := admin.Group("", s.BillingRequired())

	portfolio.GET("/properties", s.ListProperties)
	portfolio.POST("/properties", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.CreateProperty)
	portfolio.GET("/properties/:id", s.GetPropertyByID)
	portfolio.PATCH("/properties/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.UpdateProperty)
	portfolio.DELETE("/properties/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectProperty, authorization.ActionPropertyDelete), s.DeleteProperty)

	portfolio.GET("/leases", s.ListLeases)
	portfolio.POST("/leases", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.CreateLease)
	portfolio.GET("/leases/:id", s.GetLeaseByID)
	portfolio.POST("/leases/:id/end", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.EndLease)
	portfolio.DELETE("/leases/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectLease, authorization.ActionLeaseDelete), s.DeleteLease)

	portfolio.GET("/loans", s.ListLoans)
	portfolio.POST("/loans", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.CreateLoan)
	portfolio.GET("/loans/:id", s.GetLoanByID)
	portfolio.DELETE("/loans/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectLoan, authorization.ActionLoanDelete), s.DeleteLoan)

	portfolio.GET("/expenses", s.ListExpenses)
	portfolio.POST("/expenses", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.CreateExpense)
	portfolio.GET("/expenses/:id", s.GetExpenseByID)
	portfolio.DELETE("/expenses/:id", s.RequireRole(organizationdomain.RoleOwner, organizationdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectExpense, authorization.ActionExpenseDelete), s.DeleteExpense)

	portfolio.GET("/projections", s.GetPortfolioProjection)
	portfolio.GET("/properties/:id/projection", s.GetPropertyProjection)
}
