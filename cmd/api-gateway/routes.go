package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/admission-api/internal/handler"
	"github.com/noah-isme/admission-api/internal/middleware"
	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/pkg/config"
)

type routeDeps struct {
	cfg       *config.Config
	auth      *handler.AuthHandler
	referral  *handler.ReferralHandler
	payment   *handler.PaymentHandler
	app       *handler.ApplicationHandler
	review    *handler.ReviewHandler
	dashboard *handler.DashboardHandler
	metrics   *handler.MetricsHandler
	tokens    middleware.TokenValidator
	audit     middleware.AuditWriter
	limiter   *middleware.RateLimiter
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/health", d.metrics.Health)
	r.GET("/ready", d.metrics.Ready)
	r.GET("/metrics", d.metrics.Prometheus)

	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	throttle := func(c *gin.Context) { c.Next() }
	if d.limiter != nil {
		throttle = d.limiter.Handler()
	}

	api := r.Group(d.cfg.APIPrefix)
	api.GET("/courses", d.app.Courses)
	api.GET("/files/:token", d.app.File)

	auth := api.Group("/auth")
	auth.POST("/register", throttle, d.auth.Register)
	auth.POST("/login", throttle, d.auth.Login)

	student := api.Group("")
	student.Use(middleware.JWT(d.tokens), middleware.RequireRoles(models.RoleStudent))
	student.GET("/me", d.dashboard.Me)
	student.POST("/referrals/redeem", throttle, d.referral.Redeem)
	student.POST("/payments/initiate", d.payment.Initiate)
	student.GET("/payments/verify", throttle, d.payment.Verify)
	student.GET("/application", d.app.Get)
	student.PUT("/application/sections/:section", d.app.SaveSection)
	student.PUT("/application/passport", d.app.SavePassport)
	student.POST("/application/submit", d.app.Submit)
	student.GET("/application/pdf", d.app.PDF)
	student.GET("/application/documents/:type/link", d.app.DocumentLink)

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(d.tokens), middleware.RequireRoles(models.RoleStaff, models.RoleAdmin))
	admin.GET("/summary", d.dashboard.Summary)
	admin.GET("/applications", d.review.List)
	admin.GET("/applications/export", middleware.Audit(d.audit, models.AuditActionRosterExport, "applications"), d.review.Export)
	admin.POST("/applications/status", d.review.BulkSetStatus)
	admin.GET("/applications/:id", d.review.Detail)
	admin.PUT("/applications/:id/status", d.review.SetStatus)
	admin.GET("/applications/:id/documents/:type/link", d.review.DocumentLink)
	admin.GET("/payments", d.payment.List)
	admin.POST("/payments/:id/succeed", d.payment.MarkSucceeded)
	admin.POST("/payments/:id/fail", d.payment.MarkFailed)
	admin.GET("/referral-codes", d.referral.List)
	admin.POST("/referral-codes", d.referral.Generate)
}
