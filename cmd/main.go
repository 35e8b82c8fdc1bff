package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"afyapay/internal/caching"
	"afyapay/internal/common"
	"afyapay/internal/config"
	"afyapay/internal/handlers"
	"afyapay/internal/jobs/background"
	"afyapay/internal/middleware"
	"afyapay/internal/repositories"
	"afyapay/internal/services"
	"afyapay/pkg/database"
	"afyapay/utils"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	utils.InitializeLogger()
	logger := utils.GetLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}

	darajaCfg, err := config.LoadDarajaConfig(cfg.DarajaConfigPath)
	if err != nil {
		logger.Fatal("gateway configuration error", zap.Error(err))
	}

	pool, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	cache := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	archive, err := services.NewMinioArchiveService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		logger.Fatal("failed to initialize callback archive", zap.Error(err))
	}

	// Repositories
	invoiceRepo := repositories.NewInvoiceRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	transactionRepo := repositories.NewTransactionRepo(pool)
	gatewayRequestRepo := repositories.NewGatewayRequestRepo(pool)
	providerRepo := repositories.NewProviderRepo(pool)
	appointmentRepo := repositories.NewAppointmentRepo(pool)

	// Services
	notify := services.NewWebhookNotificationService(cfg.NotifyWebhookURL, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	daraja := services.NewDarajaService(darajaCfg, cache, gatewayRequestRepo)
	invoiceSvc := services.NewInvoiceService(invoiceRepo, providerRepo, cache)
	walletSvc := services.NewWalletService(walletRepo, transactionRepo, providerRepo, cache)
	paymentSvc := services.NewPaymentService(daraja, invoiceRepo, gatewayRequestRepo, providerRepo, appointmentRepo, walletSvc, archive, notify, cache)
	reconciliationSvc := services.NewReconciliationService(providerRepo, invoiceRepo, walletRepo, transactionRepo, cache)

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(paymentSvc, cache)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceSvc, paymentSvc)
	walletHandler := handlers.NewWalletHandler(walletSvc, reconciliationSvc)
	providerHandler := handlers.NewProviderHandler(providerRepo, appointmentRepo)
	healthHandler := handlers.NewHealthHandler(pool, cache)

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())

	// Health and monitoring, unauthenticated.
	e.GET("/health", healthHandler.HealthCheck)
	e.GET("/health/ready", healthHandler.ReadinessCheck)
	e.GET("/health/live", healthHandler.LivenessCheck)
	e.GET("/metrics", healthHandler.Metrics)

	// The gateway callback cannot carry our JWT; it is rate limited instead.
	e.POST("/v1/payments/callback", paymentHandler.Callback)

	protected := e.Group("/v1")
	protected.Use(echojwt.WithConfig(middleware.JWTConfig(cfg.JWTSecret)))
	protected.Use(middleware.InjectIdentity())

	protected.POST("/payments/initiate", paymentHandler.InitiatePayment)
	protected.GET("/payments/:id/status", paymentHandler.PaymentStatus)

	protected.POST("/invoices", invoiceHandler.CreateInvoice, middleware.RequireRole(common.RoleProvider, common.RoleAdmin))
	protected.GET("/invoices", invoiceHandler.ListInvoices)
	protected.GET("/invoices/:id", invoiceHandler.GetInvoice)
	protected.PUT("/invoices/:id", invoiceHandler.UpdateLineItems, middleware.RequireRole(common.RoleProvider, common.RoleAdmin))
	protected.PUT("/invoices/:id/status", invoiceHandler.UpdateStatus, middleware.RequireRole(common.RoleProvider, common.RoleAdmin))
	protected.POST("/invoices/:id/confirm", invoiceHandler.ConfirmPayment, middleware.RequireRole(common.RoleProvider, common.RoleAdmin))
	protected.GET("/invoices/analytics", invoiceHandler.Analytics, middleware.RequireRole(common.RoleAdmin))

	protected.GET("/wallet/balance", walletHandler.Balance)
	protected.GET("/wallet/transactions", walletHandler.Transactions)
	protected.POST("/wallet/withdraw", walletHandler.Withdraw, middleware.RequireRole(common.RoleProvider, common.RoleAdmin))

	protected.POST("/providers", providerHandler.CreateProvider, middleware.RequireRole(common.RoleAdmin))
	protected.GET("/providers", providerHandler.ListProviders, middleware.RequireRole(common.RoleAdmin))
	protected.GET("/providers/:id", providerHandler.GetProvider)
	protected.GET("/providers/:id/balance", walletHandler.ProviderBalance, middleware.RequireRole(common.RoleAdmin))
	protected.POST("/providers/:id/reconcile", walletHandler.Reconcile, middleware.RequireRole(common.RoleAdmin))
	protected.POST("/appointments", providerHandler.CreateAppointment, middleware.RequireRole(common.RoleProvider, common.RoleAdmin))

	scheduler, err := background.NewJobScheduler(invoiceSvc, paymentSvc, reconciliationSvc, notify)
	if err != nil {
		logger.Fatal("failed to create job scheduler", zap.Error(err))
	}
	scheduler.Start()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := scheduler.Stop(); err != nil {
		logger.Error("scheduler shutdown error", zap.Error(err))
	}
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
