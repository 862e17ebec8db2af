package router

import (
	"time"

	"pharmapos/internal/config"
	"pharmapos/internal/handler"
	"pharmapos/internal/infra"
	"pharmapos/internal/middleware"
	"pharmapos/internal/model"
	"pharmapos/internal/repository"
	"pharmapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services are shared by the HTTP layer and the background workers.
type Services struct {
	Auth    service.AuthService
	Catalog service.CatalogService
	Stock   service.StockService
	Sales   service.SaleService
	Reports service.ReportService
}

// NewServices wires repositories into services.
// Dependency graph: Service ← Repository ← DB/Redis
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client, receipts service.ReceiptQueue) *Services {
	loc := cfg.Location()

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	batchRepo := repository.NewStockBatchRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	tx := repository.NewTransactor(db, cfg.LockTimeout)

	// ── Services ─────────────────────────────────────────────────────────────
	ledger := service.NewStockLedger(batchRepo, movementRepo, tx)
	reports := service.NewReportService(saleRepo, batchRepo, rdb, service.ReportOptions{
		Location:          loc,
		LowStockThreshold: cfg.LowStockThreshold,
		ExpiringDays:      cfg.ExpiryAlertDays,
		InventoryValueTTL: cfg.InventoryValueTTL,
	})

	return &Services{
		Auth:    service.NewAuthService(userRepo, cfg),
		Catalog: service.NewCatalogService(catalogRepo),
		Stock:   service.NewStockService(batchRepo, movementRepo, catalogRepo, ledger, reports, loc, cfg.LowStockThreshold),
		Sales:   service.NewSaleService(saleRepo, ledger, tx, receipts, reports, loc),
		Reports: reports,
	}
}

// New returns a configured Gin engine serving svcs.
// Dependency graph: Handler ← Service
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, svcs *Services, smtpCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SecureHeaders(cfg.IsProduction()))
	r.Use(middleware.CORS(cfg.IsProduction(), cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(rdb, "api", cfg.RateLimitPerMinute, time.Minute))

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svcs.Auth)
	usersH := handler.NewUsersHandler(svcs.Auth)
	salesH := handler.NewSalesHandler(svcs.Sales, cfg.StoreName)
	catalogH := handler.NewCatalogHandler(svcs.Catalog)
	stockH := handler.NewStockHandler(svcs.Stock, svcs.Reports, handler.StockDefaults{
		ExpiringDays:      cfg.ExpiryAlertDays,
		LowStockThreshold: cfg.LowStockThreshold,
	})
	reportsH := handler.NewReportsHandler(svcs.Reports)
	opsH := handler.NewOpsHandler(rdb)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, smtpCB))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.RateLimiter(rdb, "login", cfg.LoginRatePerMinute, time.Minute), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes. Every role reads and sells; catalogue and stock
	// writes are admin only.
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleStaff)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	sales := v1.Group("/sales", anyRole)
	{
		sales.POST("", salesH.CreateSale)
		sales.GET("", salesH.ListSales)
		sales.GET("/:id", salesH.GetSale)
		sales.GET("/:id/receipt", salesH.Receipt)
	}

	brands := v1.Group("/brands")
	{
		brands.GET("", anyRole, catalogH.ListBrands)
		brands.GET("/:id", anyRole, catalogH.GetBrand)
		brands.POST("", adminOnly, catalogH.CreateBrand)
		brands.PUT("/:id", adminOnly, catalogH.UpdateBrand)
		brands.DELETE("/:id", adminOnly, catalogH.DeleteBrand)
	}

	categories := v1.Group("/categories")
	{
		categories.GET("", anyRole, catalogH.ListCategories)
		categories.GET("/:id", anyRole, catalogH.GetCategory)
		categories.POST("", adminOnly, catalogH.CreateCategory)
		categories.PUT("/:id", adminOnly, catalogH.UpdateCategory)
		categories.DELETE("/:id", adminOnly, catalogH.DeleteCategory)
	}

	products := v1.Group("/products")
	{
		products.GET("", anyRole, catalogH.ListProducts)
		products.GET("/:id", anyRole, catalogH.GetProduct)
		products.POST("", adminOnly, catalogH.CreateProduct)
		products.PUT("/:id", adminOnly, catalogH.UpdateProduct)
		products.DELETE("/:id", adminOnly, catalogH.DeleteProduct)
	}

	stock := v1.Group("/stock")
	{
		stock.GET("", anyRole, stockH.List)
		stock.GET("/expiring", anyRole, stockH.Expiring)
		stock.GET("/low", anyRole, stockH.LowStock)
		stock.GET("/:id", anyRole, stockH.Get)
		stock.GET("/:id/movements", anyRole, stockH.Movements)
		stock.POST("", adminOnly, stockH.Create)
		stock.PUT("/:id", adminOnly, stockH.Update)
		stock.DELETE("/:id", adminOnly, stockH.Delete)
		stock.POST("/:id/restock", adminOnly, stockH.Restock)
	}

	reports := v1.Group("/reports", anyRole)
	{
		reports.GET("/sales", reportsH.SalesReport)
		reports.GET("/sales-summary", reportsH.SalesSummary)
		reports.GET("/inventory-summary", reportsH.InventorySummary)
		reports.GET("/inventory-value", reportsH.InventoryValue)
		reports.GET("/dashboard", reportsH.Dashboard)
	}

	users := v1.Group("/users", adminOnly)
	{
		users.POST("", usersH.Create)
		users.GET("", usersH.List)
	}

	v1.GET("/ops/dlq/:queue", adminOnly, opsH.DeadLetters)

	return r
}
