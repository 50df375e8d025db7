// Package router wires services, handlers and middleware into the HTTP API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"mana/internal/config"
	_ "mana/internal/docs" // Import swagger docs
	"mana/internal/events"
	"mana/internal/handlers"
	"mana/internal/middleware"
	"mana/internal/services"
)

// Services is the service graph shared by the API and the worker.
type Services struct {
	User        services.UserServicer
	Category    services.CategoryServicer
	Wallet      services.WalletServicer
	Card        services.CardServicer
	Transaction services.TransactionServicer
	Budget      services.BudgetServicer
	Report      services.ReportServicer
	Snapshot    services.SnapshotServicer
	Goal        services.GoalServicer
	Audit       services.AuditServicer
}

// NewServices builds every service on db. A nil publisher drops transaction
// events.
func NewServices(db *gorm.DB, cfg *config.Config, publisher events.Publisher) *Services {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	categoryService := services.NewCategoryService(db)
	walletService := services.NewWalletService(db)
	cardService := services.NewCardService(db)

	return &Services{
		User:        services.NewUserService(db),
		Category:    categoryService,
		Wallet:      walletService,
		Card:        cardService,
		Transaction: services.NewTransactionService(db, walletService, cardService, publisher),
		Budget:      services.NewBudgetService(db, categoryService),
		Report:      services.NewReportService(db, cfg.ReportCacheSize, cfg.ReportCacheTTL),
		Snapshot:    services.NewSnapshotService(db),
		Goal:        services.NewGoalService(db),
		Audit:       services.NewAuditService(db),
	}
}

// New returns the gin engine serving the v1 API, health check and swagger UI.
func New(cfg *config.Config, svc *Services) *gin.Engine {
	profileHandler := handlers.NewProfileHandler(svc.User, svc.Audit)
	categoryHandler := handlers.NewCategoryHandler(svc.Category, svc.Audit)
	transactionHandler := handlers.NewTransactionHandler(svc.Transaction, svc.Audit)
	budgetHandler := handlers.NewBudgetHandler(svc.Budget, svc.Report, svc.Audit)
	cardHandler := handlers.NewCardHandler(svc.Card, svc.Report, svc.Audit)
	walletHandler := handlers.NewWalletHandler(svc.Wallet, svc.Audit)
	goalHandler := handlers.NewGoalHandler(svc.Goal, svc.Audit)
	reportHandler := handlers.NewReportHandler(svc.Report, svc.Snapshot)
	pipelineHandler := handlers.NewPipelineHandler(svc.Snapshot, svc.Budget)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Pipeline routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(cfg.PipelineAPIKey))
	pipeline.POST("/snapshots", pipelineHandler.ComputeSnapshots)
	pipeline.POST("/budgets/freeze", pipelineHandler.FreezeLimits)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	protected.GET("/profile", profileHandler.GetProfile)
	protected.PUT("/profile", profileHandler.UpdateProfile)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.POST("/installments", transactionHandler.CreateInstallments)
	transactions.POST("/transfer", transactionHandler.CreateTransfer)
	transactions.POST("/import", transactionHandler.ImportTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	budgets := protected.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetUserBudgets)
	budgets.GET("/:id", budgetHandler.GetBudgetByID)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)
	budgets.GET("/:id/status", budgetHandler.GetBudgetStatus)
	budgets.GET("/:id/overrides", budgetHandler.GetLimitOverrides)
	budgets.PUT("/:id/overrides/:year/:month", budgetHandler.SetLimitOverride)
	budgets.DELETE("/:id/overrides/:year/:month", budgetHandler.DeleteLimitOverride)

	cards := protected.Group("/cards")
	cards.POST("", cardHandler.CreateCard)
	cards.GET("", cardHandler.GetUserCards)
	cards.GET("/:id", cardHandler.GetCardByID)
	cards.PUT("/:id", cardHandler.UpdateCard)
	cards.DELETE("/:id", cardHandler.DeleteCard)
	cards.GET("/:id/invoice", cardHandler.GetCardInvoice)

	wallets := protected.Group("/wallets")
	wallets.POST("", walletHandler.CreateWallet)
	wallets.GET("", walletHandler.GetUserWallets)
	wallets.GET("/:id", walletHandler.GetWalletByID)
	wallets.PUT("/:id", walletHandler.UpdateWallet)
	wallets.DELETE("/:id", walletHandler.DeleteWallet)

	goals := protected.Group("/goals")
	goals.POST("", goalHandler.CreateGoal)
	goals.GET("", goalHandler.GetUserGoals)
	goals.GET("/:id", goalHandler.GetGoalByID)
	goals.PUT("/:id", goalHandler.UpdateGoal)
	goals.DELETE("/:id", goalHandler.DeleteGoal)
	goals.POST("/:id/contributions", goalHandler.Contribute)

	reports := protected.Group("/reports")
	reports.GET("/budgets", reportHandler.GetBudgetStatuses)
	reports.GET("/invoices", reportHandler.GetInvoices)
	reports.GET("/dashboard", reportHandler.GetDashboard)
	reports.GET("/snapshots", reportHandler.GetSnapshots)

	return router
}
