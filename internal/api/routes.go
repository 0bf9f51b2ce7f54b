package api

import (
	"cryptovault/internal/chain"
	"cryptovault/internal/config"
	"cryptovault/internal/events"
	"cryptovault/internal/jobs"
	"cryptovault/internal/middleware"
	"cryptovault/internal/oauth"
	"cryptovault/internal/storage"

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps are the collaborators handlers are built from
type Deps struct {
	DB         *gorm.DB
	Redis      *redis.Client // nil disables caching
	Config     *config.Config
	Store      storage.BlobStore
	Chain      chain.Client
	Events     events.Publisher
	OAuth      oauth.Provider // nil disables Google sign-in
	Reconciler *jobs.Reconciler
}

// RegisterRoutes mounts every API route on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	db, rdb, cfg := d.DB, d.Redis, d.Config
	authRequired := middleware.AuthMiddleware(db, cfg.JWTSecret)
	sellerOnly := middleware.SellerOnlyMiddleware(db)

	api := r.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.GET("/google/login", GoogleLoginHandler(d.OAuth, cfg))
	auth.GET("/google/callback", GoogleCallbackHandler(db, d.OAuth, cfg))
	auth.POST("/logout", LogoutHandler(cfg))

	// Users (protected)
	users := api.Group("/users", authRequired)
	users.GET("/me", MeHandler(db))
	users.GET("/profile", GetProfileHandler(db))
	users.POST("/profile", UpdateProfileHandler(db))
	users.GET("/api-keys", ListAPIKeysHandler(db))
	users.POST("/api-keys", CreateAPIKeyHandler(db))
	users.DELETE("/api-keys/:id", RevokeAPIKeyHandler(db))

	// Datasets: listing and detail are public
	datasets := api.Group("/datasets")
	datasets.GET("", ListDatasetsHandler(db, rdb))
	datasets.GET("/mine", authRequired, MyDatasetsHandler(db))
	datasets.GET("/:id", GetDatasetHandler(db))
	datasets.POST("", authRequired, sellerOnly, CreateDatasetHandler(db, rdb))
	datasets.POST("/upload", authRequired, sellerOnly, UploadDatasetHandler(db, rdb, d.Store, d.Events, cfg.MaxUploadBytes))
	datasets.PUT("/:id", authRequired, UpdateDatasetHandler(db, rdb))
	datasets.DELETE("/:id", authRequired, DeleteDatasetHandler(db, rdb, d.Store, d.Events))
	datasets.GET("/:id/download", authRequired, DownloadDatasetHandler(db, d.Store))

	// Purchases (protected)
	txs := api.Group("/transactions", authRequired)
	txs.GET("", ListTransactionsHandler(db))
	txs.POST("/create", PurchaseHandler(db, rdb, d.Chain, d.Events, cfg.OutboundTimeout))

	// Wallet and contracts (protected)
	wallet := api.Group("/wallet", authRequired)
	wallet.POST("", ConnectWalletHandler(d.Chain))
	wallet.POST("/link", LinkWalletHandler(db))
	contracts := api.Group("/contracts", authRequired)
	contracts.GET("", ListContractsHandler(db))
	contracts.POST("/deploy", DeployContractHandler(db, d.Chain, d.Events, cfg.OutboundTimeout))

	// Placeholder crypto (protected)
	api.POST("/encrypt", authRequired, EncryptHandler())
	api.POST("/zk-verify", authRequired, ZKVerifyHandler())

	// Admin routes (protected, admin only)
	admin := api.Group("/admin", authRequired, middleware.AdminOnlyMiddleware(db))
	admin.GET("/datasets", AdminListDatasetsHandler(db))
	admin.POST("/datasets/:id/flag", FlagDatasetHandler(db, rdb, d.Events))
	admin.DELETE("/datasets/:id", AdminDeleteDatasetHandler(db, rdb, d.Store, d.Events))
	admin.GET("/audit-logs", ListAuditLogsHandler(db))
	admin.GET("/users", ListUsersHandler(db, rdb))
	admin.PUT("/users/:id/role", SetUserRoleHandler(db, rdb))
	admin.POST("/reconcile", ReconcileHandler(d.Reconciler))
}
