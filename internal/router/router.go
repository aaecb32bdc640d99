package router

import (
	"clearlot/config"
	"clearlot/internal/handler"
	"clearlot/internal/middleware"
	"clearlot/internal/repository"
	"clearlot/internal/service"
	"clearlot/internal/stream"
	"clearlot/internal/ws"
	"clearlot/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App bundles the long-lived services the server lifecycle manages.
type App struct {
	Engine    *gin.Engine
	Reminders *service.ReminderService
	Cleaner   *service.Cleaner
}

// Setup wires repositories, services and handlers and registers all routes.
func Setup(cfg *config.Config, db *gorm.DB, blobs cloudinary.Client) *App {
	users := repository.NewUserRepository(db)
	conversations := repository.NewConversationRepository(db)
	messages := repository.NewMessageRepository(db)
	notifications := repository.NewNotificationRepository(db)
	offers := repository.NewOfferRepository(db)
	watchlist := repository.NewWatchlistRepository(db)
	purchases := repository.NewPurchaseRepository(db)
	alerts := repository.NewAdminAlertRepository(db)
	verifications := repository.NewVerificationRepository(db)

	var dedup repository.DedupStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		dedup = repository.NewRedisDedupStore(client, cfg.Notify.DedupCapacity)
	} else {
		dedup = repository.NewGormDedupStore(db, cfg.Notify.DedupCapacity)
	}

	broker := stream.NewBroker(conversations, messages, notifications, users)
	notifier := service.NewNotifier(notifications, users, purchases, offers, watchlist, dedup, broker, cfg.Notify.PriceDropThreshold)
	chatSvc := service.NewChatService(db, conversations, messages, broker, notifier, blobs)
	reminders := service.NewReminderService(purchases, alerts, notifier, service.NewScheduler(), cfg.Notify.ReminderInterval, cfg.Notify.EscalateAfter)
	authSvc := service.NewAuthService(cfg, users)
	cleaner := service.NewCleaner(notifications, dedup,
		service.WithRetentionDays(cfg.Notify.RetentionDays),
		service.WithSchedule(cfg.Notify.CleanupSchedule),
	)

	hub := ws.NewHub()

	authHandler := handler.NewAuthHandler(authSvc)
	chatHandler := handler.NewChatHandler(chatSvc, broker, conversations, messages)
	wsHandler := handler.NewWSHandler(hub, broker, users)
	notifHandler := handler.NewNotificationHandler(notifications, broker)
	orderHandler := handler.NewOrderHandler(purchases, offers, notifier, reminders)
	offerHandler := handler.NewOfferHandler(offers, watchlist, notifier)
	verifHandler := handler.NewVerificationHandler(verifications, notifier)
	adminHandler := handler.NewAdminHandler(alerts)
	uploadHandler := handler.NewUploadHandler(blobs)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	limiter := middleware.NewRateLimiter(&cfg.Server)
	r.Use(middleware.RateLimit(limiter))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.AuthRequired(&cfg.JWT))
	{
		authed.GET("/ws", wsHandler.Serve)

		chat := authed.Group("/conversations")
		{
			chat.POST("", chatHandler.CreateOrGetConversation)
			chat.GET("", chatHandler.ListConversations)
			chat.GET("/:id/messages", chatHandler.GetMessages)
			chat.POST("/:id/messages", chatHandler.SendMessage)
			chat.POST("/:id/read", chatHandler.MarkRead)
			chat.DELETE("/:id", chatHandler.CloseConversation)
		}
		authed.PUT("/messages/:id", chatHandler.EditMessage)
		authed.DELETE("/messages/:id", chatHandler.DeleteMessage)

		notifs := authed.Group("/notifications")
		{
			notifs.GET("", notifHandler.List)
			notifs.GET("/unread-count", notifHandler.UnreadCount)
			notifs.POST("/:id/read", notifHandler.MarkRead)
			notifs.POST("/read-all", notifHandler.MarkAllRead)
			notifs.DELETE("", notifHandler.ClearAll)
		}

		orders := authed.Group("/orders")
		{
			orders.POST("", orderHandler.Create)
			orders.GET("/:id", orderHandler.Get)
			orders.PUT("/:id/status", orderHandler.UpdateStatus)
		}

		offersGroup := authed.Group("/offers")
		{
			offersGroup.POST("", offerHandler.Create)
			offersGroup.PUT("/:id/price", offerHandler.UpdatePrice)
			offersGroup.POST("/:id/watch", offerHandler.Watch)
			offersGroup.DELETE("/:id/watch", offerHandler.Unwatch)
		}
		authed.GET("/watchlist", offerHandler.Watchlist)

		authed.POST("/verification", verifHandler.Submit)
		authed.POST("/uploads", uploadHandler.Upload)

		admin := authed.Group("/admin")
		admin.Use(middleware.AdminRequired())
		{
			admin.GET("/verifications", verifHandler.ListPending)
			admin.PUT("/verifications/:id", verifHandler.Review)
			admin.GET("/alerts", adminHandler.ListAlerts)
			admin.PUT("/alerts/:id/resolve", adminHandler.ResolveAlert)
		}
	}

	return &App{Engine: r, Reminders: reminders, Cleaner: cleaner}
}
