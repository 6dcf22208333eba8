package main

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
)

func newRouter(cfg config.Config, svc *services) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", handlers.Health(svc.health))
	r.GET("/metrics", handlers.Metrics(svc.metrics.Handler()))

	auth := middleware.Authenticate(cfg.JWTSecret)
	admin := middleware.RequireRole(middleware.RoleAdmin)
	webhookLimiter := middleware.NewRateLimiter(cfg.WebhookRateRPS, cfg.WebhookRateBurst)

	orderRoutes := r.Group("/orders", auth)
	{
		orderRoutes.POST("", handlers.CreateOrder(svc.orders))
		orderRoutes.GET("", admin, handlers.GetOrders(svc.orders))
		orderRoutes.GET("/mine", handlers.GetMyOrders(svc.orders))
		orderRoutes.GET("/myorders", handlers.GetMyOrders(svc.orders))
		orderRoutes.GET("/:id", handlers.GetOrderByID(svc.orders))
		orderRoutes.PUT("/:id/pay", handlers.PayOrder(svc.orders))
		orderRoutes.PUT("/:id/deliver", admin, handlers.DeliverOrder(svc.orders))
		orderRoutes.PUT("/:id/status", admin, handlers.UpdateOrderStatus(svc.orders))
	}

	payments := r.Group("/payments")
	{
		payments.POST("/create-order", auth, handlers.CreatePaymentIntent(svc.orders))
		payments.POST("/verify", auth, handlers.VerifyPayment(svc.orders))
		payments.POST("/webhook", webhookLimiter.Handler(), handlers.PaymentWebhook(svc.orders))
		payments.GET("/:orderId/status", auth, handlers.GetPaymentStatus(svc.orders))
	}

	notifications := r.Group("/notifications", auth)
	{
		notifications.GET("", handlers.GetNotifications(svc.inbox))
		notifications.GET("/unread/count", handlers.GetUnreadCount(svc.inbox))
		notifications.PUT("/read-all", handlers.MarkAllNotificationsRead(svc.inbox))
		notifications.PUT("/:id/read", handlers.MarkNotificationRead(svc.inbox))
		notifications.DELETE("/:id", handlers.DeleteNotification(svc.inbox))
		notifications.POST("", admin, handlers.CreateNotification(svc.inbox))
		notifications.POST("/order-status", admin, handlers.CreateOrderStatusNotification(svc.orders))
	}

	return r
}
