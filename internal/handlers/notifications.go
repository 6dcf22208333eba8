package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/notify"
	"storefront/internal/orders"
)

type createNotificationRequest struct {
	User    string `json:"user" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
	Type    string `json:"type" binding:"omitempty,oneof=order general"`
	OrderID string `json:"orderId"`
}

type orderStatusNotificationRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Status  string `json:"status" binding:"required"`
}

func GetNotifications(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /notifications"
		defer handlePanic(c, route)

		page, err := pageFromQuery(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := svc.ListMine(ctx, notifyRequester(c), page)
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "data": list})
	}
}

func GetUnreadCount(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /notifications/unread/count"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		count, err := svc.UnreadCount(ctx, notifyRequester(c))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
	}
}

func MarkAllNotificationsRead(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /notifications/read-all"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		modified, err := svc.MarkAllRead(ctx, notifyRequester(c))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "All notifications marked as read", "modified": modified})
	}
}

func MarkNotificationRead(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /notifications/:id/read"
		defer handlePanic(c, route)

		id, ok := pathObjectID(c, route, "id", "notification")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		n, err := svc.MarkRead(ctx, id, notifyRequester(c))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, n)
	}
}

func DeleteNotification(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /notifications/:id"
		defer handlePanic(c, route)

		id, ok := pathObjectID(c, route, "id", "notification")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := svc.Delete(ctx, id, notifyRequester(c)); err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
	}
}

func CreateNotification(svc *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /notifications"
		defer handlePanic(c, route)

		var req createNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.User))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid user id")
			return
		}
		in := notify.CreateInput{UserID: userID, Title: req.Title, Message: req.Message, Category: req.Type}
		if raw := strings.TrimSpace(req.OrderID); raw != "" {
			orderID, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid order id")
				return
			}
			in.OrderID = &orderID
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		n, err := svc.Create(ctx, in, notifyRequester(c))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		respondData(c, http.StatusCreated, n)
	}
}

// CreateOrderStatusNotification sends the status template for an order
// without changing the order.
func CreateOrderStatusNotification(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /notifications/order-status"
		defer handlePanic(c, route)

		var req orderStatusNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		orderID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.OrderID))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order id")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		n, err := svc.NotifyStatus(ctx, orderID, req.Status, orderRequester(c))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		respondData(c, http.StatusCreated, n)
	}
}
