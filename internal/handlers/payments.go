package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/orders"
)

const (
	headerRazorpaySignature = "X-Razorpay-Signature"
	headerRazorpayEventID   = "X-Razorpay-Event-Id"
	maxWebhookBodyBytes     = 1 << 20
)

type createPaymentRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

type verifyPaymentRequest struct {
	OrderID           string `json:"orderId" binding:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

func CreatePaymentIntent(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/create-order"
		defer handlePanic(c, route)

		var req createPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "Order ID is required")
			return
		}
		orderID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.OrderID))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order id")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		intent, err := svc.RequestPaymentIntent(ctx, orderID, orderRequester(c))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, intent)
	}
}

func VerifyPayment(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/verify"
		defer handlePanic(c, route)

		var req verifyPaymentRequest
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

		order, err := svc.VerifyClientPayment(ctx, orders.VerifyPaymentInput{
			OrderID:           orderID,
			ProviderOrderID:   req.RazorpayOrderID,
			ProviderPaymentID: req.RazorpayPaymentID,
			Signature:         req.RazorpaySignature,
		})
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Payment verified successfully",
			"data":    order,
		})
	}
}

// PaymentWebhook reconciles provider events. Everything except a bad
// signature or unreadable payload is acknowledged with 200 so the provider
// stops retrying.
func PaymentWebhook(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/webhook"
		defer handlePanic(c, route)

		body, err := readLimitedBody(c, maxWebhookBodyBytes)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid webhook payload")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		outcome, err := svc.ReconcileWebhookEvent(ctx, body, c.GetHeader(headerRazorpaySignature), strings.TrimSpace(c.GetHeader(headerRazorpayEventID)))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "received": true, "outcome": outcome})
	}
}

func GetPaymentStatus(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /payments/:orderId/status"
		defer handlePanic(c, route)

		id, ok := pathObjectID(c, route, "orderId", "order")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		status, err := svc.PaymentStatus(ctx, id, orderRequester(c))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, status)
	}
}

func readLimitedBody(c *gin.Context, limit int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	return c.GetRawData()
}
