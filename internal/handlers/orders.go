package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/orders"
)

/* =========================
   REQUEST DTOs
========================= */

type createOrderItemRequest struct {
	Product string  `json:"product" binding:"required"`
	Name    string  `json:"name"`
	Image   string  `json:"image"`
	Price   float64 `json:"price" binding:"gte=0"`
	Qty     int     `json:"qty" binding:"gt=0"`
}

type createOrderRequest struct {
	OrderItems      []createOrderItemRequest `json:"orderItems" binding:"dive"`
	ShippingAddress models.ShippingAddress   `json:"shippingAddress"`
	PaymentMethod   string                   `json:"paymentMethod"`
	ItemsPrice      float64                  `json:"itemsPrice"`
	TaxPrice        float64                  `json:"taxPrice"`
	ShippingPrice   float64                  `json:"shippingPrice"`
	TotalPrice      float64                  `json:"totalPrice"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type payOrderRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

func (r createOrderRequest) input() orders.CreateOrderInput {
	items := make([]orders.ItemInput, 0, len(r.OrderItems))
	for _, item := range r.OrderItems {
		items = append(items, orders.ItemInput{
			ProductID: item.Product,
			Name:      item.Name,
			Image:     item.Image,
			Price:     item.Price,
			Quantity:  item.Qty,
		})
	}
	return orders.CreateOrderInput{
		Items:           items,
		ShippingAddress: r.ShippingAddress,
		PaymentMethod:   r.PaymentMethod,
		ItemsPrice:      r.ItemsPrice,
		TaxPrice:        r.TaxPrice,
		ShippingPrice:   r.ShippingPrice,
		TotalPrice:      r.TotalPrice,
	}
}

/* =========================
   ORDERS
========================= */

func CreateOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := svc.CreateOrder(ctx, orderRequester(c).UserID, req.input())
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		respondData(c, http.StatusCreated, order)
	}
}

func GetMyOrders(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/mine"
		defer handlePanic(c, route)

		page, err := pageFromQuery(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := svc.ListMyOrders(ctx, orderRequester(c), page)
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "data": list})
	}
}

func GetOrders(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		page, err := pageFromQuery(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, total, err := svc.ListOrders(ctx, orderRequester(c), page)
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"count":   len(list),
			"total":   total,
			"page":    page.Number,
			"limit":   page.Size,
			"data":    list,
		})
	}
}

func GetOrderByID(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		id, ok := pathObjectID(c, route, "id", "order")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := svc.GetOrder(ctx, id, orderRequester(c))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, order)
	}
}

// PayOrder confirms a checkout payment for the order in the path.
func PayOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/pay"
		defer handlePanic(c, route)

		id, ok := pathObjectID(c, route, "id", "order")
		if !ok {
			return
		}

		var req payOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := svc.VerifyClientPayment(ctx, orders.VerifyPaymentInput{
			OrderID:           id,
			ProviderOrderID:   req.RazorpayOrderID,
			ProviderPaymentID: req.RazorpayPaymentID,
			Signature:         req.RazorpaySignature,
		})
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, order)
	}
}

func UpdateOrderStatus(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/status"
		defer handlePanic(c, route)

		id, ok := pathObjectID(c, route, "id", "order")
		if !ok {
			return
		}

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		updateStatus(c, svc, route, id, req.Status)
	}
}

func DeliverOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/deliver"
		defer handlePanic(c, route)

		id, ok := pathObjectID(c, route, "id", "order")
		if !ok {
			return
		}
		updateStatus(c, svc, route, id, string(models.StatusDelivered))
	}
}

func updateStatus(c *gin.Context, svc *orders.Service, route string, id primitive.ObjectID, status string) {
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := svc.UpdateStatus(ctx, id, status, orderRequester(c))
	if err != nil {
		respondWithAppError(c, route, err)
		return
	}
	respondData(c, http.StatusOK, order)
}
