package orders

import (
	"fmt"

	"storefront/internal/models"
)

func statusMessage(shortID string, status models.OrderStatus) (string, string) {
	switch status {
	case models.StatusProcessing:
		return "Order Processing", fmt.Sprintf("Your order #%s is now being processed.", shortID)
	case models.StatusShipped:
		return "Order Shipped", fmt.Sprintf("Your order #%s has been shipped.", shortID)
	case models.StatusDelivered:
		return "Order Delivered", fmt.Sprintf("Your order #%s has been delivered.", shortID)
	case models.StatusCancelled:
		return "Order Cancelled", fmt.Sprintf("Your order #%s has been cancelled.", shortID)
	default:
		return "Order Update", fmt.Sprintf("Your order #%s status has been updated to %s.", shortID, status)
	}
}

func statusNotification(order *models.Order, status models.OrderStatus) *models.Notification {
	title, message := statusMessage(order.ShortID(), status)
	orderID := order.ID
	return &models.Notification{
		UserID:   order.UserID,
		Title:    title,
		Message:  message,
		Category: models.NotificationCategoryOrder,
		OrderID:  &orderID,
	}
}
