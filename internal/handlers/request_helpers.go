package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/notify"
	"storefront/internal/orders"
)

const defaultRequestTimeout = 5 * time.Second

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
	}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := config.AppEnv.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] returning error %d: %s", route, status, message)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// respondWithAppError maps err through the error taxonomy. Internal detail
// is logged but never returned.
func respondWithAppError(c *gin.Context, route string, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[%s] returning error %d: %v", route, status, err)
	}
	respondWithError(c, status, route, apperr.PublicMessage(err))
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func pathObjectID(c *gin.Context, route, param, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "invalid "+label+" id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func orderRequester(c *gin.Context) orders.Requester {
	return orders.Requester{UserID: middleware.UserID(c), Admin: middleware.IsAdmin(c)}
}

func notifyRequester(c *gin.Context) notify.Requester {
	return notify.Requester{UserID: middleware.UserID(c), Admin: middleware.IsAdmin(c)}
}
