package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/engine"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// userIDFromContext returns the caller set by the identity middleware.
func userIDFromContext(c *gin.Context) string {
	if id := c.GetString("userID"); id != "" {
		return id
	}
	return c.GetHeader("X-User-ID")
}

// respond writes the uniform result body. Infrastructure failures are logged
// and reported as a 500 without their details.
func respond(c *gin.Context, okStatus int, data any, err error) {
	res, err := engine.NewResult(data, err)
	if err != nil {
		log.Printf("request failed request_id=%s route=%s: %v", requestIDFromContext(c), c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, engine.Result{Success: false, Error: "internal_error", Message: "internal error"})
		return
	}
	if res.Success {
		c.JSON(okStatus, res)
		return
	}
	c.JSON(statusForReason(res.Error), res)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, engine.Result{Success: false, Error: engine.InvalidInput, Message: err.Error()})
}

func statusForReason(code engine.ReasonCode) int {
	switch code {
	case engine.NotFound:
		return http.StatusNotFound
	case engine.NotAuthorized, engine.NotOwner, engine.NotAParticipant, engine.PostSharingDisabled:
		return http.StatusForbidden
	case engine.AlreadyMember, engine.Expired, engine.Exhausted, engine.Inactive:
		return http.StatusConflict
	case engine.ContentRejected:
		return http.StatusUnprocessableEntity
	case engine.InvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}
