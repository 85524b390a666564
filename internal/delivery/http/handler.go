package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IvndxDB/upc-backend-chatbot/internal/domain"
	"github.com/IvndxDB/upc-backend-chatbot/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	priceCheck *usecase.PriceCheckService
	providers  map[string]bool
}

// NewHandler creates a new HTTP handler. providers reports which upstream
// integrations came up with credentials, for the health endpoint.
func NewHandler(priceCheck *usecase.PriceCheckService, providers map[string]bool) *Handler {
	return &Handler{
		priceCheck: priceCheck,
		providers:  providers,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "price-checker-backend",
		"version":   "2.0.0",
		"providers": h.providers,
	})
}

// PriceCheck runs a full price check and replies with the report in one shot.
func (h *Handler) PriceCheck(c *gin.Context) {
	if h.priceCheck == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"success": false,
			"error":   "price check service not configured",
		})
		return
	}

	var req domain.PriceCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}

	report, err := h.priceCheck.CheckPrice(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  report,
	})
}

// PriceCheckStream runs the same check over SSE. Progress goes out as it
// happens and the stream always ends with a complete or error event.
func (h *Handler) PriceCheckStream(c *gin.Context) {
	if h.priceCheck == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"success": false,
			"error":   "price check service not configured",
		})
		return
	}

	var req domain.PriceCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	// Disables proxy buffering so events reach the extension as they happen.
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	events := make(chan usecase.StreamEvent, 16)
	go h.priceCheck.CheckPriceStream(c.Request.Context(), &req, events)

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(ev.Type, ev.Data)
		return true
	})
}
