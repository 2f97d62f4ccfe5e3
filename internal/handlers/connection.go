package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"obd_diagnostics/internal/dispatcher"
	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/service"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK           = "ok"
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
	statusReset        = "reset"

	errConnect    = "failed to connect"
	errDisconnect = "failed to disconnect"
	errReset      = "failed to reset adapter"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Request DTO for opening a connection.
type connectRequest struct {
	Transport string `json:"transport" binding:"required"` // bluetooth | wifi | usb | serial
	Address   string `json:"address" binding:"required"`
	BaudRate  int    `json:"baud_rate,omitempty"`
}

// ConnectRequest is an exported model for Swagger docs of the connect payload.
type ConnectRequest struct {
	// Transport kind. Allowed: bluetooth, wifi, usb, serial
	Transport string `json:"transport" example:"wifi"`
	// Adapter address: host:port for wifi, device path otherwise
	Address string `json:"address" example:"192.168.0.10:35000"`
	// Serial baud rate; defaults to 38400 when omitted
	BaudRate int `json:"baud_rate,omitempty" example:"38400"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Connect to the OBD adapter
// @Tags         connection
// @Accept       json
// @Produce      json
// @Param        body  body   ConnectRequest  true  "Connection payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/connection/connect [post]
// @Security     BearerAuth
func (h *Handler) connect(c *gin.Context) {
	var req connectRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	cfg := models.ConnectionConfig{
		Transport: models.TransportKind(req.Transport),
		Address:   req.Address,
		BaudRate:  req.BaudRate,
	}

	err := h.services.Connection.Connect(c.Request.Context(), cfg)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnknownTransport), errors.Is(err, service.ErrAddressRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, dispatcher.ErrAlreadyConnected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	default:
		h.logAndJSONError(c, http.StatusBadGateway, errConnect, "connect_failed", err, "address", req.Address)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  statusConnected,
		"adapter": h.services.Connection.Adapter(),
	})
}

// @Summary      Disconnect from the adapter
// @Tags         connection
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/connection/disconnect [post]
// @Security     BearerAuth
func (h *Handler) disconnect(c *gin.Context) {
	if err := h.services.Connection.Disconnect(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDisconnect, "disconnect_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDisconnected})
}

// @Summary      Reset and re-initialize the adapter
// @Tags         connection
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/connection/reset [post]
// @Security     BearerAuth
func (h *Handler) resetAdapter(c *gin.Context) {
	err := h.services.Connection.ResetAdapter(c.Request.Context())
	switch {
	case err == nil:
	case errors.Is(err, dispatcher.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	default:
		h.logAndJSONError(c, http.StatusBadGateway, errReset, "adapter_reset_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusReset})
}

// @Summary      Current connection status
// @Tags         connection
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/connection/status [get]
// @Security     BearerAuth
func (h *Handler) connectionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  h.services.Connection.Status(),
		"adapter": h.services.Connection.Adapter(),
	})
}
