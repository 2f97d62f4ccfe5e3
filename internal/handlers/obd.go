package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"obd_diagnostics/internal/dispatcher"
)

const (
	errSendCommand     = "failed to send command"
	errReadLive        = "failed to read live data"
	errReadDTC         = "failed to read trouble codes"
	errClearDTC        = "failed to clear trouble codes"
	errReadVIN         = "failed to read VIN"
	errReadCalibration = "failed to read calibration ID"
)

// Request DTO for raw commands.
type commandRequest struct {
	Command string `json:"command" binding:"required"` // e.g. "010C" or "ATRV"
}

// CommandRequest is an exported model for Swagger docs of the command payload.
type CommandRequest struct {
	// OBD or AT command as sent on the wire
	Command string `json:"command" example:"010C"`
}

// respondOBDError maps dispatcher fail-fast errors onto HTTP codes.
func (h *Handler) respondOBDError(c *gin.Context, userMsg, logKey string, err error) {
	switch {
	case errors.Is(err, dispatcher.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, dispatcher.ErrQueueFull):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err)
	}
}

// @Summary      Send a raw OBD/AT command
// @Tags         obd
// @Accept       json
// @Produce      json
// @Param        body  body   CommandRequest  true  "Command payload"
// @Success      200   {object}  map[string]interface{}  "decoded response"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/obd/command [post]
// @Security     BearerAuth
func (h *Handler) sendCommand(c *gin.Context) {
	var req commandRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	resp, err := h.services.Diagnostics.SendCommand(c.Request.Context(), req.Command)
	if err != nil {
		h.respondOBDError(c, errSendCommand, "send_command_failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Read live data PIDs
// @Description  Comma-separated Mode 01 commands, e.g. pids=010C,010D,0105
// @Tags         obd
// @Produce      json
// @Param        pids  query   string  true  "Comma-separated PID commands"  example(010C,010D)
// @Success      200   {object}  map[string]interface{}  "count, values"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/obd/live [get]
// @Security     BearerAuth
func (h *Handler) liveData(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("pids"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'pids' is required"})
		return
	}
	values, err := h.services.Diagnostics.ReadLiveData(c.Request.Context(), strings.Split(raw, ","))
	if err != nil {
		h.respondOBDError(c, errReadLive, "live_data_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(values),
		"values": values,
	})
}

// @Summary      Read stored trouble codes
// @Tags         obd
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, codes"
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/obd/dtc [get]
// @Security     BearerAuth
func (h *Handler) readDTCs(c *gin.Context) {
	codes, err := h.services.Diagnostics.ReadDTCs(c.Request.Context())
	if err != nil {
		h.respondOBDError(c, errReadDTC, "dtc_read_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(codes),
		"codes": codes,
	})
}

// @Summary      Clear trouble codes
// @Tags         obd
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "cleared"
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/obd/dtc [delete]
// @Security     BearerAuth
func (h *Handler) clearDTCs(c *gin.Context) {
	cleared, err := h.services.Diagnostics.ClearDTCs(c.Request.Context())
	if err != nil {
		h.respondOBDError(c, errClearDTC, "dtc_clear_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

// @Summary      Read the vehicle identification number
// @Tags         obd
// @Produce      json
// @Success      200  {object}  map[string]string  "vin"
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/obd/vin [get]
// @Security     BearerAuth
func (h *Handler) readVIN(c *gin.Context) {
	vin, err := h.services.Diagnostics.ReadVIN(c.Request.Context())
	if err != nil {
		h.respondOBDError(c, errReadVIN, "vin_read_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vin": vin})
}

// @Summary      Read the ECU calibration identifier
// @Tags         obd
// @Produce      json
// @Success      200  {object}  map[string]string  "calibration_id"
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/obd/calibration [get]
// @Security     BearerAuth
func (h *Handler) readCalibrationID(c *gin.Context) {
	id, err := h.services.Diagnostics.ReadCalibrationID(c.Request.Context())
	if err != nil {
		h.respondOBDError(c, errReadCalibration, "calibration_read_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calibration_id": id})
}
