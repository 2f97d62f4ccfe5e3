package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"obd_diagnostics/internal/models"
	"obd_diagnostics/internal/session"
)

const (
	errListBackups = "failed to list backups"
)

// Request DTO for starting a programming session.
type startSessionRequest struct {
	EcuID    string `json:"ecu_id" binding:"required"`
	Mode     string `json:"mode" binding:"required"` // normal | programming | diagnostic | bootloader
	FilePath string `json:"file_path" binding:"required"`
}

// StartSessionRequest is an exported model for Swagger docs of the session payload.
type StartSessionRequest struct {
	// ECU id from the discovery inventory
	EcuID string `json:"ecu_id" example:"7e0"`
	// Programming mode. Allowed: normal, programming, diagnostic, bootloader
	Mode string `json:"mode" example:"programming"`
	// Path to the firmware image on the server
	FilePath string `json:"file_path" example:"/var/lib/obd/firmware.bin"`
}

// @Summary      Start a programming session
// @Description  Validation failures (unknown ECU, unsupported mode, missing file) are rejected synchronously; the flash itself runs in the background.
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        body  body   StartSessionRequest  true  "Session payload"
// @Success      202   {object}  map[string]interface{}  "session"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/sessions [post]
// @Security     BearerAuth
func (h *Handler) startSession(c *gin.Context) {
	var req startSessionRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	s, err := h.services.Programming.StartSession(req.EcuID, models.ProgrammingMode(req.Mode), req.FilePath)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrUnknownECU):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"session": s})
}

// @Summary      List programming sessions
// @Tags         sessions
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, sessions"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sessions [get]
// @Security     BearerAuth
func (h *Handler) listSessions(c *gin.Context) {
	sessions := h.services.Programming.ListSessions()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// @Summary      Get one programming session
// @Tags         sessions
// @Produce      json
// @Param        id  path  string  true  "Session id"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/sessions/{id} [get]
// @Security     BearerAuth
func (h *Handler) getSession(c *gin.Context) {
	s, err := h.services.Programming.GetSession(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary      Cancel a programming session
// @Description  Cancellation is cooperative: the session stops at the next safe boundary.
// @Tags         sessions
// @Produce      json
// @Param        id  path  string  true  "Session id"
// @Success      202  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/sessions/{id}/cancel [post]
// @Security     BearerAuth
func (h *Handler) cancelSession(c *gin.Context) {
	err := h.services.Programming.CancelSession(c.Param("id"))
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, session.ErrSessionFinished):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// @Summary      List backups for an ECU
// @Tags         sessions
// @Produce      json
// @Param        ecu_id  path  string  true  "ECU id"
// @Success      200  {object}  map[string]interface{}  "count, backups"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sessions/backups/{ecu_id} [get]
// @Security     BearerAuth
func (h *Handler) listBackups(c *gin.Context) {
	backups, err := h.services.Programming.ListBackups(c.Request.Context(), c.Param("ecu_id"))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListBackups, "backups_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(backups),
		"backups": backups,
	})
}
