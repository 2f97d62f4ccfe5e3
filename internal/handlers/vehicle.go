package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"obd_diagnostics/internal/models"
)

const errDiscover = "failed to discover control units"

// Request DTO for the vehicle context.
type vehicleContextRequest struct {
	Make  string `json:"make" binding:"required"`
	Model string `json:"model,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// VehicleContextRequest is an exported model for Swagger docs of the context payload.
type VehicleContextRequest struct {
	// Vehicle make; unlocks manufacturer PID decoding
	Make string `json:"make" example:"toyota"`
	// Vehicle model
	Model string `json:"model,omitempty" example:"corolla"`
	// Model year
	Year int `json:"year,omitempty" example:"2018"`
}

// @Summary      Set the active vehicle context
// @Tags         vehicle
// @Accept       json
// @Produce      json
// @Param        body  body   VehicleContextRequest  true  "Vehicle payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/vehicle/context [put]
// @Security     BearerAuth
func (h *Handler) setVehicleContext(c *gin.Context) {
	var req vehicleContextRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	h.services.Vehicle.SetContext(models.VehicleContext{
		Make:  req.Make,
		Model: req.Model,
		Year:  req.Year,
	})
	c.JSON(http.StatusOK, gin.H{
		"status":  statusOK,
		"context": h.services.Vehicle.Context(),
	})
}

// @Summary      Get the active vehicle context
// @Tags         vehicle
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/vehicle/context [get]
// @Security     BearerAuth
func (h *Handler) getVehicleContext(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Vehicle.Context())
}

// @Summary      Manufacturer PID commands for the active make
// @Tags         vehicle
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, commands"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/vehicle/commands [get]
// @Security     BearerAuth
func (h *Handler) extendedCommands(c *gin.Context) {
	cmds := h.services.Vehicle.ExtendedCommands()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(cmds),
		"commands": cmds,
	})
}

// @Summary      Scan the bus for control units
// @Tags         vehicle
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, ecus"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/vehicle/ecus/discover [post]
// @Security     BearerAuth
func (h *Handler) discoverEcus(c *gin.Context) {
	found, err := h.services.Vehicle.DiscoverEcus(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDiscover, "discovery_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(found),
		"ecus":  found,
	})
}

// @Summary      List control units from the last scan
// @Tags         vehicle
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, ecus"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/vehicle/ecus [get]
// @Security     BearerAuth
func (h *Handler) listEcus(c *gin.Context) {
	ecus := h.services.Vehicle.ListEcus()
	c.JSON(http.StatusOK, gin.H{
		"count": len(ecus),
		"ecus":  ecus,
	})
}
