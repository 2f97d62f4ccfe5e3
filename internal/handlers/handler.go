package handlers

import (
	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// WebSocket streams (HTTP upgrade) — same port
	router.GET("/ws/status", h.wsStatus)
	router.GET("/ws/sessions", h.wsSessions)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerConnectionRoutes(api)
		h.registerOBDRoutes(api)
		h.registerVehicleRoutes(api)
		h.registerSessionRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerConnectionRoutes(api *gin.RouterGroup) {
	conn := api.Group("/connection")
	{
		// Body example: {"transport":"wifi","address":"192.168.0.10:35000"}
		conn.POST("/connect", h.connect)
		conn.POST("/disconnect", h.disconnect)
		conn.POST("/reset", h.resetAdapter)
		conn.GET("/status", h.connectionStatus)
	}
}

func (h *Handler) registerOBDRoutes(api *gin.RouterGroup) {
	obd := api.Group("/obd")
	{
		obd.POST("/command", h.sendCommand)
		obd.GET("/live", h.liveData)
		obd.GET("/dtc", h.readDTCs)
		obd.DELETE("/dtc", h.clearDTCs)
		obd.GET("/vin", h.readVIN)
		obd.GET("/calibration", h.readCalibrationID)
	}
}

func (h *Handler) registerVehicleRoutes(api *gin.RouterGroup) {
	vehicle := api.Group("/vehicle")
	{
		vehicle.PUT("/context", h.setVehicleContext)
		vehicle.GET("/context", h.getVehicleContext)
		vehicle.GET("/commands", h.extendedCommands)
		vehicle.POST("/ecus/discover", h.discoverEcus)
		vehicle.GET("/ecus", h.listEcus)
	}
}

func (h *Handler) registerSessionRoutes(api *gin.RouterGroup) {
	sessions := api.Group("/sessions")
	{
		sessions.POST("/", h.startSession)
		sessions.GET("/", h.listSessions)
		sessions.GET("/:id", h.getSession)
		sessions.POST("/:id/cancel", h.cancelSession)
		sessions.GET("/backups/:ecu_id", h.listBackups)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
