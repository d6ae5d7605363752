package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

type fleetService interface {
	Snapshot() []domain.Vehicle
	Latest(ctx context.Context, vehicleID string) (*domain.Vehicle, error)
	History(ctx context.Context, query *domain.HistoryQuery) ([]domain.TrajectoryPoint, error)
	Geofences() []domain.Geofence
}

type alertService interface {
	Recent() []domain.Alert
	UnreadCount() int
	Acknowledge(ctx context.Context, alertID string) error
}

type geofenceResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Type       domain.TriggerType  `json:"type"`
	SpeedLimit *float64            `json:"speed_limit,omitempty"`
	VehicleID  string              `json:"vehicle_id,omitempty"`
	Boundary   [][]domain.Position `json:"boundary"`
	Style      domain.StyleHint    `json:"style"`
}

// FleetHandler is the read surface for the rendering collaborator: vehicle
// markers, geofence polygons with styling, the recent-alert banner and the
// feed status pill.
type FleetHandler struct {
	svc       fleetService
	alerts    alertService
	feedState func() domain.FeedState
}

func NewFleetHandler(svc fleetService, alerts alertService, feedState func() domain.FeedState) *FleetHandler {
	return &FleetHandler{svc: svc, alerts: alerts, feedState: feedState}
}

func (h *FleetHandler) Register(r *gin.RouterGroup) {
	r.GET("/vehicles", h.GetVehicles)
	r.GET("/vehicles/:vehicle_id/location", h.GetLatestLocation)
	r.GET("/vehicles/:vehicle_id/history", h.GetHistory)
	r.GET("/geofences", h.GetGeofences)
	r.GET("/alerts", h.GetAlerts)
	r.POST("/alerts/:alert_id/ack", h.AcknowledgeAlert)
	r.GET("/feed/status", h.GetFeedStatus)
}

func (h *FleetHandler) GetVehicles(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

func (h *FleetHandler) GetLatestLocation(c *gin.Context) {
	vehicleID := c.Param("vehicle_id")

	v, err := h.svc.Latest(c.Request.Context(), vehicleID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *FleetHandler) GetHistory(c *gin.Context) {
	vehicleID := c.Param("vehicle_id")

	since, err := strconv.ParseInt(c.Query("since"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since parameter"})
		return
	}

	limit := 5000
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
	}

	points, err := h.svc.History(c.Request.Context(), &domain.HistoryQuery{
		VehicleID: vehicleID,
		Since:     time.Unix(since, 0),
		Limit:     limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *FleetHandler) GetGeofences(c *gin.Context) {
	fences := h.svc.Geofences()
	results := make([]geofenceResponse, len(fences))
	for i, gf := range fences {
		results[i] = geofenceResponse{
			ID:         gf.ID,
			Name:       gf.Name,
			Type:       gf.Type,
			SpeedLimit: gf.SpeedLimit,
			VehicleID:  gf.VehicleID,
			Boundary:   gf.Boundary,
			Style:      gf.Style(),
		}
	}
	c.JSON(http.StatusOK, results)
}

func (h *FleetHandler) GetAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"alerts": h.alerts.Recent(),
		"unread": h.alerts.UnreadCount(),
	})
}

func (h *FleetHandler) AcknowledgeAlert(c *gin.Context) {
	if err := h.alerts.Acknowledge(c.Request.Context(), c.Param("alert_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to acknowledge alert"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FleetHandler) GetFeedStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.feedState()})
}
