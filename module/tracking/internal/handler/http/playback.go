package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetsight/tracking/module/tracking/domain"
	"github.com/fleetsight/tracking/module/tracking/service"
)

type playbackService interface {
	History(ctx context.Context, query *domain.HistoryQuery) ([]domain.TrajectoryPoint, error)
}

type startPlaybackRequest struct {
	Hours int     `json:"hours"`
	Rate  float64 `json:"rate"`
}

type playbackControlRequest struct {
	Rate  float64 `json:"rate"`
	Index int     `json:"index"`
	Step  int     `json:"step"`
}

// PlaybackHandler drives one trajectory replay session at a time, mirroring
// the single playback panel of the dashboard.
type PlaybackHandler struct {
	svc          playbackService
	baseInterval time.Duration
	now          func() time.Time

	mu        sync.Mutex
	vehicleID string
	session   *service.Playback
	frame     service.Frame
}

func NewPlaybackHandler(svc playbackService, baseInterval time.Duration) *PlaybackHandler {
	return &PlaybackHandler{svc: svc, baseInterval: baseInterval, now: time.Now}
}

func (h *PlaybackHandler) Register(r *gin.RouterGroup) {
	r.POST("/playback/:vehicle_id", h.StartPlayback)
	r.POST("/playback/play", h.Play)
	r.POST("/playback/pause", h.Pause)
	r.POST("/playback/seek", h.Seek)
	r.POST("/playback/step", h.Step)
	r.GET("/playback", h.GetState)
	r.DELETE("/playback", h.ClosePlayback)
}

func (h *PlaybackHandler) StartPlayback(c *gin.Context) {
	vehicleID := c.Param("vehicle_id")

	req := startPlaybackRequest{Hours: 6, Rate: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	if req.Hours <= 0 {
		req.Hours = 6
	}

	points, err := h.svc.History(c.Request.Context(), &domain.HistoryQuery{
		VehicleID: vehicleID,
		Since:     h.now().Add(-time.Duration(req.Hours) * time.Hour),
		Limit:     5000,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no history for this vehicle in the selected timeframe"})
		return
	}

	h.mu.Lock()
	if h.session != nil {
		h.session.Close()
	}
	session := service.NewPlayback(points, h.baseInterval, h.onFrame)
	h.session = session
	h.vehicleID = vehicleID
	h.frame = session.Frame()
	h.mu.Unlock()

	if req.Rate > 0 {
		if err := session.Play(req.Rate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported playback rate"})
			return
		}
	}

	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *PlaybackHandler) Play(c *gin.Context) {
	session := h.current()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active playback"})
		return
	}

	req := playbackControlRequest{Rate: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	if err := session.Play(req.Rate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported playback rate"})
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *PlaybackHandler) Pause(c *gin.Context) {
	session := h.current()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active playback"})
		return
	}
	session.Pause()
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *PlaybackHandler) Seek(c *gin.Context) {
	session := h.current()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active playback"})
		return
	}

	var req playbackControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := session.Seek(req.Index); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index out of range"})
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *PlaybackHandler) Step(c *gin.Context) {
	session := h.current()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active playback"})
		return
	}

	var req playbackControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session.Step(req.Step)
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *PlaybackHandler) GetState(c *gin.Context) {
	if h.current() == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active playback"})
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *PlaybackHandler) ClosePlayback(c *gin.Context) {
	h.mu.Lock()
	if h.session != nil {
		h.session.Close()
		h.session = nil
		h.vehicleID = ""
	}
	h.mu.Unlock()
	c.Status(http.StatusNoContent)
}

// Close tears down any active session. Called on module shutdown.
func (h *PlaybackHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session != nil {
		h.session.Close()
		h.session = nil
	}
}

func (h *PlaybackHandler) current() *service.Playback {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *PlaybackHandler) onFrame(f service.Frame) {
	h.mu.Lock()
	h.frame = f
	h.mu.Unlock()
}

func (h *PlaybackHandler) stateResponse() gin.H {
	h.mu.Lock()
	defer h.mu.Unlock()
	frame := h.frame
	if h.session != nil {
		frame = h.session.Frame()
	}
	return gin.H{"vehicle_id": h.vehicleID, "frame": frame}
}
