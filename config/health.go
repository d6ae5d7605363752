package config

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

type HealthChecker struct {
	db        *sql.DB
	amqpConn  *amqp.Connection
	rdb       *redis.Client
	feedState func() domain.FeedState
}

func NewHealthChecker(db *sql.DB, amqpConn *amqp.Connection, rdb *redis.Client, feedState func() domain.FeedState) *HealthChecker {
	return &HealthChecker{db: db, amqpConn: amqpConn, rdb: rdb, feedState: feedState}
}

func (h *HealthChecker) Register(r *gin.Engine) {
	r.GET("/healthz", h.Handle)
}

func (h *HealthChecker) Handle(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		deps["postgres"] = gin.H{"status": "down", "error": err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		deps["postgres"] = gin.H{"status": "up"}
	}

	if h.amqpConn.IsClosed() {
		deps["rabbitmq"] = gin.H{"status": "down", "error": "connection closed"}
		status = http.StatusServiceUnavailable
	} else {
		deps["rabbitmq"] = gin.H{"status": "up"}
	}

	if err := h.rdb.Ping(c.Request.Context()).Err(); err != nil {
		deps["redis"] = gin.H{"status": "down", "error": err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		deps["redis"] = gin.H{"status": "up"}
	}

	// The feed connector degrades to polling on its own, so a down feed is
	// reported as a status, never as a 503.
	deps["live_feed"] = gin.H{"status": string(h.feedState())}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":       overall,
		"dependencies": deps,
	})
}
