package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/fleetsight/tracking/config"
	"github.com/fleetsight/tracking/module/tracking"
)

func main() {
	cfg := config.Load()

	db, err := config.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer func() { _ = db.Close() }()

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer func() { _ = amqpConn.Close() }()

	rdb, err := config.NewRedis(cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	mqttOpts := config.NewMQTTOptions(cfg)

	trackingModule, err := tracking.Build(db, amqpConn, rdb, mqttOpts, tracking.Options{
		DefaultSpeedLimit: cfg.DefaultSpeedLimit,
		GeofenceRefresh:   cfg.GeofenceRefresh,
		ReconnectDelay:    cfg.ReconnectDelay,
		PollInterval:      cfg.PollInterval,
		CacheTTL:          cfg.CacheTTL,
		PlaybackTick:      cfg.PlaybackTick,
	})
	if err != nil {
		log.Fatalf("tracking module: %v", err)
	}

	if err := trackingModule.Start(context.Background()); err != nil {
		log.Fatalf("start tracking: %v", err)
	}
	defer trackingModule.Stop()

	r := gin.Default()

	health := config.NewHealthChecker(db, amqpConn, rdb, trackingModule.FeedState)
	health.Register(r)

	trackingModule.RegisterRoutes(r.Group("/api/v1"))

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := r.Run(":" + cfg.HTTPPort); err != nil {
			log.Fatalf("server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
}
