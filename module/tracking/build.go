package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fleetsight/tracking/module/tracking/domain"
	handler "github.com/fleetsight/tracking/module/tracking/internal/handler/http"
	"github.com/fleetsight/tracking/module/tracking/internal/handler/subscriber"
	rediscache "github.com/fleetsight/tracking/module/tracking/internal/repository/cache/redis"
	"github.com/fleetsight/tracking/module/tracking/internal/repository/database/postgres"
	"github.com/fleetsight/tracking/module/tracking/internal/repository/publisher/rabbitmq"
	"github.com/fleetsight/tracking/module/tracking/service"
)

type Options struct {
	DefaultSpeedLimit float64
	GeofenceRefresh   time.Duration
	ReconnectDelay    time.Duration
	PollInterval      time.Duration
	CacheTTL          time.Duration
	PlaybackTick      time.Duration
}

type Module struct {
	TrackingSvc *service.TrackingService
	Dispatcher  *service.AlertDispatcher

	fleetHandler    *handler.FleetHandler
	playbackHandler *handler.PlaybackHandler
	connector       *subscriber.FeedConnector
}

func Build(db *sql.DB, amqpConn *amqp.Connection, rdb *goredis.Client, mqttOpts *mqtt.ClientOptions, opts Options) (*Module, error) {
	store := postgres.NewFleetStore(db)

	pub, err := rabbitmq.NewAlertPublisher(amqpConn)
	if err != nil {
		return nil, fmt.Errorf("alert publisher: %w", err)
	}

	vcache := rediscache.NewVehicleCache(rdb, opts.CacheTTL)
	tracker := service.NewMembershipTracker()
	dispatcher := service.NewAlertDispatcher(store, pub, opts.DefaultSpeedLimit, nil)
	trackingSvc := service.NewTrackingService(store, vcache, tracker, dispatcher, opts.GeofenceRefresh, nil)
	connector := subscriber.NewFeedConnector(mqttOpts, trackingSvc, opts.ReconnectDelay, opts.PollInterval)

	return &Module{
		TrackingSvc:     trackingSvc,
		Dispatcher:      dispatcher,
		fleetHandler:    handler.NewFleetHandler(trackingSvc, dispatcher, connector.State),
		playbackHandler: handler.NewPlaybackHandler(trackingSvc, opts.PlaybackTick),
		connector:       connector,
	}, nil
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.fleetHandler.Register(r)
	m.playbackHandler.Register(r)
}

// Start loads geofences and the vehicle snapshot, then brings up the live
// feed subscription.
func (m *Module) Start(ctx context.Context) error {
	if err := m.TrackingSvc.Start(ctx); err != nil {
		return fmt.Errorf("tracking service: %w", err)
	}
	m.connector.Start()
	return nil
}

func (m *Module) Stop() {
	m.connector.Stop()
	m.playbackHandler.Close()
	m.TrackingSvc.Stop()
}

func (m *Module) FeedState() domain.FeedState {
	return m.connector.State()
}
