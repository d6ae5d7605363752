package subscriber

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-playground/validator/v10"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

const topicPattern = "/fleet/vehicle/+/location"

type trackingService interface {
	ProcessUpdate(ctx context.Context, upd *domain.TrackingUpdate) error
	Resync(ctx context.Context) error
}

// numeric accepts a JSON number or a numeric string; some trackers quote
// their coordinate and speed readings.
type numeric float64

func (n *numeric) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(strings.Trim(string(b), `"`), 64)
	if err != nil {
		return err
	}
	*n = numeric(f)
	return nil
}

func (n *numeric) value() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

type trackingMessage struct {
	VehicleID string   `json:"vehicle_id" validate:"required"`
	Location  any      `json:"location"`
	Latitude  *numeric `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *numeric `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Speed     *numeric `json:"speed" validate:"omitempty,gte=0"`
	Heading   *numeric `json:"heading" validate:"omitempty,gte=0,lt=360"`
	Ignition  *bool    `json:"ignition_status"`
	Timestamp int64    `json:"timestamp" validate:"omitempty,gt=0"`
}

// FeedConnector maintains the live subscription to the position change
// stream. Connection loss drops it to disconnected, where a fixed-delay
// reconnect loop runs forever (no backoff, no attempt cap) and a poll
// ticker resyncs the fleet from the store until the stream is back.
type FeedConnector struct {
	opts           *mqtt.ClientOptions
	newClient      func(*mqtt.ClientOptions) mqtt.Client
	svc            trackingService
	validate       *validator.Validate
	reconnectDelay time.Duration
	pollInterval   time.Duration

	mu             sync.Mutex
	client         mqtt.Client
	state          domain.FeedState
	reconnectTimer *time.Timer
	pollStop       chan struct{}
	stopped        bool
}

func NewFeedConnector(opts *mqtt.ClientOptions, svc trackingService, reconnectDelay, pollInterval time.Duration) *FeedConnector {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	c := &FeedConnector{
		opts:           opts,
		newClient:      mqtt.NewClient,
		svc:            svc,
		validate:       validator.New(),
		reconnectDelay: reconnectDelay,
		pollInterval:   pollInterval,
		state:          domain.FeedConnecting,
	}
	opts.SetAutoReconnect(false)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	return c
}

// Start attempts the first subscription. A failure is not fatal: the
// connector degrades to polling and keeps retrying.
func (c *FeedConnector) Start() {
	c.connect()
}

func (c *FeedConnector) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.stopPollingLocked()
	client := c.client
	c.client = nil
	c.state = domain.FeedDisconnected
	c.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Unsubscribe(topicPattern)
		client.Disconnect(250)
	}
}

func (c *FeedConnector) State() domain.FeedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *FeedConnector) connect() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	// Any previous subscription is torn down first so a successful
	// reconnect can never double-deliver.
	if prev := c.client; prev != nil && prev.IsConnected() {
		prev.Unsubscribe(topicPattern)
		prev.Disconnect(250)
	}
	c.state = domain.FeedConnecting
	client := c.newClient(c.opts)
	c.client = client
	c.mu.Unlock()

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("feed connect: %v", token.Error())
		c.dropToPolling()
		return
	}
	if token := client.Subscribe(topicPattern, 1, c.handleMessage); token.Wait() && token.Error() != nil {
		log.Printf("feed subscribe: %v", token.Error())
		c.dropToPolling()
		return
	}

	c.mu.Lock()
	// Stop may have raced the connect attempt; a subscription set up after
	// shutdown must be torn down again.
	if c.stopped {
		c.mu.Unlock()
		client.Unsubscribe(topicPattern)
		client.Disconnect(250)
		return
	}
	c.state = domain.FeedConnected
	c.stopPollingLocked()
	c.mu.Unlock()
	log.Printf("feed connected, subscribed to %s", topicPattern)
}

func (c *FeedConnector) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("feed connection lost: %v", err)
	c.dropToPolling()
}

func (c *FeedConnector) dropToPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.state = domain.FeedDisconnected
	c.startPollingLocked()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, c.connect)
}

func (c *FeedConnector) startPollingLocked() {
	if c.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	c.pollStop = stop
	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), c.pollInterval)
				if err := c.svc.Resync(ctx); err != nil {
					log.Printf("poll resync: %v", err)
				}
				cancel()
			}
		}
	}()
}

func (c *FeedConnector) stopPollingLocked() {
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

func (c *FeedConnector) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw trackingMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("invalid tracking message: %v", err)
		return
	}

	if err := c.validate.Struct(&raw); err != nil {
		log.Printf("tracking message validation: %v", err)
		return
	}

	upd := &domain.TrackingUpdate{
		VehicleID:   raw.VehicleID,
		RawLocation: raw.Location,
		Speed:       raw.Speed.value(),
		Heading:     raw.Heading.value(),
		Ignition:    raw.Ignition,
	}
	// Direct coordinate columns only count as a pair.
	if raw.Latitude != nil && raw.Longitude != nil {
		upd.Latitude = raw.Latitude.value()
		upd.Longitude = raw.Longitude.value()
	}
	if raw.Timestamp > 0 {
		upd.Timestamp = time.Unix(raw.Timestamp, 0)
	}

	if err := c.svc.ProcessUpdate(context.Background(), upd); err != nil {
		log.Printf("process update for %s: %v", raw.VehicleID, err)
	}
}
