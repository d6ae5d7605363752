package config

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// NewMQTTOptions returns client options for the live feed. The feed
// connector owns connecting and reconnecting, so automatic reconnect stays
// off and no client is created here.
func NewMQTTOptions(cfg *Config) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(false)
}
