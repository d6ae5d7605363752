package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gopkg.in/yaml.v3"
)

// Device simulator. Replays YAML-defined waypoint routes over MQTT, mixing
// the position payload shapes real trackers produce so the whole normalizer
// surface gets exercised.

type scenario struct {
	IntervalSeconds int            `yaml:"interval_seconds"`
	Vehicles        []vehicleRoute `yaml:"vehicles"`
}

type vehicleRoute struct {
	ID       string      `yaml:"id"`
	Format   string      `yaml:"format"` // latlng, latitude, geojson, xy, wkt, columns
	SpeedKmh float64     `yaml:"speed_kmh"`
	Ignition bool        `yaml:"ignition"`
	Route    [][]float64 `yaml:"route"` // [lat, lng] waypoints
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <scenario.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("read scenario: %v", err)
	}

	var sc scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		log.Fatalf("parse scenario: %v", err)
	}
	if sc.IntervalSeconds <= 0 {
		sc.IntervalSeconds = 2
	}
	if len(sc.Vehicles) == 0 {
		log.Fatal("scenario defines no vehicles")
	}
	for _, v := range sc.Vehicles {
		if v.ID == "" || len(v.Route) == 0 {
			log.Fatalf("vehicle %q: id and route are required", v.ID)
		}
	}

	broker := "tcp://localhost:1883"
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		broker = v
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("fleet-device-sim")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("mqtt connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	log.Printf("connected to %s, %d vehicles, publishing every %ds", broker, len(sc.Vehicles), sc.IntervalSeconds)

	positions := make([]int, len(sc.Vehicles))
	ticker := time.NewTicker(time.Duration(sc.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		for i := range sc.Vehicles {
			v := &sc.Vehicles[i]
			idx := positions[i]
			positions[i] = (idx + 1) % len(v.Route)

			wp := v.Route[idx]
			lat, lng := wp[0], wp[1]

			msg := buildMessage(v, lat, lng, headingTo(v.Route, idx))
			payload, _ := json.Marshal(msg)
			topic := fmt.Sprintf("/fleet/vehicle/%s/location", v.ID)

			token := client.Publish(topic, 1, false, payload)
			token.Wait()

			log.Printf("published to %s: %s", topic, payload)
		}
	}
}

func buildMessage(v *vehicleRoute, lat, lng, heading float64) map[string]any {
	speed := v.SpeedKmh * (0.9 + rand.Float64()*0.2)

	msg := map[string]any{
		"vehicle_id":      v.ID,
		"speed":           speed,
		"heading":         heading,
		"ignition_status": v.Ignition,
		"timestamp":       time.Now().Unix(),
	}

	switch v.Format {
	case "latitude":
		msg["location"] = map[string]any{"latitude": lat, "longitude": lng}
	case "geojson":
		msg["location"] = map[string]any{"type": "Point", "coordinates": []float64{lng, lat}}
	case "xy":
		msg["location"] = map[string]any{"x": lng, "y": lat}
	case "wkt":
		msg["location"] = fmt.Sprintf("SRID=4326;POINT(%f %f)", lng, lat)
	case "columns":
		msg["latitude"] = lat
		msg["longitude"] = lng
	default:
		msg["location"] = map[string]any{"lat": lat, "lng": lng}
	}
	return msg
}

func headingTo(route [][]float64, idx int) float64 {
	next := route[(idx+1)%len(route)]
	cur := route[idx]
	rad := math.Atan2(next[1]-cur[1], next[0]-cur[0])
	deg := rad * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
