// Package ingest subscribes to the sensor topic and runs the persist +
// fan-out path for every delivered message.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sensorhub/internal/cache"
	"github.com/sensorhub/internal/metrics"
	"github.com/sensorhub/internal/mqttclient"
	"github.com/sensorhub/internal/store"
)

// Broadcaster re-emits a raw message to all connected stream subscribers.
type Broadcaster interface {
	Broadcast(raw []byte)
}

type Service struct {
	mqtt  *mqttclient.Client
	store store.Storage
	hub   Broadcaster
	cache *cache.Cache
	topic string
	log   *slog.Logger
}

func New(m *mqttclient.Client, s store.Storage, hub Broadcaster, c *cache.Cache, topic string, log *slog.Logger) *Service {
	return &Service{mqtt: m, store: s, hub: hub, cache: c, topic: topic, log: log}
}

// Start subscribes to the configured topic. A failed subscription is the
// caller's to log; it must not terminate the process.
func (s *Service) Start() error {
	s.log.Info("subscribing", "topic", s.topic)
	return s.mqtt.Subscribe(s.topic, 0, s.handle)
}

// handle runs once per delivered message. Persistence is fire-and-forget and
// never gates the broadcast; a payload that fails to parse is still fanned
// out verbatim.
func (s *Service) handle(_ mqtt.Client, msg mqtt.Message) {
	raw := msg.Payload()
	metrics.MessagesReceived.Inc()
	s.log.Debug("message received", "topic", msg.Topic(), "bytes", len(raw))

	doc, err := Normalize(msg.Topic(), raw, time.Now())
	if err != nil {
		metrics.ParseFailures.Inc()
		s.log.Warn("payload not persisted", "topic", msg.Topic(), "error", err)
	} else {
		go s.persist(doc)
	}

	if s.cache != nil {
		go func() {
			if err := s.cache.Set(context.Background(), msg.Topic(), raw); err != nil {
				s.log.Warn("latest-reading cache write failed", "topic", msg.Topic(), "error", err)
			}
		}()
	}

	s.hub.Broadcast(raw)
}

func (s *Service) persist(doc store.Record) {
	if _, err := s.store.Insert(context.Background(), doc); err != nil {
		metrics.StoreWriteFailures.Inc()
		s.log.Error("store write failed", "error", err)
	}
}

// Normalize builds the persistable document for one inbound message. The raw
// bytes are kept verbatim in "message"; "time_sensor" and "data_sensor" come
// from the payload's time/sensor fields and stay null when absent; the
// timestamp is server ingest time in milliseconds, not device time.
func Normalize(topic string, payload []byte, now time.Time) (store.Record, error) {
	var parsed map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return store.Record{
		"topic":       topic,
		"message":     string(payload),
		"time_sensor": parsed["time"],
		"data_sensor": parsed["sensor"],
		"timestamp":   now.UnixMilli(),
	}, nil
}
