package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/metrics"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/model"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/alert"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/persistence"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/pkg/dedup"
)

// Broadcaster is the fan-out side the pipeline pushes into.
type Broadcaster interface {
	Publish(reading model.SensorReading)
	PublishAlert(userID string, evt model.AlertEvent)
}

// Service is the ingestion pipeline: normalize, persist, fan out, evaluate
// thresholds. One instance serves both the HTTP endpoints and the MQTT
// consumer.
type Service struct {
	store  persistence.Store
	hub    Broadcaster
	alerts *alert.Store
	dedup  *dedup.Deduper
	logger *zap.Logger
}

func NewService(store persistence.Store, hub Broadcaster, alerts *alert.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		hub:    hub,
		alerts: alerts,
		dedup:  dedup.New(2*time.Minute, 4096),
		logger: logger,
	}
}

// Ingest runs one raw submission through the whole pipeline. The returned
// reading carries the resolved timestamp. Unparseable payloads come back as
// a ValidationError; store faults wrap ErrStoreUnavailable and nothing is
// fanned out for them.
func (s *Service) Ingest(ctx context.Context, raw []byte, fallbackDevice string) (model.SensorReading, error) {
	reading, err := Normalize(raw, fallbackDevice, time.Now().UTC())
	if err != nil {
		metrics.NormalizationFailures.Inc()
		return model.SensorReading{}, err
	}

	if err := s.store.Append(ctx, reading); err != nil {
		metrics.StoreWriteFailures.Inc()
		return model.SensorReading{}, err
	}
	metrics.ReadingsIngested.Inc()

	s.hub.Publish(reading)
	s.evaluateAlerts(reading)
	return reading, nil
}

func (s *Service) evaluateAlerts(reading model.SensorReading) {
	for userID, thresholds := range s.alerts.All() {
		violations := alert.Evaluate(reading, thresholds)
		if len(violations) == 0 {
			continue
		}
		metrics.AlertViolations.Add(float64(len(violations)))
		s.hub.PublishAlert(userID, model.AlertEvent{
			DeviceID:   reading.DeviceID,
			Message:    fmt.Sprintf("%d threshold violation(s) on %s", len(violations), reading.DeviceID),
			Violations: violations,
			Timestamp:  reading.CapturedAt,
		})
	}
}

// MessageHandler adapts the pipeline to the MQTT consumer. The device id is
// taken from the topic tail (telemetry/<deviceId>) when the payload does not
// name one. Redelivered payloads inside the dedup window are dropped.
func (s *Service) MessageHandler() func(topic string, msg pahomqtt.Message) error {
	return func(topic string, msg pahomqtt.Message) error {
		payload := msg.Payload()
		device := ""
		if i := strings.LastIndex(topic, "/"); i >= 0 {
			device = topic[i+1:]
		}
		if s.dedup.Seen(dedup.Key(device, payload)) {
			return nil
		}

		reading, err := s.Ingest(context.Background(), payload, device)
		if err != nil {
			if model.IsValidation(err) {
				// bad telemetry is logged and dropped, never redelivered
				s.logger.Warn("dropping unparseable telemetry",
					zap.String("topic", topic), zap.Error(err))
				return nil
			}
			return err
		}

		s.logger.Debug("telemetry ingested",
			zap.String("device", reading.DeviceID),
			zap.Time("capturedAt", reading.CapturedAt))
		return nil
	}
}
