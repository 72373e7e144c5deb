// Command simulator publishes synthetic telemetry in the firmware payload
// shapes, including the occasional flaky channel, so the whole ingest path
// can be exercised without hardware.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/config"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/pkg/mqtt"
)

type walker struct {
	value, min, max, step float64
}

func (w *walker) next() float64 {
	w.value += (rand.Float64()*2 - 1) * w.step
	if w.value < w.min {
		w.value = w.min
	}
	if w.value > w.max {
		w.value = w.max
	}
	return w.value
}

func (w *walker) str() string {
	return strconv.FormatFloat(w.next(), 'f', 1, 64)
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	if !cfg.MQTTEnabled {
		logger.Fatal("MQTT_HOST must be set for the simulator")
	}

	interval := 10 * time.Second
	if v := os.Getenv("SIM_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			interval = d
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mqtt.NewConn(ctx, &mqtt.Config{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		User:     cfg.MQTTUser,
		Password: cfg.MQTTPassword,
		ClientID: "bhooyam-simulator",
	}, logger)
	if err != nil {
		logger.Fatal("mqtt connection failed", zap.Error(err))
	}
	defer mqtt.CloseConn(client)

	temp := &walker{value: 24, min: 15, max: 38, step: 0.4}
	hum := &walker{value: 60, min: 20, max: 95, step: 1.2}
	soil := []*walker{
		{value: 55, min: 10, max: 90, step: 1.5},
		{value: 48, min: 10, max: 90, step: 1.5},
		{value: 62, min: 10, max: 90, step: 1.5},
	}
	water := &walker{value: 19, min: 12, max: 28, step: 0.3}
	air := &walker{value: 120, min: 40, max: 400, step: 8}
	light := &walker{value: 800, min: 100, max: 2000, step: 40}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("simulator running", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publish(client, logger, "telemetry/esp1", esp1Payload(temp, hum, soil))
			publish(client, logger, "telemetry/esp2", esp2Payload(water, air, light))
		}
	}
}

// esp1Payload is the grow-room board shape. Roughly one payload in ten
// reports a dead temperature probe with a bare nan token, the way the real
// firmware does.
func esp1Payload(temp, hum *walker, soil []*walker) string {
	tempStr := temp.str()
	if rand.Intn(10) == 0 {
		tempStr = "nan"
	}
	probes := make([]string, len(soil))
	for i, p := range soil {
		probes[i] = fmt.Sprintf("%q", p.str()+"%")
	}
	return fmt.Sprintf(`{"soilMoisture":[%s],"dht22":{"temp":%s,"hum":%s}}`,
		strings.Join(probes, ","), tempStr, hum.str())
}

// esp2Payload is the reservoir board shape.
func esp2Payload(water, air, light *walker) string {
	return fmt.Sprintf(`{"waterTemp":%s,"airQuality":%s,"lightIntensity":%s}`,
		water.str(), air.str(), light.str())
}

// publish sends the raw payload string, malformed tokens included, so the
// server's tolerant parsing is exercised end to end.
func publish(client pahomqtt.Client, logger *zap.Logger, topic, payload string) {
	token := client.Publish(topic, 0, false, []byte(payload))
	token.Wait()
	if token.Error() != nil {
		logger.Warn("publish failed", zap.String("topic", topic), zap.Error(token.Error()))
	}
}
