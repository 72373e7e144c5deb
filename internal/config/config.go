// Package config loads service settings from the environment with sensible
// local-development defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort       int
	AllowedOrigins []string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	MQTTEnabled  bool
	MQTTHost     string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTTopic    string

	DeviceBaseURL    string
	DeviceTimeout    time.Duration
	DeviceRetries    int
	DeviceRetryDelay time.Duration

	HistoryCapacity int
}

func Load() Config {
	return Config{
		HTTPPort:       envInt("HTTP_PORT", 8080),
		AllowedOrigins: envList("ALLOWED_ORIGINS", "http://localhost:3000"),

		InfluxURL:    envStr("INFLUX_URL", ""),
		InfluxToken:  envStr("INFLUX_TOKEN", ""),
		InfluxOrg:    envStr("INFLUX_ORG", "bhooyam"),
		InfluxBucket: envStr("INFLUX_BUCKET", "telemetry"),

		MQTTEnabled:  envStr("MQTT_HOST", "") != "",
		MQTTHost:     envStr("MQTT_HOST", ""),
		MQTTPort:     envInt("MQTT_PORT", 1883),
		MQTTUser:     envStr("MQTT_USER", ""),
		MQTTPassword: envStr("MQTT_PASSWORD", ""),
		MQTTTopic:    envStr("MQTT_TOPIC", "telemetry/#"),

		DeviceBaseURL:    envStr("DEVICE_BASE_URL", "http://192.168.1.50"),
		DeviceTimeout:    envDur("DEVICE_TIMEOUT", 5*time.Second),
		DeviceRetries:    envInt("DEVICE_RETRIES", 2),
		DeviceRetryDelay: envDur("DEVICE_RETRY_DELAY", 500*time.Millisecond),

		HistoryCapacity: envInt("HISTORY_CAPACITY", 150),
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key, def string) []string {
	raw := envStr(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
