package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/config"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/actuator"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/alert"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/ingest"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/persistence"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/internal/services/realtime"
	"github.com/Bhooyam-Agri/Bhooyam-Dashboard/pkg/mqtt"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := buildStore(cfg, logger)
	defer closeStore()

	history := realtime.NewHistory(cfg.HistoryCapacity)
	hub := realtime.NewHub(history, logger.Named("realtime"))
	go hub.Run(ctx)

	alerts := alert.NewStore()
	svc := ingest.NewService(store, hub, alerts, logger.Named("ingest"))

	device := actuator.NewHTTPDeviceClient(cfg.DeviceBaseURL, cfg.DeviceTimeout)
	gateway := actuator.NewGateway(actuator.NewMemoryStateStore(), device, hub, logger.Named("actuator")).
		WithRetry(cfg.DeviceRetries, cfg.DeviceRetryDelay)

	var mqttClient pahomqtt.Client
	if cfg.MQTTEnabled {
		client, err := mqtt.NewConn(ctx, &mqtt.Config{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: "bhooyam-server",
		}, logger)
		if err != nil {
			logger.Fatal("mqtt connection failed", zap.Error(err))
		}
		consumer := mqtt.NewConsumer(client, []string{cfg.MQTTTopic}, 1, logger.Named("consumer"))
		consumer.SetHandler(svc.MessageHandler())
		go consumer.Consume(ctx)

		gateway.WithEventPublisher(mqtt.NewPublisher(client))
		mqttClient = client
	}

	router := buildRouter(cfg, svc, store, alerts, gateway, hub, mqttClient, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
}

// buildStore prefers Influx; without a configured instance it falls back to
// the bounded in-memory store so local development works out of the box.
func buildStore(cfg config.Config, logger *zap.Logger) (persistence.Store, func()) {
	if cfg.InfluxURL != "" {
		store, err := persistence.NewInfluxStore(persistence.InfluxConfig{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		}, logger)
		if err != nil {
			logger.Fatal("influx store init failed", zap.Error(err))
		}
		logger.Info("using influx store", zap.String("url", cfg.InfluxURL))
		return store, store.Close
	}
	logger.Warn("INFLUX_URL not set, using in-memory store")
	return persistence.NewMemoryStore(), func() {}
}

func buildRouter(cfg config.Config, svc *ingest.Service, store persistence.Store,
	alerts *alert.Store, gateway *actuator.Gateway, hub *realtime.Hub,
	mqttClient pahomqtt.Client, logger *zap.Logger) *gin.Engine {

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	ingest.RegisterRoutes(router, svc, store)
	alert.RegisterRoutes(router, alerts)
	actuator.RegisterRoutes(router, gateway)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	router.GET("/ws", gin.WrapF(realtime.ServeWS(hub, upgrader, logger)))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		probeCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		storeHealth := "ok"
		if _, err := store.Query(probeCtx, persistence.QueryFilter{Limit: 1}); err != nil {
			storeHealth = "down"
		}
		mqttHealth := "disabled"
		if mqttClient != nil {
			mqttHealth = "ok"
			if !mqttClient.IsConnected() {
				mqttHealth = "down"
			}
		}

		status := "ok"
		code := http.StatusOK
		switch {
		case storeHealth == "down":
			status, code = "down", http.StatusServiceUnavailable
		case mqttHealth == "down":
			status = "degraded"
		}
		c.JSON(code, gin.H{
			"status": status,
			"store":  storeHealth,
			"mqtt":   mqttHealth,
		})
	})
	router.GET("/readyz", func(c *gin.Context) {
		readyCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if _, err := store.Query(readyCtx, persistence.QueryFilter{Limit: 1}); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return router
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
