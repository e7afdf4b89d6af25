package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/hoangtv/parking-services/configs"
	"github.com/hoangtv/parking-services/internal/camera"
	"github.com/hoangtv/parking-services/internal/capture"
	"github.com/hoangtv/parking-services/internal/comm"
	"github.com/hoangtv/parking-services/internal/coordinator"
	nats "github.com/hoangtv/parking-services/internal/nats"
	"github.com/hoangtv/parking-services/internal/parking/db"
	"github.com/hoangtv/parking-services/internal/parking/models"
	"github.com/hoangtv/parking-services/internal/parking/service"
	"github.com/hoangtv/parking-services/internal/parking/store/postgres"
	"github.com/hoangtv/parking-services/internal/parksvc/broker"
	handlers "github.com/hoangtv/parking-services/internal/parksvc/handlers"
	"github.com/hoangtv/parking-services/internal/scanner"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "park"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

// laneFromEnv reads one lane's hardware addresses, e.g. ENTRY_FRONT_URL.
func laneFromEnv(role models.LaneRole) models.Lane {
	prefix := string(role) + "_"

	baud := 9600
	if v := os.Getenv(prefix + "BAUD_RATE"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("Invalid %sBAUD_RATE value: %v", prefix, err)
		}
		baud = b
	}

	lane := models.Lane{
		Role:       role,
		FrontURL:   os.Getenv(prefix + "FRONT_URL"),
		RearURL:    os.Getenv(prefix + "REAR_URL"),
		SerialPort: os.Getenv(prefix + "SERIAL_PORT"),
		BaudRate:   baud,
	}

	if lane.FrontURL == "" || lane.RearURL == "" || lane.SerialPort == "" {
		log.Fatalf("lane %s is missing camera urls or serial port in env", role)
	}

	return lane
}

func buildLane(lane models.Lane, sync *capture.Synchronizer, ledger *service.LedgerService,
	publish func(ev comm.LaneEvent)) *coordinator.LaneSet {
	front := camera.NewSource(string(lane.Role)+"/"+models.CameraFront,
		camera.NewMJPEGGrabber(lane.FrontURL), camera.Config{})
	rear := camera.NewSource(string(lane.Role)+"/"+models.CameraRear,
		camera.NewMJPEGGrabber(lane.RearURL), camera.Config{})

	reader := scanner.NewSource(string(lane.Role),
		&scanner.SerialOpener{Port: lane.SerialPort, Baud: lane.BaudRate}, scanner.Config{})

	coord := coordinator.New(lane.Role, front, rear, sync,
		reader.Events(), ledger, publish, coordinator.Config{})

	return &coordinator.LaneSet{
		Role:        lane.Role,
		FrontCamera: front,
		RearCamera:  rear,
		Scanner:     reader,
		Coordinator: coord,
	}
}

func main() {
	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx, dbpool); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	migrateCancel()

	cardStore := postgres.NewCardStore(dbpool)
	cardService := service.NewCardService(cardStore)

	sessionStore := postgres.NewSessionStore(dbpool)
	ledgerService := service.NewLedgerService(sessionStore, service.PolicyFromEnv())
	reportService := service.NewReportService(sessionStore)

	imageRoot := os.Getenv("IMAGE_ROOT")
	if imageRoot == "" {
		imageRoot = "./images"
	}
	sync, err := capture.NewSynchronizer(imageRoot)
	if err != nil {
		log.Fatalf("Failed to prepare image root %s: %v", imageRoot, err)
	}

	// Connect to NATS
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// init lane message broker
	registry := coordinator.NewRegistry()
	b := broker.NewBroker(n.Conn, registry)

	registry.Add(buildLane(laneFromEnv(models.LaneEntry), sync, ledgerService, b.PublishLaneEvent))
	registry.Add(buildLane(laneFromEnv(models.LaneExit), sync, ledgerService, b.PublishLaneEvent))

	if err := registry.StartAll(); err != nil {
		log.Fatalf("Failed to start lanes: %v", err)
	}

	// subscribe to display service
	sub, err := b.SubscribeOperator(broker.TopicOperator)
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(0)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(registry, cardService, reportService)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("PARK_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()
	registry.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
