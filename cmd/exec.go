package cmd

import (
	"context"
	"log"
	"log/slog"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"

	"lesson-booking/config"
	"lesson-booking/internal/handlers"
	"lesson-booking/internal/realtime"
	"lesson-booking/internal/services"
	"lesson-booking/internal/store"
	_ "lesson-booking/migrations"
	"lesson-booking/security"
	"lesson-booking/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)

	// Initialize PubNub when keys are configured; the broadcaster skips
	// push publishing without it.
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId("lesson-booking-server"))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		pn = pubnub.NewPubNub(pnConfig)
	}

	broadcaster := realtime.NewBroadcaster(redisClient, pn)

	// Initialize services
	recordStore := store.NewRecordStore(app)
	enrollmentService := services.NewEnrollmentService(recordStore, cfg.SeatUpdateRetries, broadcaster)
	lessonService := services.NewLessonService(recordStore, cfg.MinLessonCapacity, cfg.SeatUpdateRetries, broadcaster)
	orderService := services.NewOrderService(recordStore, enrollmentService, broadcaster)

	// Initialize handlers
	lessonHandler := handlers.NewLessonHandler(lessonService, enrollmentService, broadcaster)
	orderHandler := handlers.NewOrderHandler(orderService)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		go warmAvailabilityCache(app, broadcaster)

		e.Router.BindFunc(rateLimiter.Middleware())

		// Lesson endpoints
		e.Router.GET("/api/v1/lessons", lessonHandler.List)
		e.Router.POST("/api/v1/lessons", lessonHandler.Create)
		e.Router.GET("/api/v1/lessons/{lessonId}", lessonHandler.Get)
		e.Router.PATCH("/api/v1/lessons/{lessonId}", lessonHandler.Update)
		e.Router.DELETE("/api/v1/lessons/{lessonId}", lessonHandler.Delete)
		e.Router.GET("/api/v1/lessons/{lessonId}/availability", lessonHandler.Availability)

		// Enrollment endpoints
		e.Router.POST("/api/v1/lessons/{lessonId}/students", lessonHandler.AddStudent)
		e.Router.DELETE("/api/v1/lessons/{lessonId}/students", lessonHandler.RemoveStudent)

		// Order endpoints
		e.Router.POST("/api/v1/orders", orderHandler.Create)
		e.Router.GET("/api/v1/orders", orderHandler.List)
		e.Router.GET("/api/v1/orders/{orderId}", orderHandler.Get)

		// Prometheus metrics
		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupLessonHooks(app, broadcaster)

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		slog.Info("Shutdown signal received, closing Redis connection")
		if err := redisClient.Close(); err != nil {
			slog.Error("Failed to close Redis connection", "error", err)
		}
		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// warmAvailabilityCache pushes the current seat state of every lesson
// into Redis on startup, so availability reads do not depend on a write
// having happened since the last restart.
func warmAvailabilityCache(app core.App, broadcaster *realtime.Broadcaster) {
	ctx := context.Background()

	records, err := app.FindAllRecords("lessons")
	if err != nil {
		log.Printf("Error warming availability cache: %v", err)
		return
	}

	warmed := 0
	for _, record := range records {
		lesson, err := store.LessonFromRecord(record)
		if err != nil {
			slog.Error("Skipping lesson with unreadable seat state", "lesson_id", record.Id, "error", err)
			continue
		}
		broadcaster.AvailabilityChanged(ctx, lesson)
		warmed++
	}

	log.Printf("Warmed availability cache for %d lessons", warmed)
}

// setupLessonHooks keeps the availability cache in sync with writes
// that bypass the booking API, such as admin dashboard edits.
func setupLessonHooks(app core.App, broadcaster *realtime.Broadcaster) {
	app.OnRecordAfterCreateSuccess("lessons").BindFunc(func(e *core.RecordEvent) error {
		if lesson, err := store.LessonFromRecord(e.Record); err == nil {
			broadcaster.AvailabilityChanged(context.Background(), lesson)
		} else {
			slog.Error("Lesson hook skipped cache sync", "lesson_id", e.Record.Id, "error", err)
		}
		return e.Next()
	})

	app.OnRecordAfterUpdateSuccess("lessons").BindFunc(func(e *core.RecordEvent) error {
		if lesson, err := store.LessonFromRecord(e.Record); err == nil {
			broadcaster.AvailabilityChanged(context.Background(), lesson)
		} else {
			slog.Error("Lesson hook skipped cache sync", "lesson_id", e.Record.Id, "error", err)
		}
		return e.Next()
	})

	app.OnRecordAfterDeleteSuccess("lessons").BindFunc(func(e *core.RecordEvent) error {
		broadcaster.LessonDeleted(context.Background(), e.Record.Id)
		return e.Next()
	})
}
