package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"classboard-service/chat"
	"classboard-service/config"
	"classboard-service/controller"
	"classboard-service/database"
	"classboard-service/event"
	"classboard-service/logger"
	"classboard-service/preview"
	"classboard-service/router"
	"classboard-service/socketio"
	"classboard-service/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	log, err := logger.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "classboard-service",
	})

	rest.Use(cors.New())

	redisClients := database.RedisConnect()
	log.Infow("connections opened to Redis")

	db, err := database.PostgresConnect()
	if err != nil {
		log.Fatalw("postgres", "err", err)
	}
	log.Infow("connection opened to Postgres, schema migrated")

	enforcer, err := database.Casbin(db)
	if err != nil {
		log.Fatalw("casbin", "err", err)
	}

	bus, err := event.Connect([]string{event.AuditQueue}, log)
	if err != nil {
		log.Fatalw("rabbitmq", "err", err)
	}
	go func() {
		if err := bus.RunAuditLog(); err != nil {
			log.Errorw("audit consumer stopped", "err", err)
		}
	}()

	var uploader chat.Uploader
	if config.Config("S3_BUCKET") != "" {
		s3Store, err := storage.NewS3Store(context.Background())
		if err != nil {
			log.Fatalw("object storage", "err", err)
		}
		uploader = s3Store
	} else {
		log.Warnw("S3_BUCKET not set, attachments disabled")
	}

	socket := socketio.Init(rest, redisClients[1])

	feed := chat.NewFeed()
	gateway := chat.NewGateway(db, enforcer, feed, socket, bus, log)
	contacts := chat.NewContactResolver(db)
	previews := preview.NewResolver(
		config.ConfigDuration("PREVIEW_TIMEOUT", preview.DefaultTimeout),
		config.ConfigDuration("PREVIEW_RETRY_LIMIT", preview.DefaultRetryLimit),
		config.ConfigDuration("PREVIEW_CACHE_TTL", preview.DefaultCacheTTL),
		log,
	)

	router.Rest(
		rest,
		controller.NewAuth(db, redisClients[0], enforcer, log),
		controller.NewUser(db, log),
		controller.NewChat(contacts, gateway, uploader, previews, log),
		enforcer,
	)
	router.Socket(socket, router.SocketDeps{
		Contacts: contacts,
		Gateway:  gateway,
		Feed:     feed,
		Uploader: uploader,
		Log:      log,
	})

	go func() {
		if err := rest.Listen(fmt.Sprintf(":%s", config.Config("SERVER_PORT"))); err != nil {
			log.Fatalw("listen", "err", err)
		}
	}()
	log.Infow("classboard-service listening", "port", config.Config("SERVER_PORT"))

	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	socket.Close()
	bus.Close()
	log.Sync()
	os.Exit(0)
}
