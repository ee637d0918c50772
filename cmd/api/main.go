package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	adoptionflow "github.com/rehome-app/rehome-api/internal/adoption"
	"github.com/rehome-app/rehome-api/internal/config"
	"github.com/rehome-app/rehome-api/internal/db"
	"github.com/rehome-app/rehome-api/internal/presence"
	"github.com/rehome-app/rehome-api/internal/services/adoption"
	"github.com/rehome-app/rehome-api/internal/services/auth"
	"github.com/rehome-app/rehome-api/internal/services/chat"
	"github.com/rehome-app/rehome-api/internal/services/cloudinary"
	"github.com/rehome-app/rehome-api/internal/services/pet"
	"github.com/rehome-app/rehome-api/internal/services/stats"
	"github.com/rehome-app/rehome-api/internal/services/wishlist"
	"github.com/rehome-app/rehome-api/internal/storage"
	"github.com/rehome-app/rehome-api/internal/utils"
	"github.com/rehome-app/rehome-api/internal/websocket"
)

func main() {
	cfg := config.LoadConfig()

	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("initializing database: %v", err)
	}
	defer db.CloseDB()

	// Presence is in-process by default; with Redis configured every API
	// instance shares one online-user registry.
	var directory presence.Directory = presence.NewMemoryDirectory()
	if cfg.RedisConfig.Addr != "" {
		client := presence.NewRedisClient(cfg.RedisConfig)
		redisDirectory := presence.NewRedisDirectory(client)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisDirectory.Ping(ctx)
		cancel()
		if err != nil {
			log.Fatalf("connecting to redis: %v", err)
		}

		directory = redisDirectory
		log.Println("presence: using redis registry at " + cfg.RedisConfig.Addr)
	}

	manager := websocket.NewManager(directory)
	defer manager.Shutdown()

	jwtService := utils.NewJWTService(cfg.JWTSecret)
	wsServer := websocket.NewServer(":"+cfg.WebSocketPort, manager, jwtService)
	go func() {
		log.Println("websocket server listening on :" + cfg.WebSocketPort)
		if err := wsServer.ListenAndServe(); err != nil {
			log.Fatalf("websocket server: %v", err)
		}
	}()

	chatStore := chat.NewStore()
	petStore := storage.NewPostgresStore(db.Pool)
	workflow := adoptionflow.NewWorkflow(petStore, chatStore, manager)

	app := fiber.New(fiber.Config{
		AppName:      "Rehome API",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	cloudinaryService := cloudinary.NewCloudinaryService(cfg)

	auth.NewAuthService(cfg).SetupRoutes(app)
	pet.NewPetService(cfg, petStore, cloudinaryService).SetupRoutes(app)
	adoption.NewAdoptionService(cfg, workflow).SetupRoutes(app)
	chat.NewChatService(cfg, chatStore, manager).SetupRoutes(app)
	wishlist.NewWishlistService(cfg).SetupRoutes(app)
	cloudinaryService.SetupRoutes(app)
	stats.NewStatsService(cfg, manager).SetupRoutes(app)

	log.Println("Rehome API listening on port " + cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
