package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"maumon/db"
	"maumon/internal/config"
	"maumon/internal/handler"
	"maumon/internal/repository"
	"maumon/pkg/cipher"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// analyzeQueue adapts the Redis analyze list to the handler's queue interface.
type analyzeQueue struct{}

func (analyzeQueue) Enqueue(ctx context.Context, payload string) error {
	return db.PushToQueue(db.AnalyzeQueueKey, payload)
}

func main() {

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	ciph, err := cipher.New(cfg.FieldCipherKey)
	if err != nil {
		log.Fatalf("error initializing field cipher: %v", err)
	}

	err = db.ConnectMongo()
	if err != nil {
		log.Fatalf("error connecting to MongoDB: %v", err)
	}
	defer db.CloseMongo()

	err = db.ConnectRedis()
	if err != nil {
		log.Fatalf("error connecting to Redis: %v", err)
	}
	defer db.CloseRedis()

	diaryRepo := repository.NewDiaryRepository(db.Diaries())
	diaryHandler := handler.NewDiaryHandler(diaryRepo, analyzeQueue{}, ciph)

	r := gin.Default()

	allowedOrigins := []string{"http://localhost:3000"}

	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	slog.Info("AllowOrigins URL:", "urls", allowedOrigins)

	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	r.POST("/api/diaries", diaryHandler.CreateDiary)
	r.GET("/api/diaries/:id", diaryHandler.GetDiary)
	r.GET("/api/diaries", diaryHandler.ListDiaries)
	r.GET("/health", diaryHandler.GetHealth)

	err = r.Run(":8080")
	if err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
