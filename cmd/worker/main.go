package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"time"

	"maumon/db"
	"maumon/internal/config"
	"maumon/internal/model"
	"maumon/internal/pipeline"
	"maumon/internal/repository"
	"maumon/pkg/cipher"
	"maumon/pkg/emotion"
	"maumon/pkg/llm"
)

// maxRetries bounds how often a diary is re-analyzed before it is marked
// failed and the job is parked on the dead-letter list.
const maxRetries = 3

// syncQueue adapts the Redis sync list to the pipeline's queue interface.
type syncQueue struct{}

func (syncQueue) Enqueue(ctx context.Context, payload string) error {
	return db.PushToQueue(db.SyncQueueKey, payload)
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

	err = db.Connect()
	if err != nil {
		log.Fatalf("error connecting to DB: %v", err)
	}
	defer db.Close()

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

	var llmClient llm.Client
	if cfg.LLMEnabled() {
		if cfg.LLMProvider == "anthropic" {
			llmClient = llm.NewAnthropicClient(cfg.LLMAPIKey, cfg.LLMModel)
		} else {
			llmClient = llm.NewOpenAIClient(cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMModel)
		}
	} else {
		slog.Warn("no LLM configured, running keyword-only with fallback advice")
	}

	modelVersion := "keyword-only"
	if llmClient != nil {
		modelVersion = llmClient.ModelName()
	}

	diaryRepo := repository.NewDiaryRepository(db.Diaries())
	userRepo := repository.NewUserRepository(db.Users())
	keywordRepo := repository.NewKeywordRepository(db.DB)

	classifier := emotion.NewClassifier(keywordRepo, llmClient, cfg.UpdateKeywords)
	advisor := llm.NewAdvisor(llmClient, time.Now().UnixNano())

	var sync pipeline.SyncQueue
	if cfg.SyncEnabled() {
		sync = syncQueue{}
	} else {
		slog.Info("DASHBOARD_BASE_URL not set, center sync disabled")
	}

	analyzer := pipeline.NewAnalyzer(diaryRepo, userRepo, ciph, classifier, advisor, sync, modelVersion)

	slog.Info("worker started", "model", modelVersion)

	for {
		raw, err := db.PopFromQueue(db.AnalyzeQueueKey, 0)
		if err != nil {
			slog.Error("error popping from Redis queue", "error", err)
			break
		}

		var job model.AnalyzeJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			slog.Error("invalid job payload, dead-lettering", "payload", raw, "error", err)
			db.PushToQueue(db.DeadLetterKey, raw)
			continue
		}

		if job.Attempt >= maxRetries {
			slog.Warn("analysis retries exhausted, dead-lettering", "diary_id", job.DiaryID)
			if err := diaryRepo.MarkFailed(db.Ctx, job.DiaryID, "analysis retries exhausted"); err != nil {
				slog.Error("error marking diary failed", "diary_id", job.DiaryID, "error", err)
			}
			db.PushToQueue(db.DeadLetterKey, raw)
			continue
		}

		if err := analyzer.Run(context.Background(), job.DiaryID); err != nil {
			slog.Error("error analyzing diary",
				"diary_id", job.DiaryID, "attempt", job.Attempt, "error", err)

			job.Attempt++
			retry, _ := json.Marshal(job)
			if err := db.PushToQueue(db.AnalyzeQueueKey, string(retry)); err != nil {
				slog.Error("error re-enqueueing job", "diary_id", job.DiaryID, "error", err)
			}

			time.Sleep(5 * time.Second)
		}
	}
}
