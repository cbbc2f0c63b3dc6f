package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"maumon/db"
	"maumon/internal/config"
	"maumon/internal/model"
	"maumon/internal/repository"

	"github.com/robfig/cron/v3"
)

func main() {

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
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

	c := cron.New()
	_, err = c.AddFunc(fmt.Sprintf("@every %s", cfg.SweeperInterval), func() {
		sweep(diaryRepo, cfg)
	})
	if err != nil {
		log.Fatalf("error scheduling sweep: %v", err)
	}

	slog.Info("sweeper started",
		"interval", cfg.SweeperInterval, "stale_after", cfg.SweeperStale)

	c.Run()
}

// sweep resets diaries stuck in running back to pending and re-enqueues them.
// A stale claim means a worker died mid-analysis; the claim protocol keeps a
// concurrent re-delivery harmless.
func sweep(diaryRepo *repository.DiaryRepository, cfg *config.Config) {
	ids, err := diaryRepo.ReclaimStale(context.Background(), cfg.SweeperStale)
	if err != nil {
		slog.Error("error reclaiming stale diaries", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	for _, id := range ids {
		job, _ := json.Marshal(model.AnalyzeJob{DiaryID: id})
		if err := db.PushToQueue(db.AnalyzeQueueKey, string(job)); err != nil {
			slog.Error("error re-enqueueing reclaimed diary", "diary_id", id, "error", err)
		}
	}

	slog.Info("reclaimed stale diaries", "count", len(ids))
}
