package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"os"

	"maumon/db"
	"maumon/internal/centersync"
	"maumon/internal/config"
)

func main() {

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	if !cfg.SyncEnabled() {
		slog.Info("DASHBOARD_BASE_URL not set, center sync disabled")
		return
	}

	err = db.ConnectRedis()
	if err != nil {
		log.Fatalf("error connecting to Redis: %v", err)
	}
	defer db.CloseRedis()

	client := centersync.NewClient(cfg.DashboardBaseURL)

	slog.Info("syncer started", "dashboard", cfg.DashboardBaseURL)

	// A single consumer drains the list in order, so payloads for the same
	// user reach the dashboard in the order they were produced.
	for {
		raw, err := db.PopFromQueue(db.SyncQueueKey, 0)
		if err != nil {
			slog.Error("error popping from Redis queue", "error", err)
			break
		}

		var payload centersync.Payload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			slog.Error("invalid sync payload, dead-lettering", "error", err)
			db.PushToQueue(db.DeadLetterKey, raw)
			continue
		}

		err = client.Deliver(context.Background(), &payload)
		if errors.Is(err, centersync.ErrRejected) {
			slog.Warn("dashboard rejected payload, dropping",
				"center_code", payload.CenterCode, "error", err)
			continue
		}
		if err != nil {
			slog.Error("delivery failed, dead-lettering",
				"center_code", payload.CenterCode, "error", err)
			db.PushToQueue(db.DeadLetterKey, raw)
			continue
		}

		slog.Info("payload delivered",
			"center_code", payload.CenterCode, "metrics", len(payload.MoodMetrics))
	}
}
