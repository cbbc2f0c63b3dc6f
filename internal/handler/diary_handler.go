package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"maumon/internal/model"
	"maumon/pkg/cipher"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DiaryStore interface {
	Insert(ctx context.Context, d *model.Diary) error
	GetByID(ctx context.Context, id string) (*model.Diary, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Diary, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

type AnalyzeQueue interface {
	Enqueue(ctx context.Context, payload string) error
}

type DiaryHandler struct {
	repository DiaryStore
	queue      AnalyzeQueue
	cipher     *cipher.Cipher
}

func NewDiaryHandler(repository DiaryStore, queue AnalyzeQueue, ciph *cipher.Cipher) *DiaryHandler {
	return &DiaryHandler{repository: repository, queue: queue, cipher: ciph}
}

// CreateDiary stores the entry encrypted with thread_status=pending, enqueues
// one analyze job and returns immediately; clients poll the diary until the
// status reaches done or failed.
func (h *DiaryHandler) CreateDiary(c *gin.Context) {
	var req CreateDiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	encEvent, err := h.cipher.Encrypt(req.Event)
	if err != nil {
		slog.Error("error encrypting event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Encryption error"})
		return
	}
	encDesc, err := h.cipher.Encrypt(req.EmotionDesc)
	if err != nil {
		slog.Error("error encrypting emotion_desc", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Encryption error"})
		return
	}

	diary := &model.Diary{
		UserID:      model.UserRef(req.UserID),
		Date:        req.Date,
		Event:       encEvent,
		EmotionDesc: encDesc,
		TaskID:      uuid.NewString(),
	}

	if err := h.repository.Insert(c.Request.Context(), diary); err != nil {
		slog.Error("error saving diary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	job, _ := json.Marshal(model.AnalyzeJob{DiaryID: diary.ID.Hex()})
	if err := h.queue.Enqueue(c.Request.Context(), string(job)); err != nil {
		// the diary stays pending; an operator can re-enqueue it
		slog.Error("error enqueueing analysis", "diary_id", diary.ID.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue analysis"})
		return
	}

	c.JSON(http.StatusCreated, CreateDiaryResponse{
		DiaryID:      diary.ID.Hex(),
		TaskID:       diary.TaskID,
		ThreadStatus: model.StatusPending,
	})
}

func (h *DiaryHandler) GetDiary(c *gin.Context) {
	diary, err := h.repository.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("error fetching diary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if diary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Diary not found"})
		return
	}

	res, err := h.toDiaryResponse(*diary)
	if err != nil {
		slog.Error("error decrypting diary", "diary_id", diary.ID.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Decryption error"})
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *DiaryHandler) ListDiaries(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	limit := getQueryInt("limit", 20, c)
	offset := getQueryInt("offset", 0, c)

	diaries, err := h.repository.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		slog.Error("error fetching diaries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total, err := h.repository.CountByUser(c.Request.Context(), userID)
	if err != nil {
		slog.Error("error counting diaries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := DiariesResponse{
		Diaries: []DiaryResponse{},
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}

	for _, d := range diaries {
		dr, err := h.toDiaryResponse(d)
		if err != nil {
			slog.Error("error decrypting diary", "diary_id", d.ID.Hex(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Decryption error"})
			return
		}
		res.Diaries = append(res.Diaries, dr)
	}

	c.JSON(http.StatusOK, res)
}

func (h *DiaryHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *DiaryHandler) toDiaryResponse(d model.Diary) (DiaryResponse, error) {
	event, err := h.cipher.Decrypt(d.Event)
	if err != nil {
		return DiaryResponse{}, err
	}
	emotionDesc, err := h.cipher.Decrypt(d.EmotionDesc)
	if err != nil {
		return DiaryResponse{}, err
	}

	res := DiaryResponse{
		ID:           d.ID.Hex(),
		UserID:       string(d.UserID),
		Date:         d.Date,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
		Event:        event,
		EmotionDesc:  emotionDesc,
		AIPrediction: d.AIPrediction,
		TaskID:       d.TaskID,
		ThreadStatus: d.ThreadStatus,
		Error:        d.Error,
	}

	if d.AIComment != "" {
		if res.AIComment, err = h.cipher.Decrypt(d.AIComment); err != nil {
			return DiaryResponse{}, err
		}
	}
	if d.AIAdvice != "" {
		if res.AIAdvice, err = h.cipher.Decrypt(d.AIAdvice); err != nil {
			return DiaryResponse{}, err
		}
	}
	if d.CompletedAt != nil {
		res.CompletedAt = d.CompletedAt.Format(time.RFC3339)
	}

	return res, nil
}

func getQueryInt(name string, fallback int, c *gin.Context) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
