package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"maumon/internal/centersync"
	"maumon/internal/model"
	"maumon/pkg/cipher"
	"maumon/pkg/emotion"
	"maumon/pkg/llm"
)

const (
	riskWindow        = 7
	riskHighThreshold = 0.6
	riskMidThreshold  = 0.3
	casAttempts       = 3

	completeRetryDelay = time.Second
)

type DiaryStore interface {
	GetByID(ctx context.Context, id string) (*model.Diary, error)
	TryClaim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
	CompleteAnalysis(ctx context.Context, id string, fields model.AnalysisFields) error
	MarkFailed(ctx context.Context, id string, reason string) error
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.Diary, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateRiskLevel(ctx context.Context, id string, from, to string) (bool, error)
}

type SyncQueue interface {
	Enqueue(ctx context.Context, payload string) error
}

// Analyzer runs one diary analysis end to end: claim, decrypt, classify,
// advise, persist, then the best-effort risk roll-up and center-sync enqueue.
type Analyzer struct {
	diaries      DiaryStore
	users        UserStore
	cipher       *cipher.Cipher
	classifier   *emotion.Classifier
	advisor      *llm.Advisor
	syncQueue    SyncQueue // nil when no dashboard is configured
	modelVersion string
}

func NewAnalyzer(
	diaries DiaryStore,
	users UserStore,
	ciph *cipher.Cipher,
	classifier *emotion.Classifier,
	advisor *llm.Advisor,
	syncQueue SyncQueue,
	modelVersion string,
) *Analyzer {
	return &Analyzer{
		diaries:      diaries,
		users:        users,
		cipher:       ciph,
		classifier:   classifier,
		advisor:      advisor,
		syncQueue:    syncQueue,
		modelVersion: modelVersion,
	}
}

// Run processes one analyze job. A nil return means the job is settled (done,
// terminally failed, or dropped as a duplicate); a non-nil error means the
// caller should re-enqueue the job.
func (a *Analyzer) Run(ctx context.Context, diaryID string) error {
	diary, err := a.diaries.GetByID(ctx, diaryID)
	if err != nil {
		return fmt.Errorf("loading diary %s: %w", diaryID, err)
	}
	if diary == nil {
		slog.Warn("diary gone, dropping job", "diary_id", diaryID)
		return nil
	}

	claimed, err := a.diaries.TryClaim(ctx, diaryID)
	if err != nil {
		return fmt.Errorf("claiming diary %s: %w", diaryID, err)
	}
	if !claimed {
		slog.Info("diary already claimed, dropping job",
			"diary_id", diaryID, "thread_status", diary.ThreadStatus)
		return nil
	}

	event, err := a.cipher.Decrypt(diary.Event)
	if err != nil {
		return a.failTerminal(ctx, diaryID, decryptReason("event", err))
	}
	emotionDesc, err := a.cipher.Decrypt(diary.EmotionDesc)
	if err != nil {
		return a.failTerminal(ctx, diaryID, decryptReason("emotion_desc", err))
	}

	text := strings.TrimSpace(event + " " + emotionDesc)

	result, err := a.classifier.Classify(ctx, text)
	if err != nil {
		// keyword-store outage is transient: hand the claim back for retry
		if relErr := a.diaries.Release(ctx, diaryID); relErr != nil {
			slog.Error("releasing claim failed", "diary_id", diaryID, "error", relErr)
		}
		return fmt.Errorf("classifying diary %s: %w", diaryID, err)
	}

	prediction := result.Prediction()
	advice := a.advisor.Advise(ctx, prediction, result.Label)

	fields, err := a.buildFields(prediction, advice, result)
	if err != nil {
		return a.failTerminal(ctx, diaryID, err.Error())
	}

	if err := a.complete(ctx, diaryID, fields); err != nil {
		// hand the claim back so the re-enqueued job can claim again and the
		// attempt counter keeps advancing toward the failed state
		if relErr := a.diaries.Release(ctx, diaryID); relErr != nil {
			slog.Error("releasing claim failed", "diary_id", diaryID, "error", relErr)
		}
		return fmt.Errorf("persisting analysis for diary %s: %w", diaryID, err)
	}

	slog.Info("diary analyzed", "diary_id", diaryID, "prediction", prediction)

	if err := a.classifier.Learn(ctx, text, result.Label); err != nil {
		slog.Warn("keyword learning failed", "diary_id", diaryID, "error", err)
	}

	user := a.updateRisk(ctx, string(diary.UserID))
	a.enqueueSync(ctx, diary, user, result.Label, text)

	return nil
}

func (a *Analyzer) buildFields(prediction, advice string, result emotion.Result) (model.AnalysisFields, error) {
	record := model.AnalysisRecord{
		Label:        result.Label,
		Confidence:   result.Confidence,
		Distribution: result.Distribution[:],
		ModelVersion: a.modelVersion,
		GeneratedAt:  time.Now().UTC(),
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return model.AnalysisFields{}, fmt.Errorf("marshaling analysis record: %v", err)
	}

	fields := model.AnalysisFields{Prediction: prediction}
	if fields.Analysis, err = a.cipher.Encrypt(string(recordJSON)); err != nil {
		return model.AnalysisFields{}, fmt.Errorf("encrypting analysis: %v", err)
	}
	if fields.Comment, err = a.cipher.Encrypt(advice); err != nil {
		return model.AnalysisFields{}, fmt.Errorf("encrypting comment: %v", err)
	}
	if fields.Advice, err = a.cipher.Encrypt(advice); err != nil {
		return model.AnalysisFields{}, fmt.Errorf("encrypting advice: %v", err)
	}
	return fields, nil
}

// complete writes the derived fields, retrying once on a transient failure.
func (a *Analyzer) complete(ctx context.Context, diaryID string, fields model.AnalysisFields) error {
	err := a.diaries.CompleteAnalysis(ctx, diaryID, fields)
	if err == nil {
		return nil
	}

	slog.Warn("analysis write failed, retrying once", "diary_id", diaryID, "error", err)
	time.Sleep(completeRetryDelay)
	return a.diaries.CompleteAnalysis(ctx, diaryID, fields)
}

// failTerminal records a non-retryable failure on the diary. Only a failed
// MarkFailed write propagates.
func (a *Analyzer) failTerminal(ctx context.Context, diaryID, reason string) error {
	if err := a.diaries.MarkFailed(ctx, diaryID, reason); err != nil {
		return fmt.Errorf("marking diary %s failed: %w", diaryID, err)
	}
	slog.Error("analysis failed", "diary_id", diaryID, "reason", reason)
	return nil
}

func decryptReason(field string, err error) string {
	if errors.Is(err, cipher.ErrIntegrity) {
		return fmt.Sprintf("integrity: %s ciphertext failed authentication", field)
	}
	return fmt.Sprintf("format: %s ciphertext is malformed: %v", field, err)
}

// updateRisk recomputes the user's risk level from the last riskWindow
// analyzed diaries and applies it with a compare-and-set. Best-effort: every
// failure is logged and swallowed. Returns the user with the level that ended
// up applied, or nil if the user could not be loaded.
func (a *Analyzer) updateRisk(ctx context.Context, userID string) *model.User {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		slog.Warn("risk update skipped: loading user failed", "user_id", userID, "error", err)
		return nil
	}
	if user == nil {
		slog.Warn("risk update skipped: user missing", "user_id", userID)
		return nil
	}

	level, err := a.computeRiskLevel(ctx, userID)
	if err != nil {
		slog.Warn("risk update skipped", "user_id", userID, "error", err)
		return user
	}

	for attempt := 1; attempt <= casAttempts; attempt++ {
		if user.RiskLevel == level {
			return user
		}

		ok, err := a.users.UpdateRiskLevel(ctx, userID, user.RiskLevel, level)
		if err != nil {
			slog.Warn("risk update failed", "user_id", userID, "error", err)
			return user
		}
		if ok {
			user.RiskLevel = level
			return user
		}

		// lost the race: re-read and try again
		user, err = a.users.GetByID(ctx, userID)
		if err != nil || user == nil {
			slog.Warn("risk update aborted on re-read", "user_id", userID, "error", err)
			return nil
		}
	}

	slog.Warn("risk update gave up after CAS retries", "user_id", userID)
	return user
}

func (a *Analyzer) computeRiskLevel(ctx context.Context, userID string) (string, error) {
	recent, err := a.diaries.ListRecentByUser(ctx, userID, riskWindow)
	if err != nil {
		return "", fmt.Errorf("listing recent diaries: %w", err)
	}
	if len(recent) == 0 {
		return model.RiskLow, nil
	}

	negatives := 0
	for _, d := range recent {
		label, err := a.diaryLabel(d)
		if err != nil {
			slog.Warn("skipping unreadable analysis in risk window",
				"diary_id", d.ID.Hex(), "error", err)
			continue
		}
		if label == 3 || label == 4 {
			negatives++
		}
	}

	frac := float64(negatives) / float64(len(recent))
	switch {
	case frac >= riskHighThreshold:
		return model.RiskHigh, nil
	case frac >= riskMidThreshold:
		return model.RiskMid, nil
	default:
		return model.RiskLow, nil
	}
}

func (a *Analyzer) diaryLabel(d model.Diary) (int, error) {
	plain, err := a.cipher.Decrypt(d.AIAnalysis)
	if err != nil {
		return 0, err
	}
	var record model.AnalysisRecord
	if err := json.Unmarshal([]byte(plain), &record); err != nil {
		return 0, err
	}
	return record.Label, nil
}

// enqueueSync pushes the sanitized center payload. No-op when the dashboard
// is disabled or the user has no linked center; failures are logged only,
// delivery is best-effort by design.
func (a *Analyzer) enqueueSync(ctx context.Context, diary *model.Diary, user *model.User, label int, text string) {
	if a.syncQueue == nil || user == nil || user.LinkedCenterCode == "" {
		return
	}

	payload, err := centersync.BuildPayload(user, diary, label, emotion.TopTokens(text, 8))
	if err != nil {
		slog.Error("refusing to enqueue sync payload", "diary_id", diary.ID.Hex(), "error", err)
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshaling sync payload failed", "diary_id", diary.ID.Hex(), "error", err)
		return
	}

	if err := a.syncQueue.Enqueue(ctx, string(raw)); err != nil {
		slog.Error("enqueueing sync payload failed", "diary_id", diary.ID.Hex(), "error", err)
	}
}
