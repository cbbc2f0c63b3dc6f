package centersync

import (
	"fmt"

	"maumon/internal/model"
	"maumon/pkg/cipher"
	"maumon/pkg/emotion"
)

const maxKeywords = 8

// moodScores maps an emotion label to the dashboard's 0..100 mood scale.
var moodScores = [5]int{90, 70, 50, 30, 10}

func MoodScore(label int) int {
	if label < 0 || label >= len(moodScores) {
		return moodScores[emotion.LabelNeutral]
	}
	return moodScores[label]
}

type MoodMetric struct {
	Date      string   `json:"date"`
	CreatedAt string   `json:"created_at"`
	MoodScore int      `json:"mood_score"`
	Emotions  []string `json:"emotions"`
	Keywords  []string `json:"keywords"`
}

// Payload is the sanitized per-diary summary forwarded to a center dashboard.
// It never carries diary body text and never carries ciphertext.
type Payload struct {
	CenterCode   string       `json:"center_code"`
	UserNickname string       `json:"user_nickname"`
	RiskLevel    int          `json:"risk_level"`
	MoodMetrics  []MoodMetric `json:"mood_metrics"`
}

func BuildPayload(user *model.User, diary *model.Diary, label int, keywords []string) (*Payload, error) {
	if user.LinkedCenterCode == "" {
		return nil, fmt.Errorf("user %s has no linked center", user.ID.Hex())
	}
	if label < 0 || label > 4 {
		return nil, fmt.Errorf("label %d out of range", label)
	}

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	p := &Payload{
		CenterCode:   user.LinkedCenterCode,
		UserNickname: user.Nickname,
		RiskLevel:    model.RiskScore(user.RiskLevel),
		MoodMetrics: []MoodMetric{{
			Date:      diary.Date,
			CreatedAt: diary.CreatedAt.Format("2006-01-02 15:04:05"),
			MoodScore: MoodScore(label),
			Emotions:  []string{emotion.Labels[label]},
			Keywords:  keywords,
		}},
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// validate refuses any payload carrying a ciphertext envelope; the dashboard
// must only ever see plaintext summaries.
func (p *Payload) validate() error {
	fields := []string{p.CenterCode, p.UserNickname}
	for _, m := range p.MoodMetrics {
		fields = append(fields, m.Date, m.CreatedAt)
		fields = append(fields, m.Emotions...)
		fields = append(fields, m.Keywords...)
	}
	for _, f := range fields {
		if cipher.IsCiphertext(f) {
			return fmt.Errorf("refusing to sync ciphertext field %q", f)
		}
	}
	return nil
}
