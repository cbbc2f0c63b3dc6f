package model

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// UserRef is a user reference as stored on a diary document. Historical
// documents carry it either as an ObjectID or as its hex string; both decode
// to the hex form. Writes always produce the string form.
type UserRef string

func (u *UserRef) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.ObjectID:
		*u = UserRef(rv.ObjectID().Hex())
	case bsontype.String:
		*u = UserRef(rv.StringValue())
	default:
		return fmt.Errorf("user_id: unexpected bson type %s", t)
	}
	return nil
}

func (u UserRef) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(string(u))
}

// Diary is a single per-day journal entry. Event and EmotionDesc hold
// ciphertext at rest; the AI* fields are populated by the analysis worker and
// are absent until the diary reaches StatusDone (AIAnalysis, AIComment and
// AIAdvice are ciphertext as well).
type Diary struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       UserRef            `bson:"user_id"`
	Date         string             `bson:"date"`
	CreatedAt    time.Time          `bson:"created_at"`
	Event        string             `bson:"event"`
	EmotionDesc  string             `bson:"emotion_desc"`
	AIPrediction string             `bson:"ai_prediction,omitempty"`
	AIAnalysis   string             `bson:"ai_analysis,omitempty"`
	AIComment    string             `bson:"ai_comment,omitempty"`
	AIAdvice     string             `bson:"ai_advice,omitempty"`
	TaskID       string             `bson:"task_id,omitempty"`
	ThreadStatus string             `bson:"thread_status"`
	RunningSince *time.Time         `bson:"running_since,omitempty"`
	CompletedAt  *time.Time         `bson:"completed_at,omitempty"`
	Error        string             `bson:"error,omitempty"`
}

// AnalysisRecord is the plaintext form of the ai_analysis field.
type AnalysisRecord struct {
	Label        int       `json:"label"`
	Confidence   float64   `json:"confidence"`
	Distribution []float64 `json:"distribution"`
	ModelVersion string    `json:"model_version"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// AnalysisFields is the set of derived fields written together when an
// analysis completes. All string fields except Prediction are ciphertext.
type AnalysisFields struct {
	Prediction string
	Analysis   string
	Comment    string
	Advice     string
}
