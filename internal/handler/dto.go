package handler

type CreateDiaryRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Date        string `json:"date" binding:"required"`
	Event       string `json:"event" binding:"required"`
	EmotionDesc string `json:"emotion_desc"`
}

type CreateDiaryResponse struct {
	DiaryID      string `json:"diary_id"`
	TaskID       string `json:"task_id"`
	ThreadStatus string `json:"thread_status"`
}

type DiaryResponse struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Date         string `json:"date"`
	CreatedAt    string `json:"created_at"`
	Event        string `json:"event"`
	EmotionDesc  string `json:"emotion_desc"`
	AIPrediction string `json:"ai_prediction,omitempty"`
	AIComment    string `json:"ai_comment,omitempty"`
	AIAdvice     string `json:"ai_advice,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	ThreadStatus string `json:"thread_status"`
	CompletedAt  string `json:"completed_at,omitempty"`
	Error        string `json:"error,omitempty"`
}

type DiariesResponse struct {
	Diaries []DiaryResponse `json:"diaries"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}
