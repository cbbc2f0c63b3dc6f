package model

// AnalyzeJob is the payload carried on the analyze queue. Attempt counts
// deliveries; the worker dead-letters the job once it exceeds the retry
// budget.
type AnalyzeJob struct {
	DiaryID string `json:"diary_id"`
	Attempt int    `json:"attempt"`
}
