package emotion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Labels is the fixed emotion set; the index is the label value everywhere
// in the system.
var Labels = [5]string{"행복해", "평온해", "그저그래", "우울해", "화가나"}

const (
	LabelNeutral = 2

	abstainConfidence = 0.2
	keywordWeight     = 0.4
	modelWeight       = 0.6

	modelTimeout = 20 * time.Second
)

type KeywordScore struct {
	Keyword   string
	Label     int
	Frequency int
}

type KeywordStore interface {
	Match(ctx context.Context, candidates []string) ([]KeywordScore, error)
	Upsert(ctx context.Context, keyword string, label int) error
}

type ModelClient interface {
	Distribution(ctx context.Context, text string) ([]float64, error)
}

type Result struct {
	Label        int
	Confidence   float64
	Distribution [5]float64
}

// Prediction renders the display string stored on the diary.
func (r Result) Prediction() string {
	return fmt.Sprintf("%s (%.1f%%)", Labels[r.Label], r.Confidence*100)
}

// Classifier combines a keyword vote from the dictionary with an optional
// model vote. A nil model disables the model vote entirely.
type Classifier struct {
	keywords       KeywordStore
	model          ModelClient
	updateKeywords bool
}

func NewClassifier(keywords KeywordStore, model ModelClient, updateKeywords bool) *Classifier {
	return &Classifier{
		keywords:       keywords,
		model:          model,
		updateKeywords: updateKeywords,
	}
}

// Classify is total over its input: any string, including the empty one,
// yields a valid result. Only keyword-store failures are returned as errors;
// model failures degrade to the keyword vote.
func (c *Classifier) Classify(ctx context.Context, text string) (Result, error) {
	keywordDist, err := c.keywordVote(ctx, text)
	if err != nil {
		return Result{}, err
	}

	modelDist := c.modelVote(ctx, text)

	switch {
	case keywordDist != nil && modelDist != nil:
		var combined [5]float64
		for i := range combined {
			combined[i] = keywordWeight*keywordDist[i] + modelWeight*modelDist[i]
		}
		return pick(combined), nil
	case keywordDist != nil:
		return pick(*keywordDist), nil
	case modelDist != nil:
		return pick(*modelDist), nil
	default:
		// neutral prior
		return Result{
			Label:        LabelNeutral,
			Confidence:   abstainConfidence,
			Distribution: [5]float64{0.2, 0.2, 0.2, 0.2, 0.2},
		}, nil
	}
}

func (c *Classifier) keywordVote(ctx context.Context, text string) (*[5]float64, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	matches, err := c.keywords.Match(ctx, expandPrefixes(tokens))
	if err != nil {
		return nil, fmt.Errorf("matching keywords: %w", err)
	}

	var scores [5]float64
	for _, m := range matches {
		if m.Label < 0 || m.Label > 4 {
			continue
		}
		scores[m.Label] += math.Log(1 + float64(m.Frequency))
	}

	if normalized, ok := normalize(scores); ok {
		return &normalized, nil
	}
	return nil, nil
}

func (c *Classifier) modelVote(ctx context.Context, text string) *[5]float64 {
	if c.model == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, modelTimeout)
	defer cancel()

	dist, err := c.model.Distribution(callCtx, text)
	if err != nil {
		// the model vote is optional: timeouts and transport errors fall
		// through to the keyword vote
		slog.Warn("model vote unavailable", "error", err)
		return nil
	}
	if len(dist) != 5 {
		slog.Warn("model returned malformed distribution", "len", len(dist))
		return nil
	}

	var d [5]float64
	copy(d[:], dist)
	if normalized, ok := normalize(d); ok {
		return &normalized
	}
	return nil
}

// Learn upserts each learnable token of an analyzed text under the chosen
// label, incrementing frequency on conflict. Disabled in read-only mode.
func (c *Classifier) Learn(ctx context.Context, text string, label int) error {
	if !c.updateKeywords {
		return nil
	}
	if label < 0 || label > 4 {
		return fmt.Errorf("label %d out of range", label)
	}

	for _, tok := range LearnableTokens(text) {
		if err := c.keywords.Upsert(ctx, tok, label); err != nil {
			return fmt.Errorf("upserting keyword %q: %w", tok, err)
		}
	}
	return nil
}

func normalize(scores [5]float64) ([5]float64, bool) {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	if sum <= 0 {
		return scores, false
	}
	for i := range scores {
		scores[i] /= sum
	}
	return scores, true
}

// pick takes the argmax; ties prefer the lower index.
func pick(dist [5]float64) Result {
	best := 0
	for i := 1; i < 5; i++ {
		if dist[i] > dist[best] {
			best = i
		}
	}
	return Result{Label: best, Confidence: dist[best], Distribution: dist}
}
