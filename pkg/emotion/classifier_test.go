package emotion

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/go-playground/assert/v2"
)

type fakeKeywordStore struct {
	rows     []KeywordScore
	matchErr error
	upserts  map[string]int
}

func (f *fakeKeywordStore) Match(ctx context.Context, candidates []string) ([]KeywordScore, error) {
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	var out []KeywordScore
	for _, r := range f.rows {
		if slices.Contains(candidates, r.Keyword) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeKeywordStore) Upsert(ctx context.Context, keyword string, label int) error {
	if f.upserts == nil {
		f.upserts = make(map[string]int)
	}
	f.upserts[keyword] = label
	return nil
}

type fakeModel struct {
	dist []float64
	err  error
}

func (f *fakeModel) Distribution(ctx context.Context, text string) ([]float64, error) {
	return f.dist, f.err
}

func TestClassifyEmptyTextAbstains(t *testing.T) {
	c := NewClassifier(&fakeKeywordStore{}, nil, false)

	res, err := c.Classify(context.Background(), "")
	assert.Equal(t, nil, err)
	assert.Equal(t, LabelNeutral, res.Label)
	assert.Equal(t, 0.2, res.Confidence)
}

func TestClassifyNoSignalAbstains(t *testing.T) {
	c := NewClassifier(&fakeKeywordStore{}, nil, false)

	res, err := c.Classify(context.Background(), "오늘은 그냥 하루였다")
	assert.Equal(t, nil, err)
	assert.Equal(t, LabelNeutral, res.Label)
	assert.Equal(t, 0.2, res.Confidence)
}

func TestClassifyKeywordOnly(t *testing.T) {
	store := &fakeKeywordStore{rows: []KeywordScore{
		{Keyword: "우울", Label: 3, Frequency: 5},
	}}
	c := NewClassifier(store, nil, false)

	res, err := c.Classify(context.Background(), "오늘 너무 우울했다")
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, res.Label)
	if res.Confidence <= 0.2 {
		t.Fatalf("expected confidence above the neutral prior, got %f", res.Confidence)
	}
}

func TestClassifyIsDeterministicWithoutModel(t *testing.T) {
	store := &fakeKeywordStore{rows: []KeywordScore{
		{Keyword: "행복", Label: 0, Frequency: 3},
		{Keyword: "우울", Label: 3, Frequency: 2},
	}}
	c := NewClassifier(store, nil, false)

	first, err := c.Classify(context.Background(), "행복하다가도 우울했다")
	assert.Equal(t, nil, err)
	for i := 0; i < 5; i++ {
		again, err := c.Classify(context.Background(), "행복하다가도 우울했다")
		assert.Equal(t, nil, err)
		assert.Equal(t, first, again)
	}
}

func TestClassifyTieBreakPrefersLowerLabel(t *testing.T) {
	store := &fakeKeywordStore{rows: []KeywordScore{
		{Keyword: "산책", Label: 1, Frequency: 4},
		{Keyword: "야근", Label: 3, Frequency: 4},
	}}
	c := NewClassifier(store, nil, false)

	res, err := c.Classify(context.Background(), "산책 후에 야근")
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, res.Label)
}

func TestClassifyBlendsModelAndKeywords(t *testing.T) {
	store := &fakeKeywordStore{rows: []KeywordScore{
		{Keyword: "눈물", Label: 3, Frequency: 10},
	}}
	model := &fakeModel{dist: []float64{1, 0, 0, 0, 0}}
	c := NewClassifier(store, model, false)

	// keyword vote is all label 3 (weight 0.4), model all label 0 (weight 0.6)
	res, err := c.Classify(context.Background(), "영화를 보고 눈물이 났다")
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, res.Label)
	assert.Equal(t, 0.6, res.Confidence)
	assert.Equal(t, 0.4, res.Distribution[3])
}

func TestClassifySwallowsModelErrors(t *testing.T) {
	store := &fakeKeywordStore{rows: []KeywordScore{
		{Keyword: "우울", Label: 3, Frequency: 5},
	}}
	model := &fakeModel{err: errors.New("connection refused")}
	c := NewClassifier(store, model, false)

	res, err := c.Classify(context.Background(), "우울했다")
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, res.Label)
}

func TestClassifyPropagatesStoreErrors(t *testing.T) {
	store := &fakeKeywordStore{matchErr: errors.New("db down")}
	c := NewClassifier(store, nil, false)

	_, err := c.Classify(context.Background(), "우울했다")
	assert.NotEqual(t, nil, err)
}

func TestClassifyIsTotal(t *testing.T) {
	c := NewClassifier(&fakeKeywordStore{}, nil, false)

	for _, in := range []string{"", "...", "!!!", "123", "a", "오늘 😀"} {
		res, err := c.Classify(context.Background(), in)
		assert.Equal(t, nil, err)
		if res.Label < 0 || res.Label > 4 {
			t.Fatalf("%q: label %d out of range", in, res.Label)
		}
		if res.Confidence < 0 || res.Confidence > 1 {
			t.Fatalf("%q: confidence %f out of range", in, res.Confidence)
		}
	}
}

func TestPredictionFormat(t *testing.T) {
	res := Result{Label: 0, Confidence: 0.93}
	assert.Equal(t, "행복해 (93.0%)", res.Prediction())

	res = Result{Label: 2, Confidence: 0.2}
	assert.Equal(t, "그저그래 (20.0%)", res.Prediction())
}

func TestLearnUpsertsNonStopwordTokens(t *testing.T) {
	store := &fakeKeywordStore{}
	c := NewClassifier(store, nil, true)

	err := c.Learn(context.Background(), "오늘 너무 우울했다 눈물이 났다", 3)
	assert.Equal(t, nil, err)

	assert.Equal(t, 3, store.upserts["우울했다"])
	assert.Equal(t, 3, store.upserts["눈물이"])

	// stopwords stay out of the dictionary
	if _, ok := store.upserts["오늘"]; ok {
		t.Fatal("stopword 오늘 was upserted")
	}
	if _, ok := store.upserts["너무"]; ok {
		t.Fatal("stopword 너무 was upserted")
	}
}

func TestLearnDisabledInReadOnlyMode(t *testing.T) {
	store := &fakeKeywordStore{}
	c := NewClassifier(store, nil, false)

	err := c.Learn(context.Background(), "우울했다", 3)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(store.upserts))
}

func TestTokenize(t *testing.T) {
	toks := Tokenize("오늘, 친구들과! 즐거운 시간을 보냈다.")
	assert.Equal(t, []string{"오늘", "친구들과", "즐거운", "시간을", "보냈다"}, toks)

	assert.Equal(t, 0, len(Tokenize("")))
	assert.Equal(t, 0, len(Tokenize("... !!! ---")))
}

func TestTopTokensLimit(t *testing.T) {
	toks := TopTokens("하나 둘셋 넷넷 다섯 여섯 일곱 여덟 아홉 열열 끝끝", 8)
	if len(toks) > 8 {
		t.Fatalf("expected at most 8 tokens, got %d", len(toks))
	}
}

func TestExpandPrefixes(t *testing.T) {
	out := expandPrefixes([]string{"우울했다"})
	assert.Equal(t, true, slices.Contains(out, "우울"))
	assert.Equal(t, true, slices.Contains(out, "우울했다"))
}
