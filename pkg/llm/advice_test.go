package llm

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/go-playground/assert/v2"
)

type fakeClient struct {
	advice    string
	adviceErr error
	calls     int
}

func (f *fakeClient) Distribution(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) Advise(ctx context.Context, prediction string) (string, error) {
	f.calls++
	return f.advice, f.adviceErr
}

func (f *fakeClient) ModelName() string { return "fake" }

func TestAdvisePrefersLLM(t *testing.T) {
	client := &fakeClient{advice: "따뜻한 하루였네요."}
	a := NewAdvisor(client, 1)

	got := a.Advise(context.Background(), "행복해 (93.0%)", 0)
	assert.Equal(t, "따뜻한 하루였네요.", got)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, int64(0), a.Failures())
}

func TestAdviseFallsBackAfterTwoAttempts(t *testing.T) {
	client := &fakeClient{adviceErr: errors.New("503 service unavailable")}
	a := NewAdvisor(client, 1)

	got := a.Advise(context.Background(), "행복해 (93.0%)", 0)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, int64(2), a.Failures())
	assert.Equal(t, true, slices.Contains(FallbackPool(0), got))
}

func TestAdviseTreatsEmptyResponseAsFailure(t *testing.T) {
	client := &fakeClient{advice: "   "}
	a := NewAdvisor(client, 1)

	got := a.Advise(context.Background(), "우울해 (80.0%)", 3)
	assert.Equal(t, true, slices.Contains(FallbackPool(3), got))
	assert.Equal(t, int64(2), a.Failures())
}

func TestAdviseWithoutClientIsTotal(t *testing.T) {
	a := NewAdvisor(nil, 42)

	for label := -1; label <= 5; label++ {
		got := a.Advise(context.Background(), "그저그래 (20.0%)", label)
		assert.NotEqual(t, "", got)
	}
}

func TestFallbackIsSeedable(t *testing.T) {
	a1 := NewAdvisor(nil, 7)
	a2 := NewAdvisor(nil, 7)

	for i := 0; i < 10; i++ {
		g1 := a1.Advise(context.Background(), "화가나 (70.0%)", 4)
		g2 := a2.Advise(context.Background(), "화가나 (70.0%)", 4)
		assert.Equal(t, g1, g2)
	}
}

func TestFallbackStaysInLabelPool(t *testing.T) {
	a := NewAdvisor(nil, 3)

	for label := 0; label < 5; label++ {
		for i := 0; i < 20; i++ {
			got := a.Advise(context.Background(), "x", label)
			if !slices.Contains(FallbackPool(label), got) {
				t.Fatalf("label %d: %q not in pool", label, got)
			}
		}
	}
}

func TestFallbackPoolSizes(t *testing.T) {
	for label := 0; label < 5; label++ {
		n := len(FallbackPool(label))
		if n < 4 || n > 8 {
			t.Fatalf("label %d: pool size %d out of range", label, n)
		}
	}
}
