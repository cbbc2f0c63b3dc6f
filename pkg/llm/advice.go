package llm

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	adviseAttempts = 2
	adviseTimeout  = 20 * time.Second
)

// fallbackPools holds hand-written advice per emotion label, used when no LLM
// is configured or every attempt fails. Selection is uniform-random; the
// non-determinism is intentional and kept seedable for tests.
var fallbackPools = [5][]string{
	{ // 0 행복해
		"오늘의 행복을 오래 기억할 수 있게 짧은 메모로 남겨보세요.",
		"좋은 하루였네요. 그 기분을 가까운 사람과 나눠보는 건 어떨까요.",
		"행복한 순간을 만들어준 것이 무엇이었는지 떠올려보세요.",
		"오늘처럼 웃을 수 있는 일을 내일도 하나 계획해보세요.",
		"지금의 에너지를 좋아하는 일에 조금 더 써보세요.",
	},
	{ // 1 평온해
		"잔잔한 하루를 보내셨네요. 따뜻한 차 한 잔과 함께 마무리해보세요.",
		"평온함이 유지되도록 오늘 밤은 일찍 쉬어보는 건 어떨까요.",
		"마음이 고요할 때 하고 싶었던 일을 하나 적어보세요.",
		"지금의 안정감을 느끼며 가볍게 산책해보세요.",
		"차분한 마음으로 내일 할 일을 정리해보면 좋겠어요.",
	},
	{ // 2 그저그래
		"무난한 하루도 소중해요. 작은 즐거움을 하나 찾아보세요.",
		"기분 전환이 필요하다면 좋아하는 음악을 들어보세요.",
		"몸을 가볍게 움직이면 기분도 조금 달라질 수 있어요.",
		"오늘 있었던 일 중 괜찮았던 것 하나를 떠올려보세요.",
		"내일은 평소와 다른 길로 걸어보는 건 어떨까요.",
		"특별할 것 없는 날이지만, 잘 버텨낸 것만으로 충분해요.",
	},
	{ // 3 우울해
		"힘든 하루였군요. 오늘은 자신에게 조금 더 너그러워지세요.",
		"우울한 마음이 길어진다면 믿을 수 있는 사람에게 이야기해보세요.",
		"따뜻한 물로 샤워를 하고 일찍 잠자리에 들어보세요.",
		"지금 느끼는 감정은 잘못된 것이 아니에요. 천천히 쉬어가세요.",
		"짧은 산책이나 가벼운 스트레칭이 마음을 풀어줄 수 있어요.",
		"오늘 하루를 버텨낸 스스로를 인정해주세요.",
	},
	{ // 4 화가나
		"화가 나는 건 자연스러운 감정이에요. 깊게 숨을 쉬어보세요.",
		"화가 났던 상황을 글로 적어보면 마음이 정리될 수 있어요.",
		"잠시 그 상황에서 떨어져 몸을 움직여보세요.",
		"감정이 가라앉은 뒤에 하고 싶은 말을 정리해보세요.",
		"차가운 물 한 잔을 마시고 잠시 쉬어가세요.",
	},
}

// FallbackPool returns the fallback messages for a label. Unknown labels get
// the neutral pool.
func FallbackPool(label int) []string {
	if label < 0 || label >= len(fallbackPools) {
		label = 2
	}
	return fallbackPools[label]
}

// Advisor produces an advisory message for a prediction string. It prefers
// the configured LLM and falls back to the per-label pool; it never fails and
// never returns an empty string. LLM failures are observable via Failures.
type Advisor struct {
	client  Client
	timeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand

	failures atomic.Int64
}

// NewAdvisor builds an Advisor. A nil client disables the LLM path entirely.
// The seed drives fallback selection only.
func NewAdvisor(client Client, seed int64) *Advisor {
	return &Advisor{
		client:  client,
		timeout: adviseTimeout,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (a *Advisor) Advise(ctx context.Context, prediction string, label int) string {
	if a.client != nil {
		for attempt := 1; attempt <= adviseAttempts; attempt++ {
			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			msg, err := a.client.Advise(callCtx, prediction)
			cancel()

			if err == nil && strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}

			a.failures.Add(1)
			slog.Warn("advice LLM call failed, will fall back", "attempt", attempt, "error", err)
		}
	}

	return a.fallback(label)
}

func (a *Advisor) fallback(label int) string {
	pool := FallbackPool(label)

	a.mu.Lock()
	defer a.mu.Unlock()
	return pool[a.rng.Intn(len(pool))]
}

// Failures reports how many LLM advice calls have failed since startup.
func (a *Advisor) Failures() int64 {
	return a.failures.Load()
}
