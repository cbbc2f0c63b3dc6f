package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const classifySystemPrompt = `당신은 감정 분석가입니다. 사용자의 일기 문장을 읽고 다섯 가지 감정 각각에 대한 확률을 추정하세요.

감정 순서 (고정):
0 행복해, 1 평온해, 2 그저그래, 3 우울해, 4 화가나

규칙:
- 확률 다섯 개의 합은 1이어야 합니다
- 문장에 드러난 감정만 근거로 삼으세요

JSON만 출력하세요. 다른 텍스트는 쓰지 마세요:
{
  "probabilities": [0.0, 0.0, 0.0, 0.0, 0.0]
}`

const adviceSystemPrompt = `당신은 따뜻한 마음 돌봄 상담사입니다. 사용자의 오늘 감정 분석 결과가 주어집니다.

규칙:
- 한두 문장의 짧은 한국어 조언을 작성하세요
- 진단하거나 단정하지 말고, 공감하는 어조를 유지하세요
- 이모지, 해시태그, 따옴표를 쓰지 마세요

조언 문장만 출력하세요.`

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Some model responses include extra prose around JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

// parseDistribution decodes a model response into a normalized five-class
// probability vector.
func parseDistribution(content string) ([]float64, error) {
	var parsed struct {
		Probabilities []float64 `json:"probabilities"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse distribution: %w, content: %s", err, content)
	}
	if len(parsed.Probabilities) != 5 {
		return nil, fmt.Errorf("expected 5 probabilities, got %d", len(parsed.Probabilities))
	}

	var sum float64
	for i, p := range parsed.Probabilities {
		if p < 0 {
			parsed.Probabilities[i] = 0
			p = 0
		}
		sum += p
	}
	if sum <= 0 {
		return nil, fmt.Errorf("distribution sums to zero, content: %s", content)
	}
	for i := range parsed.Probabilities {
		parsed.Probabilities[i] /= sum
	}
	return parsed.Probabilities, nil
}
