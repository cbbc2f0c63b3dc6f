package llm

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON unchanged",
			input: `{"probabilities":[1,0,0,0,0]}`,
			want:  `{"probabilities":[1,0,0,0,0]}`,
		},
		{
			name:  "strips json fenced block",
			input: "```json\n{\"probabilities\":[1,0,0,0,0]}\n```",
			want:  `{"probabilities":[1,0,0,0,0]}`,
		},
		{
			name:  "strips plain fenced block",
			input: "```\n{\"probabilities\":[1,0,0,0,0]}\n```",
			want:  `{"probabilities":[1,0,0,0,0]}`,
		},
		{
			name:  "extracts JSON from surrounding prose",
			input: "분석 결과입니다: {\"probabilities\":[1,0,0,0,0]} 감사합니다.",
			want:  `{"probabilities":[1,0,0,0,0]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanJSONResponse(tt.input)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDistribution(t *testing.T) {
	dist, err := parseDistribution(`{"probabilities":[0.8,0.1,0.05,0.03,0.02]}`)
	assert.Equal(t, nil, err)
	assert.Equal(t, 5, len(dist))
	assert.Equal(t, 0.8, dist[0])
}

func TestParseDistributionNormalizes(t *testing.T) {
	dist, err := parseDistribution(`{"probabilities":[2,1,1,0,0]}`)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0.5, dist[0])
	assert.Equal(t, 0.25, dist[1])
}

func TestParseDistributionClampsNegatives(t *testing.T) {
	dist, err := parseDistribution(`{"probabilities":[-1,1,0,0,0]}`)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0.0, dist[0])
	assert.Equal(t, 1.0, dist[1])
}

func TestParseDistributionRejectsBadInput(t *testing.T) {
	for _, in := range []string{
		`not json`,
		`{"probabilities":[0.5,0.5]}`,
		`{"probabilities":[0,0,0,0,0]}`,
	} {
		_, err := parseDistribution(in)
		assert.NotEqual(t, nil, err)
	}
}
