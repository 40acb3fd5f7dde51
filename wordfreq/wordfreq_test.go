package wordfreq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/opinionprobe/models"
)

func TestCount_RepeatedAcrossHeadlines(t *testing.T) {
	got := Count([]string{"Cats run", "Cats jump", "Cats sleep"})
	assert.Equal(t, map[string]int{"cats": 3}, got)
}

func TestCount_Empty(t *testing.T) {
	assert.Empty(t, Count(nil))
	assert.Empty(t, Analyze([]string{}))
}

func TestCount_ThresholdIsExclusive(t *testing.T) {
	got := Count([]string{"war ends", "war again", "peace talks"})
	assert.Empty(t, got)
}

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases", "Europe FACES Europe", []string{"europe", "faces", "europe"}},
		{"drops stop words", "The war of the words would end", []string{"war", "words", "end"}},
		{"drops short tokens", "EU to go up", nil},
		{"punctuation separates", "war-time, peace.", []string{"war", "time", "peace"}},
		{"digits glue", "covid19 and 2024s", nil},
		{"underscore glues", "snake_case", nil},
		{"non-ascii letters glue", "café crisis", []string{"crisis"}},
		{"apostrophe splits", "Europe's future", []string{"europe", "future"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokens(tt.in))
		})
	}
}

func TestAnalyze_OrdersByCountThenWord(t *testing.T) {
	headlines := []string{
		"Trust crisis deepens",
		"Trust crisis widens",
		"Trust crisis, again",
		"Trust returns",
		"Budget budget budget",
	}
	got := Analyze(headlines)
	assert.Equal(t, []models.WordFrequencyEntry{
		{Word: "trust", Count: 4},
		{Word: "budget", Count: 3},
		{Word: "crisis", Count: 3},
	}, got)
}
