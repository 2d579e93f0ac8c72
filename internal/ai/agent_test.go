package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseToolPlan(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "plain array", input: `["order_book","recent_trades"]`, want: []string{"order_book", "recent_trades"}},
		{name: "empty array", input: `[]`, want: nil},
		{name: "fenced", input: "```json\n[\"amm_pools\"]\n```", want: []string{"amm_pools"}},
		{name: "prose around array", input: `The needed sources are ["trade_history"] as listed.`, want: []string{"trade_history"}},
		{name: "no array", input: "no data sources needed", want: nil},
		{name: "malformed json", input: `["order_book",`, want: nil},
		{name: "blank entries dropped", input: `[" order_book ", ""]`, want: []string{"order_book"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseToolPlan(tt.input)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfidenceFor(t *testing.T) {
	assert.Equal(t, 50, confidenceFor(0))
	assert.Equal(t, 75, confidenceFor(1))
	assert.Equal(t, 85, confidenceFor(3))
	assert.Equal(t, 95, confidenceFor(5))
	assert.Equal(t, 95, confidenceFor(10), "bonus is capped at +25")
}
