package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	progress := Progress{Count: 5, ML: 500, GoalML: 3000, Percent: 16.7}

	tests := []struct {
		name      string
		req       Request
		wantTitle string
		wantBody  string
	}{
		{"detected", Request{Event: "drink", Drink: Drink{ML: 100}, Progress: progress}, "Gulp detected", "+100 ml, 500 / 3000 ml (17%)"},
		{"manual", Request{Event: "drink", Drink: Drink{ML: 100, Manual: true}, Progress: progress}, "Gulp added", "+100 ml, 500 / 3000 ml (17%)"},
		{"undo", Request{Event: "undo", Progress: progress}, "Gulp removed", "500 / 3000 ml (17%)"},
		{"goal", Request{Event: "goal", Progress: progress}, "Daily goal reached", "5 gulps, 500 / 3000 ml (17%)"},
		{"reminder", Request{Event: "reminder", Progress: progress, IdleMinutes: 45}, "Time for a drink", "No gulp for 45 min, 500 / 3000 ml (17%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body, err := message(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBody, body)
		})
	}

	_, _, err := message(Request{Event: "spill"})
	assert.Error(t, err)
}
