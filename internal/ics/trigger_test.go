package ics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTriggerMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"-PT4320M", 4320, true},
		{"-PT0M", 0, true},
		{"PT0S", 0, true},
		{"-P3D", 4320, true},
		{"-P1DT2H", 1560, true},
		{"-P1W", 10080, true},
		{"PT15M", 0, false},
		{"-PT5", 0, false},
		{"19980101T050000Z", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseTriggerMinutes(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
	assert.Equal(t, "-PT1440M", triggerValue(1440))
}
