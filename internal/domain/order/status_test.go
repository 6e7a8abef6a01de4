package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusPaid, true},
		{StatusPaid, StatusFulfilled, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusPaid, StatusCancelled, true},
		{StatusPending, StatusPaid, false},
		{StatusConfirmed, StatusPending, false},
		{StatusFulfilled, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus("PAID")
	assert.True(t, ok)
	assert.Equal(t, StatusPaid, st)

	_, ok = ParseStatus("paid")
	assert.False(t, ok)
}
