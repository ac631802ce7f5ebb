package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{name: "seconds", value: "30", want: 30 * time.Second, wantOK: true},
		{name: "zero", value: "0", want: 0, wantOK: true},
		{name: "whitespace", value: " 5 ", want: 5 * time.Second, wantOK: true},
		{name: "capped", value: "3600", want: MaxCooldown, wantOK: true},
		{name: "http date", value: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second, wantOK: true},
		{name: "date in the past", value: now.Add(-time.Minute).Format(http.TimeFormat), want: 0, wantOK: true},
		{name: "empty", value: "", wantOK: false},
		{name: "negative", value: "-3", wantOK: false},
		{name: "garbage", value: "soon", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRetryAfter(tt.value, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCooldownState(t *testing.T) {
	active := &CooldownState{Until: time.Now().Add(time.Minute)}
	assert.True(t, active.Active())
	assert.InDelta(t, time.Minute.Seconds(), active.Remaining().Seconds(), 1)

	passed := &CooldownState{Until: time.Now().Add(-time.Minute)}
	assert.False(t, passed.Active())
	assert.Zero(t, passed.Remaining())

	var none CooldownState
	assert.False(t, none.Active())
}
