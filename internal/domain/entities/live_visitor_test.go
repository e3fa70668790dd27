package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatePresence(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    PresenceState
	}{
		{"just now", 0, PresenceState{Live: true, Active: true}},
		{"four minutes", 4 * time.Minute, PresenceState{Live: true, Active: true}},
		{"exactly five minutes", 5 * time.Minute, PresenceState{Live: false, Active: true}},
		{"six minutes", 6 * time.Minute, PresenceState{Live: false, Active: true}},
		{"exactly ten minutes", 10 * time.Minute, PresenceState{Live: false, Active: false}},
		{"eleven minutes", 11 * time.Minute, PresenceState{Live: false, Active: false}},
		{"just under a day", 24*time.Hour - time.Second, PresenceState{}},
		{"a day", 24 * time.Hour, PresenceState{Expired: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluatePresence(now.Add(-tt.elapsed), now))
		})
	}
}

func TestLiveVisitor_TouchIsStrictlyIncreasing(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	lv := &LiveVisitor{LastActivityAt: base}

	lv.Touch(base)
	assert.Equal(t, base.Add(time.Millisecond), lv.LastActivityAt)

	lv.Touch(base.Add(-time.Minute))
	assert.Equal(t, base.Add(2*time.Millisecond), lv.LastActivityAt)

	lv.Touch(base.Add(time.Minute))
	assert.Equal(t, base.Add(time.Minute), lv.LastActivityAt)
}

func TestJSONMap_ValueAndScan(t *testing.T) {
	m := JSONMap{"plan": "pro", "seats": float64(3)}

	raw, err := m.Value()
	require.NoError(t, err)

	var out JSONMap
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, m, out)

	var empty JSONMap
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)

	assert.Error(t, out.Scan(42))
}

func TestPresenceEvent_JSON(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := NewPresenceEvent("v1", PresenceEventTypeExpired, nil, at)

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	assert.NotEmpty(t, evt.ID)
	assert.Contains(t, string(data), `"event_type":"presence.expired"`)
	assert.NotContains(t, string(data), `"visitor":`)
}
