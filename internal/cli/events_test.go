package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/testpilot/internal/event"
)

func TestEvents_Human(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	now := time.Now()
	seed(t, s, now.Add(-time.Hour), event.Signal{Kind: event.CodeBrowserStart})
	seed(t, s, now, event.AddonStatus{Active: 3, Inactive: 1})

	cmd := &EventsCommand{globals: &GlobalFlags{}, Since: "7d", Limit: 50}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "BROWSER_START")
	assert.Contains(t, output, `ADDON_STATUS                 "3" "1" ""`)
	assert.Contains(t, output, "2 events")
}

func TestEvents_SinceWindow(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	now := time.Now()
	seed(t, s, now.Add(-10*24*time.Hour), event.Signal{Kind: event.CodeBrowserStart})
	seed(t, s, now.Add(-time.Hour), event.Signal{Kind: event.CodeBrowserShutdown})

	cmd := &EventsCommand{globals: &GlobalFlags{}, Since: "7d"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})
	assert.NotContains(t, output, "BROWSER_START")
	assert.Contains(t, output, "BROWSER_SHUTDOWN")

	cmd.Since = "all"
	output = captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})
	assert.Contains(t, output, "BROWSER_START")
}

func TestEvents_LimitKeepsNewest(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	now := time.Now()
	for i := range 5 {
		seed(t, s, now.Add(time.Duration(i-5)*time.Minute), event.HistoryStatus{Places: i})
	}

	cmd := &EventsCommand{globals: &GlobalFlags{JSON: true}, Since: "1d", Limit: 2}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, float64(4), rows[0]["seq"])
	assert.Equal(t, float64(5), rows[1]["seq"])
	assert.Equal(t, "HISTORY_STATUS", rows[1]["name"])
	assert.Equal(t, float64(event.CodeHistoryStatus), rows[1]["event_code"])
	assert.Equal(t, "4", rows[1]["data1"])
}

func TestEvents_Empty(t *testing.T) {
	s := newTestSession(t, event.Interface)
	cmd := &EventsCommand{globals: &GlobalFlags{}, Since: "7d"}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})
	assert.Contains(t, output, "No events.")
}

func TestEvents_BadSince(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	cmd := &EventsCommand{globals: &GlobalFlags{}, Since: "soon"}
	assert.Error(t, cmd.executeWithSession(context.Background(), s))
}

func TestEvents_OrderedByTimestamp(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	now := time.Now()
	seed(t, s, now, event.Signal{Kind: event.CodeBrowserShutdown})
	seed(t, s, now.Add(-time.Hour), event.Signal{Kind: event.CodeBrowserStart})

	cmd := &EventsCommand{globals: &GlobalFlags{JSON: true}, Since: "1d"}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "BROWSER_START", rows[0]["name"])
	assert.Equal(t, float64(2), rows[0]["seq"])
	assert.Equal(t, "BROWSER_SHUTDOWN", rows[1]["name"])
}
