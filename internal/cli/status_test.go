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

func TestStatus_EmptyDB(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev", Audit: 5}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "Test Pilot Status")
	assert.Contains(t, output, "Version:       dev")
	assert.Contains(t, output, "Study:         week_life")
	assert.Contains(t, output, "Events:        0")
	assert.Contains(t, output, "Retention:     7 days")
	assert.Contains(t, output, "Daemon:        not running")
	assert.NotContains(t, output, "Oldest:")
}

func TestStatus_WithEvents(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	now := time.Now()
	seed(t, s, now.Add(-2*time.Hour), event.Signal{Kind: event.CodeBrowserStart})
	seed(t, s, now.Add(-time.Hour), event.Signal{Kind: event.CodeBookmarkCreate})
	seed(t, s, now, event.Signal{Kind: event.CodeBookmarkCreate})

	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev", Audit: 5}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	runID, err := s.store.RunID(context.Background())
	require.NoError(t, err)

	assert.Contains(t, output, "Run ID:        "+runID)
	assert.Contains(t, output, "Events:        3")
	assert.Contains(t, output, "Oldest:")
	assert.Contains(t, output, "Events by code:")
	assert.Contains(t, output, event.WeekLife.DisplayName(event.CodeBookmarkCreate))
}

func TestStatus_JSON(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	seed(t, s, time.UnixMilli(500), event.Signal{Kind: event.CodeBrowserStart})
	seed(t, s, time.UnixMilli(1000), event.Signal{Kind: event.CodeBrowserStart})
	seed(t, s, time.UnixMilli(2000), event.Signal{Kind: event.CodeBrowserStart})
	seed(t, s, time.UnixMilli(3000), event.Signal{Kind: event.CodeBrowserShutdown})
	n, err := s.store.Prune(context.Background(), time.UnixMilli(800))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	cmd := &StatusCommand{globals: &GlobalFlags{JSON: true}, version: "1.0.0", Audit: 5}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	var out statusJSON
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.Equal(t, "1.0.0", out.Version)
	assert.Equal(t, "week_life", out.Study)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, int64(3), out.TotalEvents)
	assert.Equal(t, "1970-01-01T00:00:01Z", out.OldestEvent)
	assert.Equal(t, "1970-01-01T00:00:03Z", out.NewestEvent)
	assert.Equal(t, 7, out.RetentionDays)
	assert.Equal(t, []codeCountJSON{
		{Code: int32(event.CodeBrowserStart), Name: "BROWSER_START", Count: 2},
		{Code: int32(event.CodeBrowserShutdown), Name: "BROWSER_SHUTDOWN", Count: 1},
	}, out.CodeCounts)
	require.Len(t, out.RecentAudit, 1)
	assert.Equal(t, "prune", out.RecentAudit[0].Action)
	assert.False(t, out.DaemonRunning)
}

func TestStatus_InjectedStore(t *testing.T) {
	s := newTestSession(t, event.Interface)
	cmd := &StatusCommand{globals: &GlobalFlags{JSON: true}, version: "dev", store: s.store}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	var out statusJSON
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.Equal(t, "interface", out.Study)
	assert.Equal(t, int64(0), out.TotalEvents)
}
