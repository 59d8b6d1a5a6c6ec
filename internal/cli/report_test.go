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

func seedInterfaceSession(t *testing.T) *session {
	t.Helper()
	s := newTestSession(t, event.Interface)
	base := time.Now().Add(-time.Hour)
	seed(t, s, base, event.Interaction{Kind: event.CodeMetadata, Item: "app", Interaction: "startup"})
	for i, pair := range [][2]string{
		{"urlbar", "url"}, {"star-button", ""}, {"urlbar", "url"}, {"urlbar", "text selection"},
		{"star-button", ""}, {"urlbar", "url"},
	} {
		seed(t, s, base.Add(time.Duration(i+1)*time.Minute),
			event.Interaction{Kind: event.CodeAction, Item: pair[0], SubItem: pair[1], Interaction: "click"})
	}
	seed(t, s, base.Add(10*time.Minute), event.Interaction{Kind: event.CodeMetadata, Item: "app", Interaction: "shutdown"})
	return s
}

func TestReport_JSON(t *testing.T) {
	s := seedInterfaceSession(t)
	cmd := &ReportCommand{globals: &GlobalFlags{JSON: true}, Concluded: true}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	var out struct {
		RunID  string `json:"run_id"`
		Study  string `json:"study"`
		Totals struct {
			ActiveMs int64 `json:"active_ms"`
		} `json:"totals"`
		Frequencies []struct {
			Item    string `json:"item"`
			SubItem string `json:"sub_item"`
			Count   int    `json:"count"`
		} `json:"frequencies"`
		Processed int `json:"processed"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "interface", out.Study)
	assert.Equal(t, 8, out.Processed)
	assert.Equal(t, int64(10*time.Minute/time.Millisecond), out.Totals.ActiveMs)
	require.Len(t, out.Frequencies, 2)
	assert.Equal(t, "urlbar", out.Frequencies[0].Item)
	assert.Equal(t, 3, out.Frequencies[0].Count)
	assert.Equal(t, "star-button", out.Frequencies[1].Item)
	assert.Equal(t, 2, out.Frequencies[1].Count)
}

func TestReport_TopOverride(t *testing.T) {
	s := seedInterfaceSession(t)
	cmd := &ReportCommand{globals: &GlobalFlags{}, Concluded: true, Top: 1}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "Top interactions (1 of 2):")
	assert.Contains(t, output, "urlbar / url")
	assert.NotContains(t, output, "star-button")
}

func TestReport_Human(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	base := time.Now().Add(-time.Hour)
	seed(t, s, base, event.Signal{Kind: event.CodeBrowserStart})
	seed(t, s, base.Add(5*time.Second), event.BookmarkStatus{Bookmarks: 4, Folders: 1, Depth: 1})
	seed(t, s, base.Add(10*time.Second), event.Signal{Kind: event.CodeBrowserShutdown})

	cmd := &ReportCommand{globals: &GlobalFlags{}, Concluded: true}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "Test Pilot Report (week_life)")
	assert.Contains(t, output, "3 processed")
	assert.Contains(t, output, "ACTIVE")
	assert.Contains(t, output, "10s")
	assert.Contains(t, output, "bookmarks")
	assert.Contains(t, output, "Firefox Startup")
}

func TestReport_PrunesExpired(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	seed(t, s, time.Now().Add(-30*24*time.Hour), event.Signal{Kind: event.CodeBrowserStart})

	cmd := &ReportCommand{globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "Pruned:        1 events")
	assert.Contains(t, output, "No events recorded.")
	assert.Equal(t, int64(0), count(t, s))
}

func TestReport_NegativeTop(t *testing.T) {
	s := newTestSession(t, event.WeekLife)
	cmd := &ReportCommand{globals: &GlobalFlags{}, Top: -1}
	assert.Error(t, cmd.executeWithSession(context.Background(), s))
}
