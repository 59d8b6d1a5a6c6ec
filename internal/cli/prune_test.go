package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/testpilot/internal/event"
)

// setupPruneTest seeds old events (10 days ago) and recent ones (1 hour
// ago) and returns a session and a PruneCommand.
func setupPruneTest(t *testing.T, oldCount, recentCount int) (*PruneCommand, *session) {
	t.Helper()
	s := newTestSession(t, event.WeekLife)
	now := time.Now()

	for i := 0; i < oldCount; i++ {
		seed(t, s, now.Add(-10*24*time.Hour), event.HistoryStatus{Places: i})
	}
	for i := 0; i < recentCount; i++ {
		seed(t, s, now.Add(-1*time.Hour), event.HistoryStatus{Places: i})
	}

	return &PruneCommand{globals: &GlobalFlags{}, version: "test"}, s
}

func TestPrune_DefaultRetention(t *testing.T) {
	cmd, s := setupPruneTest(t, 5, 3)
	cmd.Force = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "Pruned 5 events older than 7 days")
	assert.Equal(t, int64(3), count(t, s))
}

func TestPrune_CustomOlderThan(t *testing.T) {
	cmd, s := setupPruneTest(t, 5, 3)
	cmd.OlderThan = "30m"
	cmd.Force = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "Pruned 8 events")
	assert.Equal(t, int64(0), count(t, s))
}

func TestPrune_DryRun(t *testing.T) {
	cmd, s := setupPruneTest(t, 5, 3)
	cmd.DryRun = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "[DRY RUN]")
	assert.Contains(t, output, "5 events")
	assert.Equal(t, int64(8), count(t, s))
}

func TestPrune_ConfirmYes(t *testing.T) {
	cmd, s := setupPruneTest(t, 2, 1)
	cmd.in = strings.NewReader("y\n")

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "[y/N]")
	assert.Contains(t, output, "Pruned 2 events")
	assert.Equal(t, int64(1), count(t, s))
}

func TestPrune_ConfirmNo(t *testing.T) {
	cmd, s := setupPruneTest(t, 2, 1)
	cmd.in = strings.NewReader("\n")

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "Aborted.")
	assert.Equal(t, int64(3), count(t, s))
}

func TestPrune_NothingToPrune(t *testing.T) {
	cmd, s := setupPruneTest(t, 0, 2)

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	assert.Contains(t, output, "Nothing to prune")
	assert.Equal(t, int64(2), count(t, s))
}

func TestPrune_JSON(t *testing.T) {
	cmd, s := setupPruneTest(t, 4, 1)
	cmd.globals.JSON = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(context.Background(), s))
	})

	var out pruneJSON
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.False(t, out.DryRun)
	assert.Equal(t, int64(4), out.Matched)
	assert.Equal(t, int64(4), out.Deleted)
}

func TestPrune_InvalidOlderThan(t *testing.T) {
	cmd, s := setupPruneTest(t, 1, 0)
	cmd.OlderThan = "forever"
	assert.Error(t, cmd.executeWithSession(context.Background(), s))
}
