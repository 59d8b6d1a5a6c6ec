package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/config"
	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestSession opens a file-backed store for study in a temp dir. The
// daemon port is 0 so nothing probes a real listener.
func newTestSession(t *testing.T, study event.Study) *session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testpilot.db")
	store, db, err := storage.Open(path, study.Schema(), "wal")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})

	cfg := config.DefaultConfig()
	cfg.Study.Kind = study.String()
	cfg.Daemon.Port = 0

	return &session{
		cfg:    cfg,
		study:  study,
		store:  store,
		dbPath: path,
		logger: zap.NewNop(),
		close:  func() {},
	}
}

func seed(t *testing.T, s *session, ts time.Time, p event.Payload) {
	t.Helper()
	e := event.Encode(p)
	e.Timestamp = ts
	require.NoError(t, s.store.Append(context.Background(), &e))
}

func count(t *testing.T, s *session) int64 {
	t.Helper()
	stats, err := s.store.Stats(context.Background())
	require.NoError(t, err)
	return stats.TotalEvents
}
