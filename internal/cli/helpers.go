package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/config"
	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/logging"
	"github.com/runnerr0/testpilot/internal/storage"
)

// session is the configuration, store and logger a command runs against.
type session struct {
	cfg    *config.Config
	study  event.Study
	store  *storage.SQLiteStore
	dbPath string
	logger *zap.Logger
	close  func()
}

// openSession loads config and opens the study store. An injected store is
// used as is, with default config and a no-op logger.
func openSession(globals *GlobalFlags, injected *storage.SQLiteStore) (*session, error) {
	if globals == nil {
		globals = &GlobalFlags{}
	}

	if injected != nil {
		study, err := event.ParseStudy(injected.Schema().Name)
		if err != nil {
			return nil, err
		}
		cfg := config.DefaultConfig()
		cfg.Study.Kind = study.String()
		return &session{
			cfg:    cfg,
			study:  study,
			store:  injected,
			dbPath: globals.DB,
			logger: zap.NewNop(),
			close:  func() {},
		}, nil
	}

	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}
	if globals.Study != "" {
		cfg.Study.Kind = globals.Study
	}
	study, err := event.ParseStudy(cfg.Study.Kind)
	if err != nil {
		return nil, err
	}

	dbPath := globals.DB
	if dbPath == "" {
		if dbPath, err = cfg.DBPath(); err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}

	if globals.Verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, db, err := storage.Open(dbPath, study.Schema(), cfg.Storage.SQLiteJournalMode)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &session{
		cfg:    cfg,
		study:  study,
		store:  store,
		dbPath: dbPath,
		logger: logger,
		close: func() {
			store.Close()
			db.Close()
			_ = logger.Sync()
		},
	}, nil
}

// loadConfig reads --config when given, otherwise the default config file,
// creating it with defaults on first run.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals.Config != "" {
		path, err := config.ExpandPath(globals.Config)
		if err != nil {
			return nil, err
		}
		return config.Load(path)
	}
	return config.LoadOrCreate()
}

// confirm prints prompt and reports whether the next input line equals want.
func confirm(in io.Reader, prompt, want string) (bool, error) {
	if in == nil {
		in = os.Stdin
	}
	fmt.Print(prompt)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false, fmt.Errorf("aborted: no input received")
	}
	return strings.TrimSpace(scanner.Text()) == want, nil
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// formatTime renders an event time in local time, or "-" when unset.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05.000")
}
