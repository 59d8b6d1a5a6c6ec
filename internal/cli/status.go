package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string          `json:"version"`
	Study             string          `json:"study"`
	RunID             string          `json:"run_id"`
	DatabasePath      string          `json:"database_path,omitempty"`
	DatabaseSizeBytes int64           `json:"database_size_bytes"`
	TotalEvents       int64           `json:"total_events"`
	OldestEvent       string          `json:"oldest_event,omitempty"`
	NewestEvent       string          `json:"newest_event,omitempty"`
	RetentionDays     int             `json:"retention_days"`
	CodeCounts        []codeCountJSON `json:"code_counts"`
	RecentAudit       []auditJSON     `json:"recent_audit"`
	DaemonRunning     bool            `json:"daemon_running"`
}

type codeCountJSON struct {
	Code  int32  `json:"code"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type auditJSON struct {
	Action string `json:"action"`
	Detail string `json:"detail"`
	At     string `json:"at"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	s, err := openSession(c.globals, c.store)
	if err != nil {
		return err
	}
	defer s.close()

	return c.executeWithSession(context.Background(), s)
}

func (c *StatusCommand) executeWithSession(ctx context.Context, s *session) error {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	runID, err := s.store.RunID(ctx)
	if err != nil {
		return err
	}
	audit, err := s.store.RecentAudit(ctx, c.Audit)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.Daemon.Host, strconv.Itoa(s.cfg.Daemon.Port))
	daemonRunning := checkDaemon(addr)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(s, runID, stats, audit, daemonRunning)
	}
	return c.printStatusHuman(s, runID, stats, audit, daemonRunning)
}

func (c *StatusCommand) printStatusHuman(s *session, runID string, stats *storage.Stats, audit []storage.AuditEntry, daemonRunning bool) error {
	fmt.Println("Test Pilot Status")
	fmt.Println("=================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Study:         %s\n", s.study)
	fmt.Printf("Run ID:        %s\n", runID)
	if s.dbPath != "" {
		fmt.Printf("Database:      %s (%s)\n", s.dbPath, formatBytes(stats.DatabaseSizeBytes))
	} else {
		fmt.Printf("Database:      %s\n", formatBytes(stats.DatabaseSizeBytes))
	}
	fmt.Printf("Events:        %s\n", formatNumber(stats.TotalEvents))

	if stats.TotalEvents > 0 {
		fmt.Printf("Oldest:        %s\n", formatTime(stats.OldestEvent))
		fmt.Printf("Newest:        %s\n", formatTime(stats.NewestEvent))
	}

	fmt.Printf("Retention:     %d days\n", s.cfg.Retention.Days)

	if len(stats.CodeCounts) > 0 {
		fmt.Println()
		fmt.Println("Events by code:")
		for _, cc := range stats.CodeCounts {
			fmt.Printf("  %-28s %s\n", s.study.DisplayName(event.Code(cc.Code)), formatNumber(cc.Count))
		}
	}

	if len(audit) > 0 {
		fmt.Println()
		fmt.Println("Recent maintenance:")
		for _, a := range audit {
			fmt.Printf("  %s  %-6s %s\n", a.At.Local().Format("2006-01-02 15:04"), a.Action, a.Detail)
		}
	}

	fmt.Println()
	if daemonRunning {
		fmt.Println("Daemon:        running")
	} else {
		fmt.Println("Daemon:        not running")
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(s *session, runID string, stats *storage.Stats, audit []storage.AuditEntry, daemonRunning bool) error {
	out := statusJSON{
		Version:           c.version,
		Study:             s.study.String(),
		RunID:             runID,
		DatabasePath:      s.dbPath,
		DatabaseSizeBytes: stats.DatabaseSizeBytes,
		TotalEvents:       stats.TotalEvents,
		RetentionDays:     s.cfg.Retention.Days,
		CodeCounts:        make([]codeCountJSON, len(stats.CodeCounts)),
		RecentAudit:       make([]auditJSON, len(audit)),
		DaemonRunning:     daemonRunning,
	}

	if stats.TotalEvents > 0 {
		if !stats.OldestEvent.IsZero() {
			out.OldestEvent = stats.OldestEvent.UTC().Format(time.RFC3339Nano)
		}
		if !stats.NewestEvent.IsZero() {
			out.NewestEvent = stats.NewestEvent.UTC().Format(time.RFC3339Nano)
		}
	}

	for i, cc := range stats.CodeCounts {
		out.CodeCounts[i] = codeCountJSON{Code: cc.Code, Name: s.study.Name(event.Code(cc.Code)), Count: cc.Count}
	}
	for i, a := range audit {
		out.RecentAudit[i] = auditJSON{Action: a.Action, Detail: a.Detail, At: a.At.UTC().Format(time.RFC3339)}
	}

	return printJSON(out)
}

// checkDaemon attempts an HTTP GET to the daemon health endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(addr string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
