package cli

import (
	"io"

	"github.com/runnerr0/testpilot/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DB      string `long:"db" description:"Path to the SQLite database (overrides config)"`
	Study   string `long:"study" description:"Study to operate on" choice:"week_life" choice:"interface"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// StatusCommand shows the run id, row totals, time range and per-code counts.
type StatusCommand struct {
	Audit int `long:"audit" description:"Number of recent audit entries to show" default:"5"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore // injectable for testing; nil means open from config
}

// RecordCommand appends one event by hand.
type RecordCommand struct {
	Code  string `long:"code" description:"Event code, numeric or by name (required)" required:"true"`
	Data1 string `long:"data1" description:"First data field"`
	Data2 string `long:"data2" description:"Second data field"`
	Data3 string `long:"data3" description:"Third data field"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// EventsCommand lists raw rows in timestamp order.
type EventsCommand struct {
	Since string `long:"since" description:"Only events newer than duration (e.g., 7d, 24h, 2w)" default:"7d"`
	Limit int    `long:"limit" description:"Maximum rows (0 for all)" default:"50"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// ReportCommand prunes, then aggregates the study log.
type ReportCommand struct {
	Concluded bool `long:"concluded" description:"Close the final interval at the last event"`
	Top       int  `long:"top" description:"Frequency table length (overrides config)"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// PruneCommand applies the retention window.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 7d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`
	Force     bool   `long:"force" description:"Skip confirmation prompt"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	in      io.Reader // confirmation input; nil means stdin
}

// PurgeCommand deletes every row of the study after confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	in      io.Reader
}

// ExportCommand writes the raw study log as compressed JSON lines.
type ExportCommand struct {
	Out    string `long:"out" description:"Output file (e.g., week_life.jsonl.zst)" required:"true"`
	Verify bool   `long:"verify" description:"Read the file back and compare row counts"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// IngestCommand runs the local ingest daemon until interrupted.
type IngestCommand struct {
	Port      int  `long:"port" description:"Override daemon port"`
	Heartbeat bool `long:"heartbeat" description:"Force the activity heartbeat on (week_life only)"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}
