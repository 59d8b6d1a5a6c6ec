package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Status *StatusCommand
	Record *RecordCommand
	Events *EventsCommand
	Report *ReportCommand
	Prune  *PruneCommand
	Purge  *PurgeCommand
	Export *ExportCommand
	Ingest *IngestCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "testpilot"
	parser.LongDescription = "Local browser usage recorder and reporter for Test Pilot studies."

	cmds := &commands{
		Status: &StatusCommand{globals: &globals, version: version},
		Record: &RecordCommand{globals: &globals, version: version},
		Events: &EventsCommand{globals: &globals, version: version},
		Report: &ReportCommand{globals: &globals, version: version},
		Prune:  &PruneCommand{globals: &globals, version: version},
		Purge:  &PurgeCommand{globals: &globals, version: version},
		Export: &ExportCommand{globals: &globals, version: version},
		Ingest: &IngestCommand{globals: &globals, version: version},
	}

	parser.AddCommand("status", "Show study statistics", "Show the run id, row totals, time range and per-code counts of the study log.", cmds.Status)
	parser.AddCommand("record", "Append one event", "Append one event to the study log. The row is validated before it is written.", cmds.Record)
	parser.AddCommand("events", "List raw events", "List raw rows of the study log in timestamp order.", cmds.Events)
	parser.AddCommand("report", "Summarize the study", "Prune expired rows, then aggregate the study log into a report.", cmds.Report)
	parser.AddCommand("prune", "Apply retention pruning", "Delete rows older than the retention window.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL study data", "Delete ALL rows of the study. Destructive operation with safety prompt.", cmds.Purge)
	parser.AddCommand("export", "Export raw events", "Write the study log as zstd-compressed JSON lines.", cmds.Export)
	parser.AddCommand("ingest", "Start the testpilot daemon", "Start the local ingest daemon and run until interrupted.", cmds.Ingest)

	return parser, &globals, cmds
}

// Run is the main entry point for the testpilot CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("testpilot %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
