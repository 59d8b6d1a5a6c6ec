package cli

import (
	"context"
	"fmt"
	"time"
)

// pruneJSON is the JSON output structure for the prune command.
type pruneJSON struct {
	DryRun  bool   `json:"dry_run"`
	Cutoff  string `json:"cutoff"`
	Matched int64  `json:"matched"`
	Deleted int64  `json:"deleted"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	s, err := openSession(c.globals, c.store)
	if err != nil {
		return err
	}
	defer s.close()

	return c.executeWithSession(context.Background(), s)
}

func (c *PruneCommand) executeWithSession(ctx context.Context, s *session) error {
	window := s.cfg.Retention.Window()
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return err
		}
		window = d
	}
	cutoff := time.Now().Add(-window)

	matched, err := s.store.CountBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}

	jsonOut := c.globals != nil && c.globals.JSON
	out := pruneJSON{DryRun: c.DryRun, Cutoff: cutoff.UTC().Format(time.RFC3339), Matched: matched}

	if c.DryRun {
		if jsonOut {
			return printJSON(out)
		}
		fmt.Printf("[DRY RUN] Would prune %d events older than %s\n", matched, formatDurationHuman(window))
		return nil
	}

	if matched == 0 {
		if jsonOut {
			return printJSON(out)
		}
		fmt.Printf("Nothing to prune (retention %s)\n", formatDurationHuman(window))
		return nil
	}

	if !c.Force && !jsonOut {
		ok, err := confirm(c.in, fmt.Sprintf("Prune %d events older than %s? [y/N]: ", matched, formatDurationHuman(window)), "y")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	out.Deleted = deleted

	if jsonOut {
		return printJSON(out)
	}
	fmt.Printf("Pruned %d events older than %s\n", deleted, formatDurationHuman(window))
	return nil
}
