package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/testpilot/internal/config"
	"github.com/runnerr0/testpilot/internal/export"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	s, err := openSession(c.globals, c.store)
	if err != nil {
		return err
	}
	defer s.close()

	return c.executeWithSession(context.Background(), s)
}

func (c *ExportCommand) executeWithSession(ctx context.Context, s *session) error {
	path, err := config.ExpandPath(c.Out)
	if err != nil {
		return err
	}

	n, err := export.WriteFile(ctx, path, s.study, s.store.Scan(ctx, time.Time{}))
	if err != nil {
		return fmt.Errorf("export %s: %w", s.study, err)
	}

	if c.Verify {
		events, err := export.ReadFile(path, s.study)
		if err != nil {
			return fmt.Errorf("verify export: %w", err)
		}
		if len(events) != n {
			return fmt.Errorf("verify export: wrote %d rows, read back %d", n, len(events))
		}
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]any{
			"study":    s.study.String(),
			"path":     path,
			"rows":     n,
			"verified": c.Verify,
		})
	}

	fmt.Printf("Exported %d %s events to %s\n", n, s.study, path)
	if c.Verify {
		fmt.Println("Verified: export reads back cleanly.")
	}
	return nil
}
