package cli

import (
	"context"
	"fmt"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	s, err := openSession(c.globals, c.store)
	if err != nil {
		return err
	}
	defer s.close()

	return c.executeWithSession(context.Background(), s)
}

func (c *PurgeCommand) executeWithSession(ctx context.Context, s *session) error {
	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Printf("⚠ WARNING: This will permanently delete ALL %s study data.\n", s.study)
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()

		ok, err := confirm(c.in, `Type "PURGE" to confirm: `, "PURGE")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	if err := s.store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]any{
			"purged":  true,
			"study":   s.study.String(),
			"message": "all data deleted",
		})
	}

	fmt.Printf("Purged all %s data. The study log is empty.\n", s.study)
	return nil
}
