package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/storage"
)

// eventJSON is one row of events --json output, keyed by the study's
// column names.
type eventJSON map[string]any

// Execute implements the go-flags Commander interface for EventsCommand.
func (c *EventsCommand) Execute(args []string) error {
	s, err := openSession(c.globals, c.store)
	if err != nil {
		return err
	}
	defer s.close()

	return c.executeWithSession(context.Background(), s)
}

func (c *EventsCommand) executeWithSession(ctx context.Context, s *session) error {
	var since time.Time
	if c.Since != "" && c.Since != "all" {
		d, err := parseDuration(c.Since)
		if err != nil {
			return err
		}
		since = time.Now().Add(-d)
	}

	// Keep the newest Limit rows of the window.
	var rows []storage.Event
	for e, err := range s.store.Scan(ctx, since) {
		if err != nil {
			return fmt.Errorf("read events: %w", err)
		}
		rows = append(rows, e)
		if c.Limit > 0 && len(rows) > c.Limit {
			rows = rows[1:]
		}
	}

	if c.globals != nil && c.globals.JSON {
		schema := s.study.Schema()
		out := make([]eventJSON, 0, len(rows))
		for _, e := range rows {
			row := eventJSON{
				"seq":                 e.Seq,
				"name":                s.study.Name(event.Code(e.Code)),
				schema.CodeColumn:     e.Code,
				schema.DataColumns[0]: e.Data1,
				schema.DataColumns[1]: e.Data2,
				schema.DataColumns[2]: e.Data3,
				"timestamp":           nil,
			}
			if !e.Timestamp.IsZero() {
				row["timestamp"] = e.Timestamp.UnixMilli()
			}
			out = append(out, row)
		}
		return printJSON(out)
	}

	if len(rows) == 0 {
		fmt.Println("No events.")
		return nil
	}

	for _, e := range rows {
		fmt.Printf("%6d  %s  %-28s %q %q %q\n",
			e.Seq, formatTime(e.Timestamp), s.study.Name(event.Code(e.Code)), e.Data1, e.Data2, e.Data3)
	}
	fmt.Printf("\n%d events\n", len(rows))
	return nil
}
