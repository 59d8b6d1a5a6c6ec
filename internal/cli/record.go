package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/storage"
)

// recordJSON is the JSON output structure for the record command.
type recordJSON struct {
	Seq       int64  `json:"seq"`
	Code      int32  `json:"code"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// Execute implements the go-flags Commander interface for RecordCommand.
func (c *RecordCommand) Execute(args []string) error {
	s, err := openSession(c.globals, c.store)
	if err != nil {
		return err
	}
	defer s.close()

	return c.executeWithSession(context.Background(), s)
}

func (c *RecordCommand) executeWithSession(ctx context.Context, s *session) error {
	code, err := s.study.ParseCode(c.Code)
	if err != nil {
		return err
	}

	e := storage.Event{Code: int32(code), Data1: c.Data1, Data2: c.Data2, Data3: c.Data3}
	if _, err := event.Decode(s.study, e); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	if err := s.store.Append(ctx, &e); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	s.logger.Debug("recorded event from command line")

	if c.globals != nil && c.globals.JSON {
		return printJSON(recordJSON{
			Seq:       e.Seq,
			Code:      e.Code,
			Name:      s.study.Name(code),
			Timestamp: e.Timestamp.UnixMilli(),
		})
	}

	fmt.Printf("Recorded %s (seq %d) at %s\n", s.study.Name(code), e.Seq, formatTime(e.Timestamp))
	return nil
}
