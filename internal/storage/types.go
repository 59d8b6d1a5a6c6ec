package storage

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds surfaced by the store. Callers match them with errors.Is.
var (
	ErrStoreWrite = errors.New("store write failure")
	ErrStoreRead  = errors.New("store read failure")
)

// Event is one immutable, timestamped row of a study log. The meaning of
// Code and the three data fields depends on the study that wrote it.
type Event struct {
	Seq       int64 // insertion order, assigned by Append
	Code      int32
	Data1     string
	Data2     string
	Data3     string
	Timestamp time.Time // millisecond precision; zero when the row has none
}

// Schema maps the generic Event onto one study's table and column names.
type Schema struct {
	Name        string
	Table       string
	CodeColumn  string
	DataColumns [3]string
}

// Study schemas. Both share the generic layout with renamed columns.
var (
	WeekLifeSchema = Schema{
		Name:        "week_life",
		Table:       "week_in_the_life",
		CodeColumn:  "event_code",
		DataColumns: [3]string{"data1", "data2", "data3"},
	}
	InterfaceSchema = Schema{
		Name:        "interface",
		Table:       "combined_beta_study_results",
		CodeColumn:  "event",
		DataColumns: [3]string{"item", "sub_item", "interaction_type"},
	}
)

// SchemaFor returns the schema registered under a study name.
func SchemaFor(name string) (Schema, error) {
	switch name {
	case WeekLifeSchema.Name:
		return WeekLifeSchema, nil
	case InterfaceSchema.Name:
		return InterfaceSchema, nil
	default:
		return Schema{}, fmt.Errorf("unknown study %q", name)
	}
}

// Stats holds aggregate statistics about one study table.
type Stats struct {
	TotalEvents       int64
	OldestEvent       time.Time
	NewestEvent       time.Time
	DatabaseSizeBytes int64
	CodeCounts        []CodeCount
}

// CodeCount pairs an event code with its row count.
type CodeCount struct {
	Code  int32
	Count int64
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	Action string
	Study  string
	Detail string
	At     time.Time
}
