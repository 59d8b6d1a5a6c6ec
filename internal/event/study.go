// Package event defines the event codes of each study and decodes stored
// rows into typed payloads.
package event

import (
	"fmt"

	"github.com/runnerr0/testpilot/internal/storage"
)

// Study identifies which event-code table applies to a store.
type Study string

const (
	WeekLife  Study = "week_life"
	Interface Study = "interface"
)

// ParseStudy validates a study name.
func ParseStudy(s string) (Study, error) {
	switch Study(s) {
	case WeekLife, Interface:
		return Study(s), nil
	default:
		return "", fmt.Errorf("unknown study %q (want %q or %q)", s, WeekLife, Interface)
	}
}

// Schema returns the storage layout of the study.
func (s Study) Schema() storage.Schema {
	if s == Interface {
		return storage.InterfaceSchema
	}
	return storage.WeekLifeSchema
}

func (s Study) String() string { return string(s) }
