package aggregate

import (
	"encoding/json"
	"time"

	"github.com/runnerr0/testpilot/internal/event"
)

// State is a browser activity state.
type State int

const (
	Off State = iota
	Idle
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Active:
		return "ACTIVE"
	default:
		return "OFF"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Interval is one closed piece of the activity timeline, [Start, End).
type Interval struct {
	State State     `json:"state"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Totals sums closed interval lengths per state.
type Totals struct {
	Active time.Duration
	Idle   time.Duration
	Off    time.Duration
}

// Span returns the sum of all three states.
func (t Totals) Span() time.Duration {
	return t.Active + t.Idle + t.Off
}

func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ActiveMs int64 `json:"active_ms"`
		IdleMs   int64 `json:"idle_ms"`
		OffMs    int64 `json:"off_ms"`
	}{t.Active.Milliseconds(), t.Idle.Milliseconds(), t.Off.Milliseconds()})
}

// Point is one [timestamp, value] sample of a counter.
type Point struct {
	At    time.Time `json:"at"`
	Value int       `json:"value"`
}

// Counter tracks a non-negative running count.
type Counter struct {
	First   int     `json:"first"`
	Current int     `json:"current"`
	Max     int     `json:"max"`
	Series  []Point `json:"series"`
}

// Counter names.
const (
	Bookmarks = "bookmarks"
	Folders   = "folders"
	Depth     = "depth"
	Addons    = "addons"
	Downloads = "downloads"
)

// FrequencyEntry counts ACTION events for one (item, sub_item) pair.
type FrequencyEntry struct {
	Item    string `json:"item"`
	SubItem string `json:"sub_item"`
	Count   int    `json:"count"`
}

// Session summarizes session-restore activity.
type Session struct {
	Windows      int `json:"windows"`
	Tabs         int `json:"tabs"`
	RestoredTabs int `json:"restored_tabs"`
}

// Environment is the latest snapshot of profile facts.
type Environment struct {
	StudyVersion  int               `json:"study_version"`
	HistoryPlaces int               `json:"history_places"`
	ProfileAge    *time.Time        `json:"profile_age,omitempty"`
	Plugins       map[string]string `json:"plugins"`
	Preferences   map[string]string `json:"preferences"`
	PeakMemory    map[string]int64  `json:"peak_memory"`
}

// CodeCount is the number of processed events with one code.
type CodeCount struct {
	Code    event.Code `json:"code"`
	Name    string     `json:"name"`
	Display string     `json:"display"`
	Count   int        `json:"count"`
}

// Report is the aggregate state built by one pass over a study log.
// DistinctPairs counts non-denied pairs before truncation to the top N.
type Report struct {
	Study         event.Study         `json:"study"`
	First         time.Time           `json:"first"`
	End           time.Time           `json:"end"`
	Timeline      []Interval          `json:"timeline"`
	Totals        Totals              `json:"totals"`
	Counters      map[string]*Counter `json:"counters"`
	Frequencies   []FrequencyEntry    `json:"frequencies"`
	DistinctPairs int                 `json:"distinct_pairs"`
	Session       Session             `json:"session"`
	Environment   Environment         `json:"environment"`
	CodeCounts    []CodeCount         `json:"code_counts"`
	Processed     int                 `json:"processed"`
	Malformed     int                 `json:"malformed"`
	Unknown       int                 `json:"unknown"`
}
