// Package aggregate replays a study log into an activity timeline, running
// counters and a ranked interaction frequency table.
package aggregate

import (
	"errors"
	"iter"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/storage"
)

// DefaultTopN is the frequency table length used when Options.TopN is unset.
const DefaultTopN = 15

// Pair identifies an (item, sub_item) interaction.
type Pair struct {
	Item    string
	SubItem string
}

// DefaultDenylist excludes raw text-selection churn in the URL bar.
func DefaultDenylist() []Pair {
	return []Pair{{Item: "urlbar", SubItem: "text selection"}}
}

// Options configures an Aggregator.
type Options struct {
	Denylist []Pair
	TopN     int
	// Concluded closes the final interval at the last event rather than at Now.
	Concluded bool
	Now       func() time.Time
	Logger    *zap.Logger
}

// Aggregator reduces an ordered event sequence into a Report. It keeps no
// state between calls and never writes to the store.
type Aggregator struct {
	study event.Study
	deny  map[Pair]bool
	topN  int
	conc  bool
	now   func() time.Time
	log   *zap.Logger
}

// New creates an Aggregator for a study. A nil Denylist selects
// DefaultDenylist; an empty non-nil one disables filtering.
func New(study event.Study, opts Options) *Aggregator {
	a := &Aggregator{
		study: study,
		deny:  make(map[Pair]bool),
		topN:  opts.TopN,
		conc:  opts.Concluded,
		now:   opts.Now,
		log:   opts.Logger,
	}
	denylist := opts.Denylist
	if denylist == nil {
		denylist = DefaultDenylist()
	}
	for _, p := range denylist {
		a.deny[p] = true
	}
	if a.topN <= 0 {
		a.topN = DefaultTopN
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	return a
}

// Aggregate consumes seq in a single forward pass. Malformed rows and
// unknown codes are skipped and counted; a read error from seq aborts the
// pass and is returned.
func (a *Aggregator) Aggregate(seq iter.Seq2[storage.Event, error]) (*Report, error) {
	r := newRun(a)
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		r.step(e)
	}
	return r.finish(), nil
}

// run holds the accumulators of one Aggregate call.
type run struct {
	a      *Aggregator
	report *Report

	started bool
	state   State
	since   time.Time
	last    time.Time

	freq      map[Pair]*FrequencyEntry
	freqOrder []Pair
	codes     map[event.Code]int
}

func newRun(a *Aggregator) *run {
	return &run{
		a: a,
		report: &Report{
			Study:       a.study,
			Timeline:    []Interval{},
			Counters:    make(map[string]*Counter),
			Frequencies: []FrequencyEntry{},
			CodeCounts:  []CodeCount{},
			Environment: Environment{
				Plugins:     make(map[string]string),
				Preferences: make(map[string]string),
				PeakMemory:  make(map[string]int64),
			},
		},
		freq:  make(map[Pair]*FrequencyEntry),
		codes: make(map[event.Code]int),
	}
}

func (r *run) step(e storage.Event) {
	if e.Timestamp.IsZero() {
		r.report.Malformed++
		r.a.log.Debug("skipping row without timestamp", zap.Int64("seq", e.Seq), zap.Int32("code", e.Code))
		return
	}

	p, err := event.Decode(r.a.study, e)
	switch {
	case errors.Is(err, event.ErrUnknownCode):
		r.report.Unknown++
		r.a.log.Debug("ignoring unknown event code", zap.Int64("seq", e.Seq), zap.Int32("code", e.Code))
		return
	case err != nil:
		r.report.Malformed++
		r.a.log.Debug("skipping malformed row", zap.Int64("seq", e.Seq), zap.Error(err))
		return
	}

	ts := e.Timestamp
	if !r.started {
		r.started = true
		r.state = Off
		r.since = ts
		r.report.First = ts
	}
	// Out-of-order input is clamped so intervals never run backwards.
	if ts.Before(r.since) {
		ts = r.since
	}
	if ts.After(r.last) {
		r.last = ts
	}
	r.report.Processed++
	r.codes[p.Code()]++

	r.apply(p, ts)
}

func (r *run) apply(p event.Payload, ts time.Time) {
	switch p := p.(type) {
	case event.Signal:
		switch p.Kind {
		case event.CodeBrowserStart:
			r.transition(Active, ts)
		case event.CodeBrowserShutdown:
			r.transition(Off, ts)
		case event.CodeBookmarkCreate:
			r.add(Bookmarks, 1, ts)
		case event.CodeAddonInstall:
			r.add(Addons, 1, ts)
		case event.CodeAddonUninstall:
			r.add(Addons, -1, ts)
		case event.CodeDownload:
			r.add(Downloads, 1, ts)
		}
	case event.Activate:
		r.transition(Active, ts)
	case event.Inactive:
		r.transition(Idle, ts)
	case event.BookmarkStatus:
		r.set(Bookmarks, p.Bookmarks, ts)
		r.set(Folders, p.Folders, ts)
		r.set(Depth, p.Depth, ts)
	case event.BookmarkModify:
		if p.Kind == event.BookmarkRemoved {
			r.add(Bookmarks, -1, ts)
		}
	case event.AddonStatus:
		r.set(Addons, p.Active+p.Inactive, ts)
	case event.SessionOnRestore:
		r.report.Session.Windows = p.Windows
		r.report.Session.Tabs = p.Tabs
	case event.SessionRestore:
		r.report.Session.RestoredTabs += p.Tabs
	case event.StudyStatus:
		r.report.Environment.StudyVersion = p.Version
	case event.HistoryStatus:
		r.report.Environment.HistoryPlaces = p.Places
	case event.ProfileAge:
		if !p.OldestModified.IsZero() {
			age := p.OldestModified
			r.report.Environment.ProfileAge = &age
		}
	case event.PluginVersion:
		r.report.Environment.Plugins[p.File] = p.Version
	case event.SessionPreference:
		r.report.Environment.Preferences[p.Name] = p.Value
	case event.MemoryUsage:
		if p.Bytes > r.report.Environment.PeakMemory[p.Path] {
			r.report.Environment.PeakMemory[p.Path] = p.Bytes
		}
	case event.Interaction:
		r.interaction(p, ts)
	}
}

func (r *run) interaction(p event.Interaction, ts time.Time) {
	switch p.Kind {
	case event.CodeMetadata:
		if p.Item == "app" && p.SubItem == "" {
			switch p.Interaction {
			case "startup":
				r.transition(Active, ts)
			case "shutdown":
				r.transition(Off, ts)
			}
		}
	case event.CodeAction:
		key := Pair{Item: p.Item, SubItem: p.SubItem}
		if r.a.deny[key] {
			return
		}
		entry, ok := r.freq[key]
		if !ok {
			entry = &FrequencyEntry{Item: p.Item, SubItem: p.SubItem}
			r.freq[key] = entry
			r.freqOrder = append(r.freqOrder, key)
		}
		entry.Count++
	}
}

// transition closes the open interval at ts and opens one in next. A
// transition into the current state leaves the interval open.
func (r *run) transition(next State, ts time.Time) {
	if next == r.state {
		return
	}
	r.close(ts)
	r.state = next
	r.since = ts
}

func (r *run) close(ts time.Time) {
	d := ts.Sub(r.since)
	if d <= 0 {
		return
	}
	r.report.Timeline = append(r.report.Timeline, Interval{State: r.state, Start: r.since, End: ts})
	switch r.state {
	case Active:
		r.report.Totals.Active += d
	case Idle:
		r.report.Totals.Idle += d
	default:
		r.report.Totals.Off += d
	}
}

func (r *run) counter(name string, initial int) *Counter {
	c, ok := r.report.Counters[name]
	if !ok {
		c = &Counter{First: initial, Current: initial, Max: initial}
		r.report.Counters[name] = c
	}
	return c
}

func (r *run) set(name string, v int, ts time.Time) {
	c := r.counter(name, v)
	r.record(c, v, ts)
}

// add moves a counter by delta, never below zero. A counter first touched
// by a delta starts from zero.
func (r *run) add(name string, delta int, ts time.Time) {
	c := r.counter(name, 0)
	r.record(c, max(c.Current+delta, 0), ts)
}

func (r *run) record(c *Counter, v int, ts time.Time) {
	if len(c.Series) == 0 {
		c.First = v
	}
	c.Current = v
	if v > c.Max {
		c.Max = v
	}
	c.Series = append(c.Series, Point{At: ts, Value: v})
}

// finish synthesizes the closing marker and ranks the frequency table.
func (r *run) finish() *Report {
	rep := r.report

	if r.started {
		end := r.last
		if !r.a.conc {
			if now := r.a.now(); now.After(end) {
				end = now
			}
		}
		r.close(end)
		rep.End = end

		for _, c := range rep.Counters {
			if n := len(c.Series); n > 0 && c.Series[n-1].At.Before(end) {
				c.Series = append(c.Series, Point{At: end, Value: c.Current})
			}
		}
	}

	entries := make([]FrequencyEntry, 0, len(r.freqOrder))
	for _, key := range r.freqOrder {
		entries = append(entries, *r.freq[key])
	}
	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	rep.DistinctPairs = len(entries)
	if len(entries) > r.a.topN {
		entries = entries[:r.a.topN]
	}
	rep.Frequencies = entries

	for _, code := range r.a.study.Codes() {
		if n := r.codes[code]; n > 0 {
			rep.CodeCounts = append(rep.CodeCounts, CodeCount{
				Code:    code,
				Name:    r.a.study.Name(code),
				Display: r.a.study.DisplayName(code),
				Count:   n,
			})
		}
	}

	return rep
}
