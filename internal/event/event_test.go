package event

import (
	"errors"
	"testing"
	"time"

	"github.com/runnerr0/testpilot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStudy(t *testing.T) {
	s, err := ParseStudy("week_life")
	require.NoError(t, err)
	assert.Equal(t, WeekLife, s)
	assert.Equal(t, storage.WeekLifeSchema, s.Schema())

	s, err = ParseStudy("interface")
	require.NoError(t, err)
	assert.Equal(t, storage.InterfaceSchema, s.Schema())

	_, err = ParseStudy("toolbar")
	assert.Error(t, err)
}

func TestCodeNames(t *testing.T) {
	assert.Len(t, WeekLife.Codes(), 26)
	assert.Len(t, Interface.Codes(), 4)

	assert.Equal(t, "BROWSER_START", WeekLife.Name(CodeBrowserStart))
	assert.Equal(t, "Firefox Startup", WeekLife.DisplayName(CodeBrowserStart))
	assert.Equal(t, "SESSION_RESTORE_PREFERENCES", WeekLife.Name(CodeSessionRestorePreferences))
	assert.Equal(t, "ACTION", Interface.Name(CodeAction))
	assert.Equal(t, "UNKNOWN(99)", WeekLife.Name(99))
	assert.Equal(t, "Unknown (4)", Interface.DisplayName(4))
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		study Study
		in    string
		want  Code
		err   bool
	}{
		{WeekLife, "1", CodeBrowserStart, false},
		{WeekLife, "browser_start", CodeBrowserStart, false},
		{WeekLife, "BOOKMARK_MODIFY", CodeBookmarkModify, false},
		{WeekLife, "26", 0, true},
		{WeekLife, "-1", 0, true},
		{WeekLife, "ACTION", 0, true},
		{Interface, "action", CodeAction, false},
		{Interface, "3", CodeCustomize, false},
		{Interface, "4", 0, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.study)+"/"+tt.in, func(t *testing.T) {
			got, err := tt.study.ParseCode(tt.in)
			if tt.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownCode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeWeekLife(t *testing.T) {
	tests := []struct {
		name string
		row  storage.Event
		want Payload
	}{
		{"start", storage.Event{Code: 1}, Signal{Kind: CodeBrowserStart}},
		{"study status", storage.Event{Code: 0, Data1: "3"}, StudyStatus{Version: 3}},
		{"activate user", storage.Event{Code: 4}, Activate{Reason: ReasonUser}},
		{"inactive missed ping", storage.Event{Code: 5, Data1: "1", Data2: "0", Data3: "0"}, Inactive{Reason: ReasonMissedPing}},
		{"inactive idle service", storage.Event{Code: 5, Data1: "2"}, Inactive{Reason: ReasonIdleService}},
		{"bookmark status", storage.Event{Code: 8, Data1: "120", Data2: "7", Data3: "3"}, BookmarkStatus{Bookmarks: 120, Folders: 7, Depth: 3}},
		{"bookmark status empty as zero", storage.Event{Code: 8, Data1: "5"}, BookmarkStatus{Bookmarks: 5}},
		{"bookmark removed", storage.Event{Code: 11, Data1: "1"}, BookmarkModify{Kind: BookmarkRemoved}},
		{"bookmark changed empty", storage.Event{Code: 11}, BookmarkModify{Kind: BookmarkChanged}},
		{"addon status", storage.Event{Code: 14, Data1: "4", Data2: "2"}, AddonStatus{Active: 4, Inactive: 2}},
		{"memory", storage.Event{Code: 19, Data1: "explicit/js", Data2: "1048576"}, MemoryUsage{Path: "explicit/js", Bytes: 1048576}},
		{"session on restore", storage.Event{Code: 20, Data1: "Windows 2", Data2: "Tabs 9"}, SessionOnRestore{Windows: 2, Tabs: 9}},
		{"session restore", storage.Event{Code: 21, Data1: "Windows", Data2: "Tabs 4"}, SessionRestore{Tabs: 4}},
		{"plugin", storage.Event{Code: 22, Data1: "libflash.so", Data2: "10.1"}, PluginVersion{File: "libflash.so", Version: "10.1"}},
		{"history", storage.Event{Code: 23, Data1: "4500"}, HistoryStatus{Places: 4500}},
		{"profile age", storage.Event{Code: 24, Data1: "1262304000000"}, ProfileAge{OldestModified: time.UnixMilli(1262304000000)}},
		{"preference", storage.Event{Code: 25, Data1: "browser.startup.page", Data2: "3"}, SessionPreference{Name: "browser.startup.page", Value: "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(WeekLife, tt.row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, Code(tt.row.Code), got.Code())
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	rows := []storage.Event{
		{Code: 8, Data1: "many"},
		{Code: 8, Data1: "-3"},
		{Code: 11, Data1: "7"},
		{Code: 5, Data1: "9"},
		{Code: 14, Data2: "x"},
		{Code: 20, Data1: "2", Data2: "Tabs 1"},
		{Code: 21, Data2: "Tabs lots"},
		{Code: 24, Data1: "yesterday"},
		{Code: 25},
	}
	for _, row := range rows {
		_, err := Decode(WeekLife, row)
		require.Error(t, err, "code %d %q", row.Code, row.Data1)
		assert.True(t, errors.Is(err, ErrMalformed))
	}
}

func TestDecodeUnknownCode(t *testing.T) {
	_, err := Decode(WeekLife, storage.Event{Code: 42})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCode))

	_, err = Decode(Interface, storage.Event{Code: 4})
	assert.True(t, errors.Is(err, ErrUnknownCode))

	_, err = Decode(WeekLife, storage.Event{Code: -1})
	assert.True(t, errors.Is(err, ErrUnknownCode))
}

func TestDecodeInterface(t *testing.T) {
	got, err := Decode(Interface, storage.Event{Code: 1, Data1: "urlbar", Data2: "url", Data3: "enter"})
	require.NoError(t, err)
	assert.Equal(t, Interaction{Kind: CodeAction, Item: "urlbar", SubItem: "url", Interaction: "enter"}, got)

	got, err = Decode(Interface, storage.Event{Code: 0, Data1: "app", Data3: "startup"})
	require.NoError(t, err)
	assert.Equal(t, CodeMetadata, got.Code())
}

func TestEncodeDecode(t *testing.T) {
	payloads := []Payload{
		Signal{Kind: CodeDownload},
		StudyStatus{Version: 2},
		Activate{Reason: ReasonMissedPing},
		Inactive{Reason: ReasonIdleService},
		BookmarkStatus{Bookmarks: 10, Folders: 2, Depth: 1},
		BookmarkModify{Kind: BookmarkMoved},
		AddonStatus{Active: 3, Inactive: 1},
		MemoryUsage{Path: "heap", Bytes: 42},
		SessionOnRestore{Windows: 1, Tabs: 5},
		SessionRestore{Tabs: 5},
		PluginVersion{File: "a.so", Version: "1"},
		HistoryStatus{Places: 9},
		ProfileAge{OldestModified: time.UnixMilli(5000)},
		SessionPreference{Name: "p", Value: "true"},
	}
	for _, p := range payloads {
		got, err := Decode(WeekLife, Encode(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestEncodeInactiveMatchesProducerFormat(t *testing.T) {
	row := Encode(Inactive{Reason: ReasonMissedPing})
	assert.Equal(t, int32(5), row.Code)
	assert.Equal(t, [3]string{"1", "0", "0"}, [3]string{row.Data1, row.Data2, row.Data3})

	row = Encode(Activate{Reason: ReasonUser})
	assert.Equal(t, "", row.Data1)
}
