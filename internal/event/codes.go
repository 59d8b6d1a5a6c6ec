package event

import (
	"fmt"
	"strconv"
	"strings"
)

// Code is a study-specific event code. The numeric values are part of the
// persisted format.
type Code int32

// week_life codes.
const (
	CodeStudyStatus Code = iota
	CodeBrowserStart
	CodeBrowserShutdown
	CodeBrowserRestart
	CodeBrowserActivate
	CodeBrowserInactive
	CodeSearchbarSearch
	CodeSearchbarSwitch
	CodeBookmarkStatus
	CodeBookmarkCreate
	CodeBookmarkChoose
	CodeBookmarkModify
	CodeDownload
	CodeDownloadModify
	CodeAddonStatus
	CodeAddonInstall
	CodeAddonUninstall
	CodePrivateOn
	CodePrivateOff
	CodeMemoryUsage
	CodeSessionOnRestore
	CodeSessionRestore
	CodePluginVersion
	CodeHistoryStatus
	CodeProfileAge
	CodeSessionRestorePreferences
)

// interface codes.
const (
	CodeMetadata Code = iota
	CodeAction
	CodeMenuHunt
	CodeCustomize
)

type codeInfo struct {
	name    string
	display string
}

var weekLifeCodes = []codeInfo{
	{"STUDY_STATUS", "Study Status"},
	{"BROWSER_START", "Firefox Startup"},
	{"BROWSER_SHUTDOWN", "Firefox Shutdown"},
	{"BROWSER_RESTART", "Firefox Restart"},
	{"BROWSER_ACTIVATE", "Resume Active Use"},
	{"BROWSER_INACTIVE", "Begin Idle"},
	{"SEARCHBAR_SEARCH", "Search"},
	{"SEARCHBAR_SWITCH", "Search Settings Changed"},
	{"BOOKMARK_STATUS", "Bookmark Count"},
	{"BOOKMARK_CREATE", "New Bookmark"},
	{"BOOKMARK_CHOOSES", "Bookmark Opened"},
	{"BOOKMARK_MODIFY", "Bookmark Modified"},
	{"DOWNLOAD", "Download"},
	{"DOWNLOAD_MODIFY", "Download Settings Changed"},
	{"ADDON_STATUS", "Add-ons Count"},
	{"ADDON_INSTALL", "Add-on Installed"},
	{"ADDON_UNINSTALL", "Add-on Uninstalled"},
	{"PRIVATE_ON", "Private Mode On"},
	{"PRIVATE_OFF", "Private Mode Off"},
	{"MEMORY_USAGE", "Memory Usage"},
	{"SESSION_ON_RESTORE", "Total Windows/Tabs in about:sessionrestore"},
	{"SESSION_RESTORE", "Actual Restored Windows/Tabs"},
	{"PLUGIN_VERSION", "Plugin Version"},
	{"HISTORY_STATUS", "History Count"},
	{"PROFILE_AGE", "Profile Age"},
	{"SESSION_RESTORE_PREFERENCES", "Session Restore Preferences"},
}

var interfaceCodes = []codeInfo{
	{"METADATA", "Metadata"},
	{"ACTION", "Action"},
	{"MENU_HUNT", "Menu Hunt"},
	{"CUSTOMIZE", "Customize"},
}

func (s Study) codes() []codeInfo {
	if s == Interface {
		return interfaceCodes
	}
	return weekLifeCodes
}

// Known reports whether code belongs to the study's table.
func (s Study) Known(code Code) bool {
	return code >= 0 && int(code) < len(s.codes())
}

// Name returns the constant name of a code, e.g. "BROWSER_START".
func (s Study) Name(code Code) string {
	if !s.Known(code) {
		return fmt.Sprintf("UNKNOWN(%d)", code)
	}
	return s.codes()[code].name
}

// DisplayName returns the human-readable label of a code.
func (s Study) DisplayName(code Code) string {
	if !s.Known(code) {
		return fmt.Sprintf("Unknown (%d)", code)
	}
	return s.codes()[code].display
}

// Codes lists every code of the study in numeric order.
func (s Study) Codes() []Code {
	out := make([]Code, len(s.codes()))
	for i := range out {
		out[i] = Code(i)
	}
	return out
}

// ParseCode accepts either a number or a constant name (case-insensitive).
func (s Study) ParseCode(v string) (Code, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		if !s.Known(Code(n)) {
			return 0, fmt.Errorf("%w: %d in study %s", ErrUnknownCode, n, s)
		}
		return Code(n), nil
	}
	for i, c := range s.codes() {
		if strings.EqualFold(c.name, v) {
			return Code(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q in study %s", ErrUnknownCode, v, s)
}
