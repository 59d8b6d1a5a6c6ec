package event

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/testpilot/internal/storage"
)

var (
	// ErrMalformed marks a row whose payload cannot be interpreted.
	ErrMalformed = errors.New("malformed event row")
	// ErrUnknownCode marks a code outside the study's table.
	ErrUnknownCode = errors.New("unknown event code")
)

// Payload is the typed form of a stored row. The concrete type selects the
// aggregation rule applied to it.
type Payload interface {
	Code() Code
	fields() [3]string
}

// Reason explains a BROWSER_ACTIVATE or BROWSER_INACTIVE transition.
type Reason int

const (
	ReasonUser        Reason = 0
	ReasonMissedPing  Reason = 1
	ReasonIdleService Reason = 2
)

// ModifyKind is the sub-code of BOOKMARK_MODIFY.
type ModifyKind int

const (
	BookmarkChanged ModifyKind = 0
	BookmarkRemoved ModifyKind = 1
	BookmarkMoved   ModifyKind = 2
)

// Signal is a week_life event that carries no payload.
type Signal struct{ Kind Code }

type StudyStatus struct{ Version int }

type Activate struct{ Reason Reason }

type Inactive struct{ Reason Reason }

type BookmarkStatus struct{ Bookmarks, Folders, Depth int }

type BookmarkModify struct{ Kind ModifyKind }

type AddonStatus struct{ Active, Inactive int }

type MemoryUsage struct {
	Path  string
	Bytes int64
}

type SessionOnRestore struct{ Windows, Tabs int }

type SessionRestore struct{ Tabs int }

type PluginVersion struct{ File, Version string }

type HistoryStatus struct{ Places int }

type ProfileAge struct{ OldestModified time.Time }

type SessionPreference struct{ Name, Value string }

// Interaction is every interface-study event.
type Interaction struct {
	Kind        Code
	Item        string
	SubItem     string
	Interaction string
}

func (p Signal) Code() Code { return p.Kind }
func (StudyStatus) Code() Code { return CodeStudyStatus }
func (Activate) Code() Code { return CodeBrowserActivate }
func (Inactive) Code() Code { return CodeBrowserInactive }
func (BookmarkStatus) Code() Code { return CodeBookmarkStatus }
func (BookmarkModify) Code() Code { return CodeBookmarkModify }
func (AddonStatus) Code() Code { return CodeAddonStatus }
func (MemoryUsage) Code() Code { return CodeMemoryUsage }
func (SessionOnRestore) Code() Code { return CodeSessionOnRestore }
func (SessionRestore) Code() Code { return CodeSessionRestore }
func (PluginVersion) Code() Code { return CodePluginVersion }
func (HistoryStatus) Code() Code { return CodeHistoryStatus }
func (ProfileAge) Code() Code { return CodeProfileAge }
func (SessionPreference) Code() Code { return CodeSessionRestorePreferences }
func (p Interaction) Code() Code { return p.Kind }

func (Signal) fields() [3]string { return [3]string{} }
func (p StudyStatus) fields() [3]string {
	return [3]string{strconv.Itoa(p.Version)}
}
func (p Activate) fields() [3]string { return [3]string{reasonField(p.Reason)} }
func (p Inactive) fields() [3]string { return [3]string{reasonField(p.Reason), "0", "0"} }
func (p BookmarkStatus) fields() [3]string {
	return [3]string{strconv.Itoa(p.Bookmarks), strconv.Itoa(p.Folders), strconv.Itoa(p.Depth)}
}
func (p BookmarkModify) fields() [3]string { return [3]string{strconv.Itoa(int(p.Kind))} }
func (p AddonStatus) fields() [3]string {
	return [3]string{strconv.Itoa(p.Active), strconv.Itoa(p.Inactive)}
}
func (p MemoryUsage) fields() [3]string {
	return [3]string{p.Path, strconv.FormatInt(p.Bytes, 10)}
}
func (p SessionOnRestore) fields() [3]string {
	return [3]string{"Windows " + strconv.Itoa(p.Windows), "Tabs " + strconv.Itoa(p.Tabs)}
}
func (p SessionRestore) fields() [3]string {
	return [3]string{"Windows", "Tabs " + strconv.Itoa(p.Tabs)}
}
func (p PluginVersion) fields() [3]string { return [3]string{p.File, p.Version} }
func (p HistoryStatus) fields() [3]string { return [3]string{strconv.Itoa(p.Places)} }
func (p ProfileAge) fields() [3]string {
	if p.OldestModified.IsZero() {
		return [3]string{}
	}
	return [3]string{strconv.FormatInt(p.OldestModified.UnixMilli(), 10)}
}
func (p SessionPreference) fields() [3]string { return [3]string{p.Name, p.Value} }
func (p Interaction) fields() [3]string {
	return [3]string{p.Item, p.SubItem, p.Interaction}
}

// reasonField writes the user reason as the empty string, as producers do.
func reasonField(r Reason) string {
	if r == ReasonUser {
		return ""
	}
	return strconv.Itoa(int(r))
}

// Encode turns a payload into a storage row with a zero timestamp.
func Encode(p Payload) storage.Event {
	f := p.fields()
	return storage.Event{Code: int32(p.Code()), Data1: f[0], Data2: f[1], Data3: f[2]}
}

// Decode interprets a stored row for the given study. It returns an error
// wrapping ErrUnknownCode or ErrMalformed when the row cannot be typed.
func Decode(study Study, e storage.Event) (Payload, error) {
	code := Code(e.Code)
	if !study.Known(code) {
		return nil, fmt.Errorf("%w: %d in study %s", ErrUnknownCode, e.Code, study)
	}
	if study == Interface {
		return Interaction{Kind: code, Item: e.Data1, SubItem: e.Data2, Interaction: e.Data3}, nil
	}

	p, err := decodeWeekLife(code, e)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (seq %d): %v", ErrMalformed, study.Name(code), e.Seq, err)
	}
	return p, nil
}

func decodeWeekLife(code Code, e storage.Event) (Payload, error) {
	switch code {
	case CodeStudyStatus:
		v, err := count(e.Data1)
		return StudyStatus{Version: v}, err

	case CodeBrowserActivate:
		r, err := reason(e.Data1)
		return Activate{Reason: r}, err

	case CodeBrowserInactive:
		r, err := reason(e.Data1)
		return Inactive{Reason: r}, err

	case CodeBookmarkStatus:
		var p BookmarkStatus
		var err error
		if p.Bookmarks, err = count(e.Data1); err != nil {
			return nil, err
		}
		if p.Folders, err = count(e.Data2); err != nil {
			return nil, err
		}
		if p.Depth, err = count(e.Data3); err != nil {
			return nil, err
		}
		return p, nil

	case CodeBookmarkModify:
		k, err := count(e.Data1)
		if err != nil {
			return nil, err
		}
		if k > int(BookmarkMoved) {
			return nil, fmt.Errorf("bookmark modify kind %d", k)
		}
		return BookmarkModify{Kind: ModifyKind(k)}, nil

	case CodeAddonStatus:
		var p AddonStatus
		var err error
		if p.Active, err = count(e.Data1); err != nil {
			return nil, err
		}
		if p.Inactive, err = count(e.Data2); err != nil {
			return nil, err
		}
		return p, nil

	case CodeMemoryUsage:
		b, err := count64(e.Data2)
		return MemoryUsage{Path: e.Data1, Bytes: b}, err

	case CodeSessionOnRestore:
		w, err := labeled(e.Data1, "Windows")
		if err != nil {
			return nil, err
		}
		t, err := labeled(e.Data2, "Tabs")
		if err != nil {
			return nil, err
		}
		return SessionOnRestore{Windows: w, Tabs: t}, nil

	case CodeSessionRestore:
		t, err := labeled(e.Data2, "Tabs")
		return SessionRestore{Tabs: t}, err

	case CodePluginVersion:
		return PluginVersion{File: e.Data1, Version: e.Data2}, nil

	case CodeHistoryStatus:
		n, err := count(e.Data1)
		return HistoryStatus{Places: n}, err

	case CodeProfileAge:
		if strings.TrimSpace(e.Data1) == "" {
			return ProfileAge{}, nil
		}
		v, err := count64(e.Data1)
		if err != nil {
			return nil, err
		}
		return ProfileAge{OldestModified: time.UnixMilli(v)}, nil

	case CodeSessionRestorePreferences:
		if e.Data1 == "" {
			return nil, errors.New("preference name missing")
		}
		return SessionPreference{Name: e.Data1, Value: e.Data2}, nil

	default:
		return Signal{Kind: code}, nil
	}
}

// count parses a non-negative integer field. Producers write zero as "".
func count(s string) (int, error) {
	n, err := count64(s)
	return int(n), err
}

func count64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value: %d", n)
	}
	return n, nil
}

// labeled parses fields of the form "Tabs 12".
func labeled(s, label string) (int, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), label)
	if !ok {
		return 0, fmt.Errorf("expected %q prefix in %q", label, s)
	}
	return count(rest)
}

func reason(s string) (Reason, error) {
	n, err := count(s)
	if err != nil {
		return 0, err
	}
	if n > int(ReasonIdleService) {
		return 0, fmt.Errorf("activity reason %d", n)
	}
	return Reason(n), nil
}
