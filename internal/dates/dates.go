// Package dates buckets timestamps into local calendar days and builds
// the remote date-range filters the calendar read path depends on.
package dates

import (
	"fmt"
	"regexp"
	"time"
)

var (
	dayPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	offsetPattern = regexp.MustCompile(`(?:[+-]\d{2}:\d{2}|Z)$`)
)

// floatingLayouts cover timezone-naive instants as they appear in
// remote date values.
var floatingLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04",
}

// DayKey renders the instant as a YYYY-MM-DD day in the given zone
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// CurrentDay returns today's day key in the given zone
func CurrentDay(loc *time.Location) string {
	return DayKey(time.Now(), loc)
}

// IsDayString reports whether s is a bare YYYY-MM-DD day
func IsDayString(s string) bool {
	return dayPattern.MatchString(s)
}

// ResolveDay turns a day string or an instant into a day key in loc
func ResolveDay(target string, loc *time.Location) (string, error) {
	if IsDayString(target) {
		return target, nil
	}
	t, err := time.Parse(time.RFC3339, target)
	if err != nil {
		return "", fmt.Errorf("invalid day or instant %q: %w", target, err)
	}
	return DayKey(t, loc), nil
}

func nextDay(day string) (string, error) {
	t, err := time.ParseInLocation("2006-01-02", day, time.UTC)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02"), nil
}

// offsetString returns the zone's numeric UTC offset on the given day.
// Anchored at noon to sidestep DST transitions at midnight.
func offsetString(day string, loc *time.Location) (string, error) {
	t, err := time.ParseInLocation("2006-01-02", day, time.UTC)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", day, err)
	}
	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
	return noon.Format("-07:00"), nil
}

// BuildDayRangeFilter builds a Notion filter for the [start, end) window
// of the target local day against the named date property. Because the
// remote comparison engine may read bare instants as UTC, each boundary
// is computed in both local-offset and UTC forms and the wider one is
// chosen, so boundary-adjacent records are never missed. Callers
// re-filter results with InDay.
func BuildDayRangeFilter(property, target string, loc *time.Location) (map[string]interface{}, error) {
	day, err := ResolveDay(target, loc)
	if err != nil {
		return nil, err
	}
	next, err := nextDay(day)
	if err != nil {
		return nil, err
	}

	dayOffset, err := offsetString(day, loc)
	if err != nil {
		return nil, err
	}
	nextOffset, err := offsetString(next, loc)
	if err != nil {
		return nil, err
	}

	localStart := day + "T00:00:00" + dayOffset
	localEnd := next + "T00:00:00" + nextOffset
	utcStart := day + "T00:00:00+00:00"
	utcEnd := next + "T00:00:00+00:00"

	start := widerStart(localStart, utcStart)
	end := widerEnd(localEnd, utcEnd)

	return map[string]interface{}{
		"and": []interface{}{
			map[string]interface{}{
				"property": property,
				"date":     map[string]interface{}{"on_or_after": start},
			},
			map[string]interface{}{
				"property": property,
				"date":     map[string]interface{}{"before": end},
			},
		},
	}, nil
}

func widerStart(local, utc string) string {
	tl, errL := time.Parse(time.RFC3339, local)
	tu, errU := time.Parse(time.RFC3339, utc)
	if errL != nil || errU != nil {
		return utc
	}
	if !tl.After(tu) {
		return local
	}
	return utc
}

func widerEnd(local, utc string) string {
	tl, errL := time.Parse(time.RFC3339, local)
	tu, errU := time.Parse(time.RFC3339, utc)
	if errL != nil || errU != nil {
		return utc
	}
	if !tl.Before(tu) {
		return local
	}
	return utc
}

var hhmmPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// BuildDueDateProp renders a user-entered day and optional HH:MM clock
// time as a date property value. A valid clock yields a wall-clock
// start tagged with the zone name; a day alone stays a bare day; no
// input at all yields a null date.
func BuildDueDateProp(day, clock string, loc *time.Location) map[string]interface{} {
	if day == "" && clock == "" {
		return map[string]interface{}{"date": nil}
	}
	if day == "" {
		day = CurrentDay(loc)
	}
	if hhmmPattern.MatchString(clock) {
		return map[string]interface{}{
			"date": map[string]interface{}{
				"start":     day + "T" + clock + ":00",
				"time_zone": loc.String(),
			},
		}
	}
	return map[string]interface{}{"date": map[string]interface{}{"start": day}}
}

// InDay decides whether a remote date value belongs to the target local
// day. Bare day strings compare directly; zoned instants convert via
// DayKey; floating instants are read as wall-clock time in loc.
func InDay(start string, loc *time.Location, targetDay string) bool {
	if start == "" {
		return false
	}
	if IsDayString(start) {
		return start == targetDay
	}

	var t time.Time
	var err error
	if offsetPattern.MatchString(start) {
		t, err = time.Parse(time.RFC3339, start)
		if err != nil {
			return false
		}
	} else {
		for _, layout := range floatingLayouts {
			t, err = time.ParseInLocation(layout, start, loc)
			if err == nil {
				break
			}
		}
		if err != nil {
			return false
		}
	}

	return DayKey(t, loc) == targetDay
}
