// Package due converts assignment due instants into tracker descriptions and
// tracker due fields.
package due

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	// DefaultZone is the display zone used when none is configured.
	DefaultZone = "America/Denver"
	// DefaultSentinel is the UTC clock time that marks an end-of-day due date.
	DefaultSentinel = "23:59"

	// Layout renders an instant in task descriptions and reports.
	Layout = "Jan 02, 2006 at 03:04 PM MST"

	dateLayout = "2006-01-02"

	noDueDescription = "Due: No due date"
)

// Parse reads a platform timestamp. An empty value means no due date.
func Parse(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("parse due timestamp %q: %w", raw, err)
	}
	t = t.UTC()
	return &t, nil
}

// Fields are the due values sent with a task creation. At most one is set.
type Fields struct {
	Date     string
	Datetime string
}

// Normalizer renders due instants in a display zone.
type Normalizer struct {
	loc          *time.Location
	sentinelHour int
	sentinelMin  int
}

// NewNormalizer builds a normalizer for the named zone and "HH:MM" sentinel.
// Empty arguments fall back to DefaultZone and DefaultSentinel.
func NewNormalizer(zone, sentinel string) (*Normalizer, error) {
	if zone == "" {
		zone = DefaultZone
	}
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load display zone: %w", err)
	}
	hour, minute, err := parseClock(sentinel)
	if err != nil {
		return nil, err
	}
	return &Normalizer{loc: loc, sentinelHour: hour, sentinelMin: minute}, nil
}

// Location returns the display zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Description is the complete description text of a synced task. It is the
// only field compared when deciding whether a task is out of date.
func (n *Normalizer) Description(due *time.Time) string {
	if due == nil {
		return noDueDescription
	}
	return "Due: " + due.In(n.loc).Format(Layout)
}

// TaskDue computes the due fields of a new task. A due time equal to the
// sentinel is the platform's end-of-day marker and becomes a date-only value
// one calendar day earlier.
func (n *Normalizer) TaskDue(due *time.Time) Fields {
	if due == nil {
		return Fields{}
	}
	utc := due.UTC()
	if utc.Hour() == n.sentinelHour && utc.Minute() == n.sentinelMin {
		return Fields{Date: utc.AddDate(0, 0, -1).Format(dateLayout)}
	}
	return Fields{Datetime: due.In(n.loc).Format(time.RFC3339)}
}

// Format renders an instant in the display zone for reports.
func (n *Normalizer) Format(t time.Time) string {
	return t.In(n.loc).Format("2006-01-02 03:04 PM MST")
}

func parseClock(v string) (int, int, error) {
	hh, mm, ok := strings.Cut(v, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid sentinel %q: want HH:MM", v)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid sentinel hour %q", v)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid sentinel minute %q", v)
	}
	return hour, minute, nil
}
