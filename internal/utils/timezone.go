package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // Asia/Kolkata must resolve on minimal images
)

// Clock supplies the current instant. All domain comparisons happen in UTC.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current time in UTC
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant in UTC
func (c FixedClock) Now() time.Time {
	return c.T.UTC()
}

var (
	localZoneMu sync.RWMutex
	localZone   = mustLoadLocation("Asia/Kolkata")
)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// SetLocalZone changes the civil timezone used for parsing and rendering
func SetLocalZone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %w", name, err)
	}
	localZoneMu.Lock()
	localZone = loc
	localZoneMu.Unlock()
	return nil
}

// LocalZone returns the configured civil timezone
func LocalZone() *time.Location {
	localZoneMu.RLock()
	defer localZoneMu.RUnlock()
	return localZone
}

// Layouts accepted for civil date-times, most specific first
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseLocalDateTime reads a timestamp supplied by a client and returns it in UTC.
// Values carrying an explicit offset keep it; naive values are read in the local zone.
func ParseLocalDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}

	zone := LocalZone()
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, zone); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %q", value)
}

// ToLocal converts an instant into the configured civil timezone
func ToLocal(t time.Time) time.Time {
	return t.In(LocalZone())
}

// FormatLocal renders an instant for user-facing messages
func FormatLocal(t time.Time) string {
	return ToLocal(t).Format("02 Jan 2006, 03:04 PM")
}
