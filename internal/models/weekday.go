package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday is a day of the teaching week. The zero value is invalid.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var (
	weekdayCodes = [...]string{"", "M", "T", "W", "Th", "F", "S", "Su"}
	weekdayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
)

// AllWeekdays lists the week in calendar order.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday accepts a storage code (M, T, W, Th, F, S, Su) or a full day name.
func ParseWeekday(raw string) (Weekday, error) {
	trimmed := strings.TrimSpace(raw)
	for d := Monday; d <= Sunday; d++ {
		if trimmed == weekdayCodes[d] || strings.EqualFold(trimmed, weekdayNames[d]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// WeekdayOf maps a calendar time to its weekday.
func WeekdayOf(t time.Time) Weekday {
	if t.Weekday() == time.Sunday {
		return Sunday
	}
	return Weekday(t.Weekday())
}

// Valid reports whether d is one of the seven weekdays.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// Code returns the short storage code.
func (d Weekday) Code() string {
	if !d.Valid() {
		return ""
	}
	return weekdayCodes[d]
}

// String returns the full day name used in messages.
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// MarshalJSON encodes the weekday as its code.
func (d Weekday) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return json.Marshal(d.Code())
}

// UnmarshalJSON decodes a weekday code or name.
func (d *Weekday) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseWeekday(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// WeekdaySet is an ordered, duplicate-free list of weekdays. Order follows
// the input and drives the order of conflict messages.
type WeekdaySet []Weekday

// NewWeekdaySet builds a set keeping the first occurrence of each day.
func NewWeekdaySet(days ...Weekday) WeekdaySet {
	set := make(WeekdaySet, 0, len(days))
	for _, d := range days {
		if !set.Contains(d) {
			set = append(set, d)
		}
	}
	return set
}

// ParseWeekdaySet parses the comma separated storage form, e.g. "M,W,F".
func ParseWeekdaySet(raw string) (WeekdaySet, error) {
	if strings.TrimSpace(raw) == "" {
		return WeekdaySet{}, nil
	}
	parts := strings.Split(raw, ",")
	days := make([]Weekday, 0, len(parts))
	for _, part := range parts {
		d, err := ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return NewWeekdaySet(days...), nil
}

// Contains reports whether d is a member of the set.
func (s WeekdaySet) Contains(d Weekday) bool {
	for _, v := range s {
		if v == d {
			return true
		}
	}
	return false
}

// Codes returns the storage codes in set order.
func (s WeekdaySet) Codes() []string {
	codes := make([]string, len(s))
	for i, d := range s {
		codes[i] = d.Code()
	}
	return codes
}

// Names returns the full day names in set order.
func (s WeekdaySet) Names() []string {
	names := make([]string, len(s))
	for i, d := range s {
		names[i] = d.String()
	}
	return names
}

// String returns the comma joined storage form.
func (s WeekdaySet) String() string {
	return strings.Join(s.Codes(), ",")
}

// Value implements driver.Valuer.
func (s WeekdaySet) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner for the comma joined column.
func (s *WeekdaySet) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = WeekdaySet{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan weekday set: unsupported type %T", src)
	}
	parsed, err := ParseWeekdaySet(raw)
	if err != nil {
		return fmt.Errorf("scan weekday set: %w", err)
	}
	*s = parsed
	return nil
}

// MarshalJSON encodes the set as a list of codes.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Codes())
}

// UnmarshalJSON decodes a list of codes or names, dropping duplicates.
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	days := make([]Weekday, 0, len(raw))
	for _, r := range raw {
		d, err := ParseWeekday(r)
		if err != nil {
			return err
		}
		days = append(days, d)
	}
	*s = NewWeekdaySet(days...)
	return nil
}
