package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ParseClock accepts "HH:MM" or "HH:MM:SS" and returns seconds since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, ErrInvalidTime
	}
	limits := []int{23, 59, 59}
	total := 0
	for i, part := range parts {
		if len(part) != 2 {
			return 0, ErrInvalidTime
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return 0, ErrInvalidTime
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		total *= 60
	}
	return total, nil
}

// FormatClock renders seconds since midnight as "HH:MM:SS".
func FormatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

// Duration returns the length of start..end in hours; end must be after start.
func Duration(start, end string) (float64, error) {
	from, err := ParseClock(start)
	if err != nil {
		return 0, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return 0, err
	}
	if to <= from {
		return 0, ErrInvalidTime
	}
	return float64(to-from) / 3600, nil
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SortChronologically orders by class_date, start_time, id ascending.
func SortChronologically(classes []ClassRecord) {
	sort.SliceStable(classes, func(i, j int) bool {
		a, b := classes[i], classes[j]
		da, db := DateOnly(a.ClassDate), DateOnly(b.ClassDate)
		if !da.Equal(db) {
			return da.Before(db)
		}
		sa, _ := ParseClock(a.StartTime)
		sb, _ := ParseClock(b.StartTime)
		if sa != sb {
			return sa < sb
		}
		return a.ID < b.ID
	})
}

// Counters ranks attended classes of one package, 1-based.
func Counters(attended []ClassRecord) map[snowflake.ID]int {
	ordered := append([]ClassRecord(nil), attended...)
	SortChronologically(ordered)
	out := make(map[snowflake.ID]int, len(ordered))
	for i, c := range ordered {
		out[c.ID] = i + 1
	}
	return out
}
