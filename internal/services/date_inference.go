package services

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinInferredYear is the earliest year accepted from a path. Older digit
// runs are almost always counters or camera serials, not dates.
const MinInferredYear = 2020

// FolderPlaceholderDay is the day used for dates taken from a month folder
const FolderPlaceholderDay = 15

var (
	// history/2024-04/, history/2024_04/ or history/202404/
	folderPattern = regexp.MustCompile(`history/(\d{4})[-_]?(0[1-9]|1[0-2])/`)
	// 20231225, 20231225_1430, 20231225-143000
	compactPattern = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})[_-]?(\d{2})?(\d{2})?(\d{2})?`)
	// 2023-12-25 or 2023_12_25
	separatedPattern = regexp.MustCompile(`(\d{4})[-_](\d{2})[-_](\d{2})`)
)

// InferDate derives a capture date from a photo URL or object key.
//
// A month folder (history/YYYY-MM/) wins over the file name and yields the
// 15th of that month. Otherwise the file name is searched for a
// YYYYMMDD[_-]HHMMSS or YYYY-MM-DD run. Digit runs that do not form a real
// calendar date, or fall before MinInferredYear, are ignored.
//
// The second return value is false when nothing could be inferred; this is
// not an error and callers fall back to a source timestamp. A nil location
// means time.Local. YYYYMMDD runs inside unrelated numbers (ids, hashes) can
// produce false positives.
func InferDate(rawURL string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	s := stripQuery(rawURL)
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}

	if m := folderPattern.FindStringSubmatch(s); m != nil {
		year := atoi(m[1])
		month := atoi(m[2])
		if year >= MinInferredYear {
			return time.Date(year, time.Month(month), FolderPlaceholderDay, 0, 0, 0, 0, loc), true
		}
	}

	name := s
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	if m := compactPattern.FindStringSubmatch(name); m != nil {
		if t, ok := buildDate(loc, m[1], m[2], m[3], m[4], m[5], m[6]); ok {
			return t, true
		}
	}

	if m := separatedPattern.FindStringSubmatch(name); m != nil {
		if t, ok := buildDate(loc, m[1], m[2], m[3], "", "", ""); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// buildDate assembles a date from matched digit groups and rejects anything
// that would roll over into another day or month
func buildDate(loc *time.Location, y, mo, d, h, mi, sec string) (time.Time, bool) {
	year, month, day := atoi(y), atoi(mo), atoi(d)
	hour, minute, second := atoi(h), atoi(mi), atoi(sec)

	if year < MinInferredYear {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, false
	}
	if hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// atoi parses a matched digit group; empty optional groups are zero
func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}
