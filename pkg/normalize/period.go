package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MonthSuffix is the unit marker used for month labels ("01월").
const MonthSuffix = "월"

var digitGroups = regexp.MustCompile(`\d+`)

// NormalizeMonth turns a month-only value (1-12, with or without the unit
// marker) into a zero-padded label. Anything else is returned unchanged.
func NormalizeMonth(s string) string {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, MonthSuffix))
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 || n > 12 {
		return s
	}
	return monthLabel(n)
}

func monthLabel(n int) string {
	return fmt.Sprintf("%02d%s", n, MonthSuffix)
}

// SplitPeriod decomposes a date-like value into a calendar year and a month
// label. Year is 0 when the value carries only a month. Values that are not
// date-like are returned as the month unchanged.
func SplitPeriod(s string) (int, string) {
	trimmed := strings.TrimSpace(s)
	groups := digitGroups.FindAllString(trimmed, -1)
	if len(groups) == 0 {
		return 0, s
	}

	switch {
	case len(groups) == 1 && len(groups[0]) == 8: // 20240115
		return splitCompact(groups[0][:4], groups[0][4:6], s)
	case len(groups) == 1 && len(groups[0]) == 6: // 202401
		return splitCompact(groups[0][:4], groups[0][4:], s)
	case len(groups) == 1 && len(groups[0]) <= 2:
		return 0, NormalizeMonth(trimmed)
	case len(groups) >= 2 && (len(groups[0]) == 4 || len(groups[0]) == 2):
		year, _ := strconv.Atoi(groups[0])
		if len(groups[0]) == 2 {
			year += 2000
		}
		month, _ := strconv.Atoi(groups[1])
		if month < 1 || month > 12 {
			return year, groups[1]
		}
		return year, monthLabel(month)
	}
	return 0, s
}

func splitCompact(y, m, original string) (int, string) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	if month < 1 || month > 12 {
		return 0, original
	}
	return year, monthLabel(month)
}

// ParseYear extracts a four digit year (1900-2099) from a label such as
// "2023년 매출액". It returns 0 when none is present.
func ParseYear(s string) int {
	for _, g := range digitGroups.FindAllString(s, -1) {
		if len(g) != 4 {
			continue
		}
		if y, err := strconv.Atoi(g); err == nil && y >= 1900 && y <= 2099 {
			return y
		}
	}
	return 0
}
