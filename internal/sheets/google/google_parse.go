package google

import (
	"fmt"
	"strings"
)

// findDayRow returns the 1-based row whose first cell equals day.
func findDayRow(values [][]any, day string) (int, bool) {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == day {
			return i + 1, true
		}
	}
	return 0, false
}
