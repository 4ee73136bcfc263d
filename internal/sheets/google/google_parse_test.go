package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindDayRow(t *testing.T) {
	values := [][]any{
		{"Date"},
		{"2025-03-08"},
		{},
		{" 2025-03-09 "},
	}

	tests := []struct {
		day   string
		row   int
		found bool
	}{
		{"2025-03-08", 2, true},
		{"2025-03-09", 4, true},
		{"2025-03-10", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			row, found := findDayRow(values, tt.day)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.row, row)
		})
	}

	_, found := findDayRow(nil, "2025-03-08")
	assert.False(t, found)
}
