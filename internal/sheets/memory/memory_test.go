package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
)

func TestStoreAppendRow(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendRow(ctx, core.DailySummary{Day: core.NewDate(2025, time.March, 10), NetWorth: core.Money{Milli: 1000}})
	require.NoError(t, err)
	assert.Equal(t, "mem:2025-03-10", ref)

	_, err = s.AppendRow(ctx, core.DailySummary{Day: core.NewDate(2025, time.March, 9), NetWorth: core.Money{Milli: 500}})
	require.NoError(t, err)

	_, err = s.AppendRow(ctx, core.DailySummary{Day: core.NewDate(2025, time.March, 10), NetWorth: core.Money{Milli: 2000}})
	require.NoError(t, err)

	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-03-09", rows[0][0])
	assert.Equal(t, "0.50", rows[0][1])
	assert.Equal(t, "2.00", rows[1][1], "same day replaces the row")
}

func TestStoreRejectsZeroDay(t *testing.T) {
	_, err := New().AppendRow(context.Background(), core.DailySummary{})
	assert.Error(t, err)
}
