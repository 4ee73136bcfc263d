package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	ports "github.com/chbarnhouse/ha-finance-assistant/internal/sheets"
)

var _ ports.SnapshotWriter = (*Store)(nil)

// Store keeps exported rows in memory, one per day.
type Store struct {
	mu   sync.Mutex
	rows map[string]core.DailySummary
}

func New() *Store {
	return &Store{rows: map[string]core.DailySummary{}}
}

// AppendRow stores the summary and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, summary core.DailySummary) (string, error) {
	if summary.Day.IsZero() {
		return "", errors.New("summary day is required")
	}
	day := summary.Day.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[day] = summary
	return fmt.Sprintf("mem:%s", day), nil
}

// Rows returns the stored rows rendered in header order, oldest day first.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	days := make([]string, 0, len(s.rows))
	for d := range s.rows {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([][]string, len(days))
	for i, d := range days {
		out[i] = ports.Row(s.rows[d])
	}
	return out
}
