package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// parseLimit reads the limit query parameter, defaulting to 100 and capping at 1000.
func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q: must be a positive integer", raw)
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, nil
}
